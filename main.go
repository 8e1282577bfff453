package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/himanshub16/upnext-jukebox/acquire"
	"github.com/himanshub16/upnext-jukebox/gateway"
	"github.com/himanshub16/upnext-jukebox/jukebox"
	"github.com/himanshub16/upnext-jukebox/youtube"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		cfg        *Config
	)

	root := &cobra.Command{
		Use:          "jukebox",
		Short:        "Shared jukebox server where every listener hears the same song",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = LoadConfig(configPath, cmd.Flags().Changed("config"))
			return err
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the TOML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	})

	var jobs int
	prefetch := &cobra.Command{
		Use:   "prefetch <id-or-url>...",
		Short: "Download songs into the cache ahead of time",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrefetch(cmd.Context(), cfg, args, jobs)
		},
	}
	prefetch.Flags().IntVar(&jobs, "jobs", 2, "number of songs to fetch at once")
	root.AddCommand(prefetch)

	return root
}

func newLogger(cfg LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stderr)
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return logger.Level(level).With().Timestamp().Logger()
}

// pipeline is everything that turns user input into a playable file.
type pipeline struct {
	resolver *youtube.Resolver
	acquirer *acquire.Acquirer
	repo     AssetRepository
}

func buildPipeline(cfg *Config, log zerolog.Logger) (*pipeline, error) {
	repo, err := openAssetRepository(cfg.Storage.DBURL, log)
	if err != nil {
		return nil, err
	}

	transcoder := acquire.Transcoder{FFmpeg: cfg.YouTube.FFmpegPath, Bitrate: cfg.YouTube.Bitrate}
	downloader := &acquire.YtdlpFetcher{Proxy: cfg.YouTube.Proxy, Transcoder: transcoder}

	var fetcher acquire.Fetcher = downloader
	searchers := []youtube.Searcher{
		&youtube.YtdlpSearcher{Proxy: cfg.YouTube.Proxy},
		youtube.NativeSearcher{Log: log},
	}
	if cfg.YouTube.Backend == backendDataAPI {
		api := &youtube.DataAPI{Key: cfg.YouTube.APIKey}
		fetcher = acquire.WithMetadata(downloader, api)
		searchers = append([]youtube.Searcher{api}, searchers...)
	}

	acq, err := acquire.New(acquire.Config{
		MusicDir:     cfg.Storage.MusicDir,
		PublicPrefix: cfg.Server.PublicPrefix,
		Timeout:      mustDuration(cfg.Jukebox.AcquireTimeout),
		Fetcher:      fetcher,
		Index:        repo,
		Logger:       log,
	})
	if err != nil {
		repo.close()
		return nil, err
	}

	if err := transcoder.CheckFFmpeg(context.Background()); err != nil {
		log.Warn().Err(err).Msg("ffmpeg is not usable, downloads will fail")
	}

	return &pipeline{
		resolver: youtube.NewResolver(log, searchers...),
		acquirer: acq,
		repo:     repo,
	}, nil
}

func runServe(ctx context.Context, cfg *Config) error {
	log := newLogger(cfg.Log)
	if cfg.Server.JWTSecret == "secret" {
		log.Warn().Msg("using the default JWT secret, set JWT_SECRET in production")
	}

	p, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer p.repo.close()

	clk := clock.New()
	hub := gateway.NewHub(gateway.Config{
		Buffer:         cfg.Server.WSBuffer,
		AllowAnyOrigin: cfg.Server.AllowAnyOrigin,
		Logger:         log,
	})
	radio := jukebox.NewRadio(jukebox.RadioConfig{
		Clock:    clk,
		Buffer:   mustDuration(cfg.Jukebox.Buffer),
		Notifier: hub,
		Logger:   log,
	})
	limiter, err := jukebox.NewLimiter(clk, cfg.Jukebox.RateLimitEntries, map[jukebox.ActionKind]time.Duration{
		jukebox.ActionSearch: mustDuration(cfg.Jukebox.SearchInterval),
		jukebox.ActionSubmit: mustDuration(cfg.Jukebox.SubmitInterval),
	})
	if err != nil {
		return err
	}
	service, err := jukebox.NewCoordinator(jukebox.CoordinatorConfig{
		Radio:         radio,
		Resolver:      p.resolver,
		Acquirer:      p.acquirer,
		Limiter:       limiter,
		Notifier:      hub,
		Clock:         clk,
		MaxResults:    cfg.Jukebox.MaxResults,
		DefaultVolume: *cfg.Jukebox.DefaultVolume,

		AcquireTimeout: mustDuration(cfg.Jukebox.AcquireTimeout),
		Logger:         log,
	})
	if err != nil {
		return err
	}
	registerJukeboxEvents(hub, service, log)

	echoRouter := NewHTTPRouter(RouterConfig{
		Service:      service,
		Hub:          hub,
		JWTSecret:    []byte(cfg.Server.JWTSecret),
		TokenTTL:     mustDuration(cfg.Server.TokenTTL),
		MusicDir:     cfg.Storage.MusicDir,
		PublicPrefix: cfg.Server.PublicPrefix,
		Logger:       log,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("jukebox listening")
		if err := echoRouter.Start(cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errChan:
		radio.Shutdown()
		return err
	}

	hub.Shutdown()
	radio.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return echoRouter.Shutdown(shutdownCtx)
}

func runPrefetch(ctx context.Context, cfg *Config, inputs []string, jobs int) error {
	log := newLogger(cfg.Log)
	p, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer p.repo.close()

	if jobs < 1 {
		jobs = 1
	}
	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []error
	)
	g.SetLimit(jobs)

	for _, input := range inputs {
		g.Go(func() error {
			err := prefetchOne(ctx, p, input, log)
			if err != nil {
				log.Error().Err(err).Str("input", input).Msg("prefetch failed")
				mu.Lock()
				failed = append(failed, fmt.Errorf("%s: %w", input, err))
				mu.Unlock()
			}
			// one bad song should not stop the others
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(failed...)
}

func prefetchOne(ctx context.Context, p *pipeline, input string, log zerolog.Logger) error {
	id, sourceURL, err := p.resolver.Identify(input)
	if err != nil {
		return err
	}
	asset, err := p.acquirer.Acquire(ctx, id, sourceURL)
	if err != nil {
		return err
	}
	log.Info().
		Str("id", asset.ID).
		Str("title", asset.Title).
		Str("duration", jukebox.FormatDuration(asset.Duration)).
		Msg("cached")
	return nil
}
