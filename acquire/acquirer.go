package acquire

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/himanshub16/upnext-jukebox/jukebox"
)

const (
	DefaultTimeout      = 5 * time.Minute
	DefaultPublicPrefix = "/public/music"
	assetExt            = ".mp3"
)

// Metadata describes a song in the external catalog.
type Metadata struct {
	ID        string
	Title     string
	Artist    string
	Duration  int64
	Thumbnail string
}

// Fetcher performs the slow, external half of an acquisition.
type Fetcher interface {
	Metadata(ctx context.Context, sourceURL string) (Metadata, error)
	// Download writes the transcoded audio for sourceURL to dest.
	Download(ctx context.Context, sourceURL, dest string) error
}

type Config struct {
	MusicDir     string
	PublicPrefix string
	Timeout      time.Duration
	Fetcher      Fetcher
	Index        Index
	Logger       zerolog.Logger
}

// Acquirer materializes songs as <MusicDir>/<CacheKey(id)>.mp3. A file at
// that path is always complete: downloads land in a temporary file that is
// renamed into place only after it has been verified.
type Acquirer struct {
	dir     string
	prefix  string
	timeout time.Duration
	fetcher Fetcher
	index   Index
	log     zerolog.Logger

	group singleflight.Group
}

var _ jukebox.Acquirer = (*Acquirer)(nil)

func New(cfg Config) (*Acquirer, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("acquire: fetcher is required")
	}
	if cfg.MusicDir == "" {
		return nil, errors.New("acquire: music dir is required")
	}
	if err := os.MkdirAll(cfg.MusicDir, 0o755); err != nil {
		return nil, fmt.Errorf("acquire: create music dir: %w", err)
	}
	if cfg.PublicPrefix == "" {
		cfg.PublicPrefix = DefaultPublicPrefix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Index == nil {
		cfg.Index = NewMemoryIndex()
	}
	return &Acquirer{
		dir:     cfg.MusicDir,
		prefix:  cfg.PublicPrefix,
		timeout: cfg.Timeout,
		fetcher: cfg.Fetcher,
		index:   cfg.Index,
		log:     cfg.Logger.With().Str("component", "acquirer").Logger(),
	}, nil
}

// Path is where the asset for id lives once acquired.
func (a *Acquirer) Path(id string) string {
	return filepath.Join(a.dir, CacheKey(id)+assetExt)
}

// PublicURL is the path clients use to fetch the asset for id.
func (a *Acquirer) PublicURL(id string) string {
	return path.Join(a.prefix, CacheKey(id)+assetExt)
}

// Acquire returns the playable asset for id, fetching it at most once no
// matter how many callers ask concurrently. Later callers wait for the first
// one. The work itself is detached from ctx so that one impatient caller
// cannot fail everybody else; it is bounded by the configured timeout.
func (a *Acquirer) Acquire(ctx context.Context, id, sourceURL string) (jukebox.Asset, error) {
	key := CacheKey(id)
	ch := a.group.DoChan(key, func() (interface{}, error) {
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		return a.acquire(workCtx, id, sourceURL)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return jukebox.Asset{}, res.Err
		}
		if res.Shared {
			a.log.Debug().Str("song", id).Msg("joined in-flight acquisition")
		}
		return res.Val.(jukebox.Asset), nil
	case <-ctx.Done():
		return jukebox.Asset{}, fmt.Errorf("%w: %w", jukebox.ErrAcquisitionFailed, ctx.Err())
	}
}

func (a *Acquirer) acquire(ctx context.Context, id, sourceURL string) (jukebox.Asset, error) {
	dest := a.Path(id)

	if ready(dest) {
		rec, err := a.index.FindAsset(ctx, id)
		if err != nil {
			a.log.Warn().Err(err).Str("song", id).Msg("asset index lookup failed")
		}
		if rec != nil {
			a.log.Info().Str("song", id).Msg("cache hit")
			return a.asset(dest, Metadata{
				ID:        rec.ID,
				Title:     rec.Title,
				Artist:    rec.Artist,
				Duration:  rec.Duration,
				Thumbnail: rec.Thumbnail,
			}), nil
		}

		// file without an index row: only the metadata is missing
		meta, err := a.fetcher.Metadata(ctx, sourceURL)
		if err != nil {
			return jukebox.Asset{}, fmt.Errorf("%w: metadata for %s: %w", jukebox.ErrAcquisitionFailed, id, err)
		}
		meta.ID = id
		a.remember(ctx, dest, meta)
		a.log.Info().Str("song", id).Msg("cache hit, metadata refreshed")
		return a.asset(dest, meta), nil
	}

	started := time.Now()
	a.log.Info().Str("song", id).Str("url", sourceURL).Msg("acquiring")

	meta, err := a.fetcher.Metadata(ctx, sourceURL)
	if err != nil {
		return jukebox.Asset{}, fmt.Errorf("%w: metadata for %s: %w", jukebox.ErrAcquisitionFailed, id, err)
	}
	meta.ID = id

	if err := a.materialize(ctx, sourceURL, dest); err != nil {
		return jukebox.Asset{}, fmt.Errorf("%w: %s: %w", jukebox.ErrAcquisitionFailed, id, err)
	}
	a.remember(ctx, dest, meta)

	a.log.Info().Str("song", id).Dur("took", time.Since(started)).Msg("acquired")
	return a.asset(dest, meta), nil
}

// materialize downloads into a temporary file next to dest and renames it
// into place once it is known to be non-empty.
func (a *Acquirer) materialize(ctx context.Context, sourceURL, dest string) error {
	tmp, err := os.CreateTemp(a.dir, filepath.Base(dest)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temporary asset: %w", err)
	}
	tmpPath := tmp.Name()
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temporary asset: %w", err)
	}

	cleanup := func() {
		_ = os.Remove(tmpPath)
		_ = os.Remove(dest)
	}

	if err := a.fetcher.Download(ctx, sourceURL, tmpPath); err != nil {
		cleanup()
		return err
	}
	if !ready(tmpPath) {
		cleanup()
		return errors.New("transcoded file is empty")
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		cleanup()
		return fmt.Errorf("move asset into place: %w", err)
	}
	return nil
}

func (a *Acquirer) remember(ctx context.Context, dest string, meta Metadata) {
	err := a.index.SaveAsset(ctx, Record{
		ID:        meta.ID,
		Path:      dest,
		Title:     meta.Title,
		Artist:    meta.Artist,
		Duration:  meta.Duration,
		Thumbnail: meta.Thumbnail,
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		a.log.Warn().Err(err).Str("song", meta.ID).Msg("failed to index asset")
	}
}

func (a *Acquirer) asset(dest string, meta Metadata) jukebox.Asset {
	return jukebox.Asset{
		ID:        meta.ID,
		Path:      dest,
		PublicURL: a.PublicURL(meta.ID),
		Title:     meta.Title,
		Artist:    meta.Artist,
		Duration:  meta.Duration,
		Thumbnail: meta.Thumbnail,
	}
}

// ready reports whether p exists and is non-empty.
func ready(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}
