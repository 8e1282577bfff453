package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

const defaultConfigPath = "jukebox.toml"

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Jukebox JukeboxConfig `toml:"jukebox"`
	Storage StorageConfig `toml:"storage"`
	YouTube YouTubeConfig `toml:"youtube"`
	Log     LogConfig     `toml:"log"`
}

type ServerConfig struct {
	Addr           string `toml:"addr"`
	JWTSecret      string `toml:"jwt_secret"`
	TokenTTL       string `toml:"token_ttl"`
	PublicPrefix   string `toml:"public_prefix"`
	AllowAnyOrigin bool   `toml:"allow_any_origin"`
	WSBuffer       int    `toml:"ws_buffer"`
}

type JukeboxConfig struct {
	Buffer           string   `toml:"buffer"`
	SearchInterval   string   `toml:"search_interval"`
	SubmitInterval   string   `toml:"submit_interval"`
	MaxResults       int      `toml:"max_results"`
	DefaultVolume    *float64 `toml:"default_volume"`
	AcquireTimeout   string   `toml:"acquire_timeout"`
	RateLimitEntries int      `toml:"rate_limit_entries"`
}

type StorageConfig struct {
	MusicDir string `toml:"music_dir"`
	DBURL    string `toml:"db_url"`
}

type YouTubeConfig struct {
	Backend    string `toml:"backend"`
	APIKey     string `toml:"api_key"`
	Proxy      string `toml:"proxy"`
	FFmpegPath string `toml:"ffmpeg_path"`
	Bitrate    string `toml:"bitrate"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

const (
	backendYtdlp   = "ytdlp"
	backendDataAPI = "dataapi"
)

// LoadConfig reads path, then applies defaults and environment overrides.
// A missing file is only an error when the path was given explicitly.
func LoadConfig(path string, explicit bool) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file: %w", err)
	}

	cfg.ApplyDefaults()
	envErr := applyEnvOverrides(cfg)
	if err := errors.Join(envErr, cfg.Validate()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	setDefault(&c.Server.Addr, ":3000")
	setDefault(&c.Server.JWTSecret, "secret")
	setDefault(&c.Server.TokenTTL, "72h")
	setDefault(&c.Server.PublicPrefix, "/public/music")
	if c.Server.WSBuffer == 0 {
		c.Server.WSBuffer = 64
	}

	setDefault(&c.Jukebox.Buffer, "2s")
	setDefault(&c.Jukebox.SearchInterval, "2s")
	setDefault(&c.Jukebox.SubmitInterval, "0s")
	setDefault(&c.Jukebox.AcquireTimeout, "5m")
	if c.Jukebox.MaxResults == 0 {
		c.Jukebox.MaxResults = 5
	}
	if c.Jukebox.DefaultVolume == nil {
		v := 0.5
		c.Jukebox.DefaultVolume = &v
	}
	if c.Jukebox.RateLimitEntries == 0 {
		c.Jukebox.RateLimitEntries = 4096
	}

	setDefault(&c.Storage.MusicDir, "public/music")
	setDefault(&c.Storage.DBURL, "sqlite://jukebox.db")

	setDefault(&c.YouTube.Backend, backendYtdlp)
	setDefault(&c.YouTube.Bitrate, "192k")

	setDefault(&c.Log.Level, "info")
	setDefault(&c.Log.Format, "console")
}

// applyEnvOverrides reports variables it could not parse instead of
// skipping them.
func applyEnvOverrides(c *Config) error {
	envString("JUKEBOX_ADDR", &c.Server.Addr)
	envString("JWT_SECRET", &c.Server.JWTSecret)
	envString("JUKEBOX_MUSIC_DIR", &c.Storage.MusicDir)
	envString("DB_URL", &c.Storage.DBURL)
	envString("YOUTUBE_API_KEY", &c.YouTube.APIKey)
	envString("YOUTUBE_PROXY", &c.YouTube.Proxy)
	envString("JUKEBOX_LOG_LEVEL", &c.Log.Level)
	if v := os.Getenv("JUKEBOX_MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("JUKEBOX_MAX_RESULTS: not a number: %q", v)
		}
		c.Jukebox.MaxResults = n
	}
	return nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("server.jwt_secret is required"))
	}
	for name, v := range map[string]string{
		"server.token_ttl":        c.Server.TokenTTL,
		"jukebox.buffer":          c.Jukebox.Buffer,
		"jukebox.search_interval": c.Jukebox.SearchInterval,
		"jukebox.submit_interval": c.Jukebox.SubmitInterval,
		"jukebox.acquire_timeout": c.Jukebox.AcquireTimeout,
	} {
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", name, v))
		}
	}
	if c.Jukebox.MaxResults < 1 || c.Jukebox.MaxResults > 50 {
		errs = append(errs, fmt.Errorf("jukebox.max_results must be between 1 and 50, got %d", c.Jukebox.MaxResults))
	}
	if v := *c.Jukebox.DefaultVolume; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("jukebox.default_volume must be between 0 and 1, got %v", v))
	}

	if c.Storage.MusicDir == "" {
		errs = append(errs, errors.New("storage.music_dir is required"))
	}
	if _, err := dbScheme(c.Storage.DBURL); err != nil {
		errs = append(errs, err)
	}

	switch c.YouTube.Backend {
	case backendYtdlp:
	case backendDataAPI:
		if c.YouTube.APIKey == "" {
			errs = append(errs, errors.New("youtube.api_key (or YOUTUBE_API_KEY) is required for the dataapi backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("youtube.backend must be %q or %q, got %q", backendYtdlp, backendDataAPI, c.YouTube.Backend))
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// dbScheme returns the driver family named by a DB_URL.
func dbScheme(dbURL string) (string, error) {
	if dbURL == "memory" {
		return "memory", nil
	}
	u, err := url.Parse(dbURL)
	if err != nil {
		return "", fmt.Errorf("storage.db_url: %w", err)
	}
	switch u.Scheme {
	case "sqlite", "sqlite3":
		return "sqlite", nil
	case "postgres", "postgresql":
		return "postgres", nil
	}
	return "", fmt.Errorf("storage.db_url: unsupported scheme %q", u.Scheme)
}

// mustDuration is only used after Validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func envString(name string, field *string) {
	if v := os.Getenv(name); v != "" {
		*field = v
	}
}
