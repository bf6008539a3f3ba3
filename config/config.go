// Package config loads the service configuration. Values are layered with
// koanf: built-in defaults, then an optional YAML file, then environment
// variables, each overriding the last.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/amonks/catalog/fetcher"
	"github.com/amonks/catalog/spotify"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar names a YAML file to load before the environment.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are tried in order when CONFIG_PATH isn't set.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	Spotify  SpotifyConfig  `koanf:"spotify"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Redis    RedisConfig    `koanf:"redis"`
	Genres   GenresConfig   `koanf:"genres"`
}

type SpotifyConfig struct {
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	APIURL       string        `koanf:"api_url"`
	TokenURL     string        `koanf:"token_url"`
	HTTPTimeout  time.Duration `koanf:"http_timeout"`

	// Minimum gap between provider requests.
	RequestDelay time.Duration `koanf:"request_delay"`

	// Base delay for the linear 429 backoff.
	RetryDelay time.Duration `koanf:"retry_delay"`
}

type DatabaseConfig struct {
	// sqlite:<path>, file:<path>, or postgres://...
	URL      string `koanf:"url"`
	WriteKey string `koanf:"write_key"`
}

type SyncConfig struct {
	NewReleasesLimit int           `koanf:"new_releases_limit"`
	DiscoveryArtists int           `koanf:"discovery_artists"`
	StaleLimit       int           `koanf:"stale_limit"`
	RefreshBatchSize int           `koanf:"refresh_batch_size"`
	ArtistDelay      time.Duration `koanf:"artist_delay"`

	// Zero turns the scheduler off.
	ScheduleInterval time.Duration `koanf:"schedule_interval"`

	QueueSize int `koanf:"queue_size"`

	// How often serve logs catalog progress. Zero turns it off.
	ReportInterval time.Duration `koanf:"report_interval"`
}

type ServerConfig struct {
	ListenAddr string `koanf:"listen_addr"`

	// Comma-separated origins allowed to call the triggers from a browser.
	CORSOrigins string `koanf:"cors_origins"`

	// Trigger requests allowed per client IP per minute. Zero turns the
	// limit off.
	TriggerRateLimit int `koanf:"trigger_rate_limit"`
}

// Origins splits CORSOrigins.
func (sc ServerConfig) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(sc.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type RedisConfig struct {
	// Empty turns notifications off.
	URL string `koanf:"url"`
}

type GenresConfig struct {
	SourceURL string `koanf:"source_url"`

	// Empty turns off caching of the genre page. Defaults to catalog/
	// under the XDG cache dir.
	CacheDir string `koanf:"cache_dir"`
}

func defaultConfig() *Config {
	sync := fetcher.DefaultConfig()
	return &Config{
		Spotify: SpotifyConfig{
			APIURL:       spotify.DefaultAPIURL,
			TokenURL:     spotify.DefaultTokenURL,
			HTTPTimeout:  spotify.DefaultTimeout,
			RequestDelay: 250 * time.Millisecond,
			RetryDelay:   spotify.DefaultRetryDelay,
		},
		Sync: SyncConfig{
			NewReleasesLimit: sync.NewReleasesLimit,
			DiscoveryArtists: sync.DiscoveryArtists,
			StaleLimit:       sync.StaleLimit,
			RefreshBatchSize: sync.RefreshBatchSize,
			ArtistDelay:      sync.ArtistDelay,
			QueueSize:        100,
			ReportInterval:   time.Minute,
		},
		Server: ServerConfig{
			ListenAddr:       ":8080",
			TriggerRateLimit: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Genres: GenresConfig{
			SourceURL: "https://everynoise.com",
			CacheDir:  filepath.Join(xdg.CacheHome, "catalog"),
		},
	}
}

// Load builds the configuration and validates it. A missing required
// variable is an error; callers treat it as fatal.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("error loading config defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file '%s': %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

var envMappings = map[string]string{
	"spotify_client_id":     "spotify.client_id",
	"spotify_client_secret": "spotify.client_secret",
	"spotify_api_url":       "spotify.api_url",
	"spotify_token_url":     "spotify.token_url",
	"http_timeout":          "spotify.http_timeout",
	"request_delay":         "spotify.request_delay",
	"retry_delay":           "spotify.retry_delay",

	"database_url":       "database.url",
	"database_write_key": "database.write_key",

	"new_releases_limit": "sync.new_releases_limit",
	"discovery_artists":  "sync.discovery_artists",
	"stale_limit":        "sync.stale_limit",
	"refresh_batch_size": "sync.refresh_batch_size",
	"artist_delay":       "sync.artist_delay",
	"schedule_interval":  "sync.schedule_interval",
	"queue_size":         "sync.queue_size",
	"report_interval":    "sync.report_interval",

	"listen_addr":        "server.listen_addr",
	"cors_origins":       "server.cors_origins",
	"trigger_rate_limit": "server.trigger_rate_limit",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"redis_url":  "redis.url",

	"genre_source_url": "genres.source_url",
	"genre_cache_dir":  "genres.cache_dir",
}

// envTransformFunc maps environment variable names onto config keys.
// Anything not in envMappings is dropped.
func envTransformFunc(s string) string {
	return envMappings[strings.ToLower(s)]
}

// Validate reports every missing required variable at once, by its
// environment name.
func (cfg *Config) Validate() error {
	var missing []string
	for name, value := range map[string]string{
		"SPOTIFY_CLIENT_ID":     cfg.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": cfg.Spotify.ClientSecret,
		"DATABASE_URL":          cfg.Database.URL,
		"DATABASE_WRITE_KEY":    cfg.Database.WriteKey,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	switch {
	case cfg.Spotify.HTTPTimeout <= 0:
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", cfg.Spotify.HTTPTimeout)
	case cfg.Spotify.RequestDelay < 0:
		return fmt.Errorf("REQUEST_DELAY can't be negative, got %s", cfg.Spotify.RequestDelay)
	case cfg.Spotify.RetryDelay < 0:
		return fmt.Errorf("RETRY_DELAY can't be negative, got %s", cfg.Spotify.RetryDelay)
	case cfg.Sync.ArtistDelay < 0:
		return fmt.Errorf("ARTIST_DELAY can't be negative, got %s", cfg.Sync.ArtistDelay)
	case cfg.Sync.ScheduleInterval < 0:
		return fmt.Errorf("SCHEDULE_INTERVAL can't be negative, got %s", cfg.Sync.ScheduleInterval)
	case cfg.Sync.ReportInterval < 0:
		return fmt.Errorf("REPORT_INTERVAL can't be negative, got %s", cfg.Sync.ReportInterval)
	case cfg.Server.TriggerRateLimit < 0:
		return fmt.Errorf("TRIGGER_RATE_LIMIT can't be negative, got %d", cfg.Server.TriggerRateLimit)
	}

	for name, n := range map[string]int{
		"NEW_RELEASES_LIMIT": cfg.Sync.NewReleasesLimit,
		"DISCOVERY_ARTISTS":  cfg.Sync.DiscoveryArtists,
		"STALE_LIMIT":        cfg.Sync.StaleLimit,
		"REFRESH_BATCH_SIZE": cfg.Sync.RefreshBatchSize,
		"QUEUE_SIZE":         cfg.Sync.QueueSize,
	} {
		if n < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, n)
		}
	}
	if cfg.Sync.RefreshBatchSize > spotify.MaxAlbumsPerRequest {
		return fmt.Errorf("REFRESH_BATCH_SIZE can't be more than %d, got %d", spotify.MaxAlbumsPerRequest, cfg.Sync.RefreshBatchSize)
	}
	return nil
}

// SpotifyOptions turns the provider settings into client options.
func (cfg *Config) SpotifyOptions() []spotify.Option {
	return []spotify.Option{
		spotify.WithAPIURL(cfg.Spotify.APIURL),
		spotify.WithTokenURL(cfg.Spotify.TokenURL),
		spotify.WithHTTPClient(&http.Client{Timeout: cfg.Spotify.HTTPTimeout}),
		spotify.WithRequestDelay(cfg.Spotify.RequestDelay),
		spotify.WithRetryDelay(cfg.Spotify.RetryDelay),
	}
}

// FetcherConfig turns the sync settings into a fetcher.Config running every
// phase.
func (cfg *Config) FetcherConfig() fetcher.Config {
	out := fetcher.DefaultConfig()
	out.NewReleasesLimit = cfg.Sync.NewReleasesLimit
	out.DiscoveryArtists = cfg.Sync.DiscoveryArtists
	out.StaleLimit = cfg.Sync.StaleLimit
	out.RefreshBatchSize = cfg.Sync.RefreshBatchSize
	out.ArtistDelay = cfg.Sync.ArtistDelay
	return out
}
