package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amonks/catalog/config"
	"github.com/amonks/catalog/spotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "sqlite:catalog.db")
	t.Setenv("DATABASE_WRITE_KEY", "key")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "id", cfg.Spotify.ClientID)
	assert.Equal(t, "secret", cfg.Spotify.ClientSecret)
	assert.Equal(t, "sqlite:catalog.db", cfg.Database.URL)
	assert.Equal(t, "key", cfg.Database.WriteKey)

	assert.Equal(t, spotify.DefaultAPIURL, cfg.Spotify.APIURL)
	assert.Equal(t, 250*time.Millisecond, cfg.Spotify.RequestDelay)
	assert.Equal(t, time.Second, cfg.Sync.ArtistDelay)
	assert.Equal(t, 20, cfg.Sync.NewReleasesLimit)
	assert.Equal(t, 5, cfg.Sync.DiscoveryArtists)
	assert.Equal(t, 100, cfg.Sync.StaleLimit)
	assert.Equal(t, 20, cfg.Sync.RefreshBatchSize)
	assert.Zero(t, cfg.Sync.ScheduleInterval)
	assert.Equal(t, ":8080", cfg.Server.ListenAddr)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 30, cfg.Server.TriggerRateLimit)
	assert.Empty(t, cfg.Server.Origins())
	assert.Equal(t, "catalog", filepath.Base(cfg.Genres.CacheDir))
}

func TestLoadEnvironment(t *testing.T) {
	setRequired(t)
	t.Setenv("REQUEST_DELAY", "100ms")
	t.Setenv("ARTIST_DELAY", "0")
	t.Setenv("STALE_LIMIT", "7")
	t.Setenv("SCHEDULE_INTERVAL", "1h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.Spotify.RequestDelay)
	assert.Zero(t, cfg.Sync.ArtistDelay)
	assert.Equal(t, 7, cfg.Sync.StaleLimit)
	assert.Equal(t, time.Hour, cfg.Sync.ScheduleInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.Origins())

	fc := cfg.FetcherConfig()
	assert.Equal(t, 7, fc.StaleLimit)
	assert.Zero(t, fc.ArtistDelay)
}

func TestLoadFile(t *testing.T) {
	setRequired(t)
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sync:
  discovery_artists: 9
  stale_limit: 50
server:
  listen_addr: ":9000"
`), 0o644))
	t.Setenv(config.ConfigPathEnvVar, path)
	t.Setenv("STALE_LIMIT", "12")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9, cfg.Sync.DiscoveryArtists)
	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	// The environment wins over the file.
	assert.Equal(t, 12, cfg.Sync.StaleLimit)
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	t.Setenv("DATABASE_WRITE_KEY", "  ")

	_, err := config.Load()
	require.ErrorIs(t, err, config.ErrMissingConfig)
	assert.ErrorContains(t, err, "DATABASE_WRITE_KEY, SPOTIFY_CLIENT_SECRET")
}

func TestLoadInvalid(t *testing.T) {
	for env, value := range map[string]string{
		"REFRESH_BATCH_SIZE": "21",
		"NEW_RELEASES_LIMIT": "0",
		"ARTIST_DELAY":       "-1s",
		"HTTP_TIMEOUT":       "0s",
	} {
		t.Run(env, func(t *testing.T) {
			setRequired(t)
			t.Setenv(env, value)

			_, err := config.Load()
			assert.ErrorContains(t, err, env)
		})
	}
}
