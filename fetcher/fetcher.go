// Package fetcher keeps the catalog in sync with Spotify. A run goes through
// three phases in order: new releases, discovery of artists from a random
// genre, and a popularity refresh of stale albums. SyncArtist pulls one
// artist's whole discography on demand.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/metrics"
	"github.com/amonks/catalog/spotify"
	"github.com/google/uuid"
)

var (
	ErrValidation    = errors.New("validation failed")
	ErrRunInProgress = errors.New("a sync run is already in progress")
)

type Phase string

const (
	PhaseNewReleases Phase = "new_releases"
	PhaseDiscovery   Phase = "discovery"
	PhaseRefresh     Phase = "refresh"
)

// AllPhases is every phase, in the order a run goes through them.
var AllPhases = []Phase{PhaseNewReleases, PhaseDiscovery, PhaseRefresh}

// ParsePhase accepts a phase name like "discovery".
func ParsePhase(s string) (Phase, error) {
	phase := Phase(s)
	if !slices.Contains(AllPhases, phase) {
		return "", fmt.Errorf("unknown phase '%s'", s)
	}
	return phase, nil
}

// DefaultSeedGenres is the discovery pool used until genres have been
// seeded into the datastore.
var DefaultSeedGenres = []string{
	"indie rock",
	"hip hop",
	"jazz",
	"electronic",
	"folk",
	"r&b",
	"metal",
	"ambient",
	"punk",
	"soul",
	"shoegaze",
	"afrobeat",
}

type Config struct {
	NewReleasesLimit int
	DiscoveryArtists int
	StaleLimit       int
	RefreshBatchSize int

	// ArtistDelay is the pause between artists during discovery.
	ArtistDelay time.Duration

	SeedGenres []string

	// Phases restricts Run to some phases. Empty means all of them.
	Phases []Phase
}

func DefaultConfig() Config {
	return Config{
		NewReleasesLimit: 20,
		DiscoveryArtists: 5,
		StaleLimit:       100,
		RefreshBatchSize: 20,
		ArtistDelay:      time.Second,
		SeedGenres:       DefaultSeedGenres,
	}
}

// Provider is the part of *spotify.Client the fetcher uses.
type Provider interface {
	NewReleases(ctx context.Context, limit int) ([]spotify.Album, error)
	Album(ctx context.Context, id string) (*spotify.Album, error)
	Albums(ctx context.Context, ids []string) ([]spotify.Album, error)
	SearchArtistsByGenre(ctx context.Context, genre string, limit int) ([]spotify.Artist, error)
	ArtistAlbums(ctx context.Context, artistID string) ([]spotify.Album, error)
}

// Store is the part of *db.DB the fetcher uses.
type Store interface {
	UpsertAlbums(ctx context.Context, albums []spotify.Album) (int, error)
	RefreshAlbums(ctx context.Context, albums []spotify.Album) (int, error)
	UpsertArtists(ctx context.Context, artists []spotify.Artist) (int, error)
	NeedsUpdate(ctx context.Context, albumSpotifyID string) (bool, error)
	FindStaleAlbumIDs(ctx context.Context, limit int) ([]string, error)
	CountStaleAlbums(ctx context.Context) (int, error)
	RandomGenre(ctx context.Context) (string, error)
}

// Notifier gets run summaries and artist sync outcomes. *notify.Publisher is
// one.
type Notifier interface {
	Publish(ctx context.Context, kind string, payload any) error
}

type Fetcher struct {
	store    Store
	spo      Provider
	cfg      Config
	notifier Notifier

	runMu sync.Mutex
}

func New(store Store, spo Provider, cfg Config) *Fetcher {
	defaults := DefaultConfig()
	if cfg.NewReleasesLimit <= 0 {
		cfg.NewReleasesLimit = defaults.NewReleasesLimit
	}
	if cfg.DiscoveryArtists <= 0 {
		cfg.DiscoveryArtists = defaults.DiscoveryArtists
	}
	if cfg.StaleLimit <= 0 {
		cfg.StaleLimit = defaults.StaleLimit
	}
	if cfg.RefreshBatchSize <= 0 || cfg.RefreshBatchSize > spotify.MaxAlbumsPerRequest {
		cfg.RefreshBatchSize = defaults.RefreshBatchSize
	}
	if len(cfg.SeedGenres) == 0 {
		cfg.SeedGenres = defaults.SeedGenres
	}
	if len(cfg.Phases) == 0 {
		cfg.Phases = AllPhases
	}
	return &Fetcher{
		store: store,
		spo:   spo,
		cfg:   cfg,
	}
}

// SetNotifier makes the fetcher publish run summaries and artist sync
// outcomes.
func (f *Fetcher) SetNotifier(n Notifier) {
	f.notifier = n
}

// Summary counts what a run got done. Counts can be lower than the
// configured limits when items were fresh or failed.
type Summary struct {
	RunID                             string        `json:"runId"`
	Genre                             string        `json:"genre,omitempty"`
	NewReleasesProcessed              int           `json:"newReleasesProcessed"`
	ArtistsDiscovered                 int           `json:"artistsDiscovered"`
	NewAlbumsFromArtistsProcessed     int           `json:"newAlbumsFromArtistsProcessed"`
	ExistingAlbumsPopularityRefreshed int           `json:"existingAlbumsPopularityRefreshed"`
	Duration                          time.Duration `json:"duration"`
}

// Run goes through the configured phases in order. Failures of single
// albums or artists are logged and skipped. Run only fails if Spotify
// credentials can't be exchanged, if ctx ends, or if another run is going.
func (f *Fetcher) Run(ctx context.Context) (Summary, error) {
	if !f.runMu.TryLock() {
		return Summary{}, ErrRunInProgress
	}
	defer f.runMu.Unlock()

	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	log := logging.With().Str("run", summary.RunID).Logger()
	log.Info().Interface("phases", f.cfg.Phases).Msg("starting sync run")

	for _, phase := range AllPhases {
		if !slices.Contains(f.cfg.Phases, phase) {
			continue
		}
		if err := ctx.Err(); err != nil {
			metrics.Runs.WithLabelValues("canceled").Inc()
			return summary, fmt.Errorf("canceled: %w", err)
		}

		var err error
		switch phase {
		case PhaseNewReleases:
			summary.NewReleasesProcessed, err = f.syncNewReleases(ctx)
		case PhaseDiscovery:
			summary.Genre, summary.ArtistsDiscovered, summary.NewAlbumsFromArtistsProcessed, err = f.discoverArtists(ctx)
		case PhaseRefresh:
			summary.ExistingAlbumsPopularityRefreshed, err = f.refreshStaleAlbums(ctx)
		}
		if err != nil {
			summary.Duration = time.Since(start)
			metrics.Runs.WithLabelValues("failed").Inc()
			log.Error().Err(err).Str("phase", string(phase)).Msg("sync run failed")
			return summary, fmt.Errorf("error in %s phase: %w", phase, err)
		}
	}

	summary.Duration = time.Since(start)
	metrics.Runs.WithLabelValues("ok").Inc()
	metrics.RunDuration.Observe(summary.Duration.Seconds())
	log.Info().
		Int("new_releases", summary.NewReleasesProcessed).
		Int("artists", summary.ArtistsDiscovered).
		Int("artist_albums", summary.NewAlbumsFromArtistsProcessed).
		Int("refreshed", summary.ExistingAlbumsPopularityRefreshed).
		Dur("duration", summary.Duration).
		Msg("sync run done")

	f.publish(ctx, "run", summary)
	return summary, nil
}

func (f *Fetcher) publish(ctx context.Context, kind string, payload any) {
	if f.notifier == nil {
		return
	}
	if err := f.notifier.Publish(ctx, kind, payload); err != nil {
		logging.Warn().Err(err).Str("kind", kind).Msg("error publishing sync event")
	}
}

// fatal reports whether err should end a run rather than skip one item.
func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, spotify.ErrCredentialExchange) || ctx.Err() != nil
}
