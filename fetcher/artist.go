package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/metrics"
	"github.com/amonks/catalog/spotify"
)

// ArtistSync is the outcome of one SyncArtist call, as published to the
// notifier.
type ArtistSync struct {
	ArtistID     string        `json:"artistId"`
	Name         string        `json:"name"`
	AlbumsSynced int           `json:"albumsSynced"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// SyncArtist upserts the artist, then fetches and upserts every album in
// their discography, fresh or not. It returns how many albums were written.
//
// Albums that fail to fetch are skipped; anything else that goes wrong is
// returned.
func (f *Fetcher) SyncArtist(ctx context.Context, artist spotify.Artist) (int, error) {
	start := time.Now()
	n, err := f.syncArtist(ctx, artist)

	outcome := ArtistSync{
		ArtistID:     artist.ID,
		Name:         artist.Name,
		AlbumsSynced: n,
		Duration:     time.Since(start),
	}
	if err != nil {
		outcome.Error = err.Error()
		metrics.ArtistSyncs.WithLabelValues("failed").Inc()
		logging.Error().Err(err).Str("artist", artist.ID).Msg("artist sync failed")
	} else {
		metrics.ArtistSyncs.WithLabelValues("ok").Inc()
		logging.Info().Str("artist", artist.ID).Str("name", artist.Name).Int("albums", n).Msg("artist sync done")
	}
	f.publish(ctx, "artist", outcome)

	return n, err
}

func (f *Fetcher) syncArtist(ctx context.Context, artist spotify.Artist) (int, error) {
	if err := ValidateArtist(artist); err != nil {
		return 0, err
	}

	if _, err := f.store.UpsertArtists(ctx, []spotify.Artist{artist}); err != nil {
		return 0, fmt.Errorf("error upserting artist '%s': %w", artist.ID, err)
	}

	discography, err := f.spo.ArtistAlbums(ctx, artist.ID)
	if err != nil {
		return 0, fmt.Errorf("error fetching discography of artist '%s': %w", artist.ID, err)
	}

	albums, err := f.detailAlbums(ctx, "artist_sync", discography, false)
	if err != nil {
		return 0, fmt.Errorf("error fetching albums of artist '%s': %w", artist.ID, err)
	}

	n, err := f.store.UpsertAlbums(ctx, albums)
	if err != nil {
		return 0, fmt.Errorf("error upserting %d albums of artist '%s': %w", len(albums), artist.ID, err)
	}
	return n, nil
}

// ValidateArtist checks that an on-demand sync request names an artist.
func ValidateArtist(artist spotify.Artist) error {
	if strings.TrimSpace(artist.ID) == "" {
		return fmt.Errorf("%w: artist id is required", ErrValidation)
	}
	if strings.TrimSpace(artist.Name) == "" {
		return fmt.Errorf("%w: artist name is required", ErrValidation)
	}
	return nil
}
