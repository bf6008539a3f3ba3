package fetcher

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/amonks/catalog/limiter"
	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/metrics"
	"github.com/amonks/catalog/spotify"
)

func (f *Fetcher) syncNewReleases(ctx context.Context) (int, error) {
	const phase = PhaseNewReleases

	releases, err := f.spo.NewReleases(ctx, f.cfg.NewReleasesLimit)
	if err != nil {
		if fatal(ctx, err) {
			return 0, err
		}
		logging.Error().Err(err).Str("phase", string(phase)).Msg("error fetching new releases")
		return 0, nil
	}

	albums, err := f.detailAlbums(ctx, phase, releases, true)
	if err != nil {
		return 0, err
	}

	n, err := f.store.UpsertAlbums(ctx, albums)
	if err != nil {
		metrics.PhaseItems.WithLabelValues(string(phase), "failed").Add(float64(len(albums)))
		logging.Error().Err(err).Str("phase", string(phase)).Int("albums", len(albums)).Msg("error upserting new releases")
		return 0, nil
	}
	metrics.PhaseItems.WithLabelValues(string(phase), "ok").Add(float64(n))
	logging.Info().Str("phase", string(phase)).Int("albums", n).Int("seen", len(releases)).Msg("synced new releases")
	return n, nil
}

// discoverArtists searches a random genre, then syncs each artist found. It
// returns the genre, how many artists synced, and how many of their albums
// were upserted.
func (f *Fetcher) discoverArtists(ctx context.Context) (string, int, int, error) {
	const phase = PhaseDiscovery

	genre := f.pickGenre(ctx)
	artists, err := f.spo.SearchArtistsByGenre(ctx, genre, f.cfg.DiscoveryArtists)
	if err != nil {
		if fatal(ctx, err) {
			return genre, 0, 0, err
		}
		logging.Error().Err(err).Str("phase", string(phase)).Str("genre", genre).Msg("error searching genre")
		return genre, 0, 0, nil
	}
	logging.Info().Str("phase", string(phase)).Str("genre", genre).Int("artists", len(artists)).Msg("discovering artists")

	var discovered, albums int
	for i, artist := range artists {
		if i > 0 {
			if err := limiter.Sleep(ctx, f.cfg.ArtistDelay); err != nil {
				return genre, discovered, albums, fmt.Errorf("canceled: %w", err)
			}
		}

		n, err := f.discoverArtist(ctx, artist)
		if err != nil {
			if fatal(ctx, err) {
				return genre, discovered, albums, err
			}
			metrics.PhaseItems.WithLabelValues(string(phase), "failed").Inc()
			logging.Warn().Err(err).Str("phase", string(phase)).Str("artist", artist.ID).Msg("skipping artist")
			continue
		}
		metrics.PhaseItems.WithLabelValues(string(phase), "ok").Inc()
		discovered++
		albums += n
	}

	return genre, discovered, albums, nil
}

func (f *Fetcher) discoverArtist(ctx context.Context, artist spotify.Artist) (int, error) {
	if _, err := f.store.UpsertArtists(ctx, []spotify.Artist{artist}); err != nil {
		return 0, err
	}

	discography, err := f.spo.ArtistAlbums(ctx, artist.ID)
	if err != nil {
		return 0, err
	}

	albums, err := f.detailAlbums(ctx, PhaseDiscovery, discography, true)
	if err != nil {
		return 0, err
	}

	n, err := f.store.UpsertAlbums(ctx, albums)
	if err != nil {
		return 0, err
	}
	logging.Info().Str("artist", artist.ID).Str("name", artist.Name).Int("albums", n).Int("discography", len(discography)).Msg("synced artist")
	return n, nil
}

// pickGenre chooses from the seeded genres, falling back to the configured
// list.
func (f *Fetcher) pickGenre(ctx context.Context) string {
	genre, err := f.store.RandomGenre(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("error picking a seeded genre; using the default list")
	}
	if genre != "" {
		return genre
	}
	return f.cfg.SeedGenres[rand.IntN(len(f.cfg.SeedGenres))]
}

func (f *Fetcher) refreshStaleAlbums(ctx context.Context) (int, error) {
	const phase = PhaseRefresh

	if count, err := f.store.CountStaleAlbums(ctx); err == nil {
		metrics.StaleAlbums.Set(float64(count))
	}

	ids, err := f.store.FindStaleAlbumIDs(ctx, f.cfg.StaleLimit)
	if err != nil {
		logging.Error().Err(err).Str("phase", string(phase)).Msg("error finding stale albums")
		return 0, nil
	}

	var refreshed int
	for batch := range slices.Chunk(ids, f.cfg.RefreshBatchSize) {
		if err := ctx.Err(); err != nil {
			return refreshed, fmt.Errorf("canceled: %w", err)
		}

		albums, err := f.spo.Albums(ctx, batch)
		if err != nil {
			if fatal(ctx, err) {
				return refreshed, err
			}
			metrics.PhaseItems.WithLabelValues(string(phase), "failed").Add(float64(len(batch)))
			logging.Warn().Err(err).Str("phase", string(phase)).Strs("albums", batch).Msg("skipping refresh batch")
			continue
		}
		if missing := missingIDs(batch, albums); len(missing) > 0 {
			// these stay stale; only an upsert moves updated_at
			metrics.PhaseItems.WithLabelValues(string(phase), "missing").Add(float64(len(missing)))
			logging.Warn().Str("phase", string(phase)).Strs("albums", missing).Msg("spotify returned no data for albums")
		}

		n, err := f.store.RefreshAlbums(ctx, albums)
		if err != nil {
			metrics.PhaseItems.WithLabelValues(string(phase), "failed").Add(float64(len(albums)))
			logging.Error().Err(err).Str("phase", string(phase)).Int("albums", len(albums)).Msg("error refreshing albums")
			continue
		}
		metrics.PhaseItems.WithLabelValues(string(phase), "ok").Add(float64(n))
		refreshed += n
	}

	logging.Info().Str("phase", string(phase)).Int("stale", len(ids)).Int("refreshed", refreshed).Msg("refreshed stale albums")
	return refreshed, nil
}

// missingIDs returns the ids in batch that have no album in albums.
func missingIDs(batch []string, albums []spotify.Album) []string {
	found := make(map[string]bool, len(albums))
	for _, album := range albums {
		found[album.ID] = true
	}
	var missing []string
	for _, id := range batch {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// detailAlbums fetches the full version of each album, in order and once per
// id. With skipFresh, albums that don't need an update are left out without
// being fetched. Albums that fail to fetch are logged and left out; only
// fatal errors are returned.
func (f *Fetcher) detailAlbums(ctx context.Context, phase Phase, albums []spotify.Album, skipFresh bool) ([]spotify.Album, error) {
	seen := map[string]bool{}
	var details []spotify.Album
	for _, album := range albums {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}
		if album.ID == "" || seen[album.ID] {
			continue
		}
		seen[album.ID] = true

		if skipFresh {
			needsUpdate, err := f.store.NeedsUpdate(ctx, album.ID)
			if err != nil {
				metrics.PhaseItems.WithLabelValues(string(phase), "failed").Inc()
				logging.Warn().Err(err).Str("phase", string(phase)).Str("album", album.ID).Msg("skipping album")
				continue
			}
			if !needsUpdate {
				metrics.PhaseItems.WithLabelValues(string(phase), "skipped").Inc()
				continue
			}
		}

		full, err := f.spo.Album(ctx, album.ID)
		if err != nil {
			if fatal(ctx, err) {
				return nil, err
			}
			metrics.PhaseItems.WithLabelValues(string(phase), "failed").Inc()
			logging.Warn().Err(err).Str("phase", string(phase)).Str("album", album.ID).Msg("skipping album")
			continue
		}
		details = append(details, *full)
	}
	return details, nil
}
