package workers

import (
	"context"
	"fmt"

	"github.com/amonks/catalog/data"
	"github.com/amonks/catalog/logging"
)

// GenreSource is satisfied by *enao.Scraper.
type GenreSource interface {
	Genres(ctx context.Context) ([]data.Genre, error)
}

// GenreStore is satisfied by *db.DB.
type GenreStore interface {
	CountGenres(ctx context.Context) (int, error)
	InsertGenres(ctx context.Context, genres []data.Genre) (int, error)
}

// runGenreSeeder fills the genre pool once, if it's empty, and then exits.
// Discovery falls back to its built-in seeds until it's done, so a failure
// here is logged rather than fatal.
func runGenreSeeder(ctx context.Context, c chan<- struct{}, source GenreSource, store GenreStore) error {
	if err := seedGenres(ctx, source, store); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("canceled: %w", ctx.Err())
		}
		logging.Warn().Err(err).Msg("genre seeding failed")
		return nil
	}

	select {
	case c <- struct{}{}:
	case <-ctx.Done():
	}
	return nil
}

func seedGenres(ctx context.Context, source GenreSource, store GenreStore) error {
	have, err := store.CountGenres(ctx)
	if err != nil {
		return err
	}
	if have > 0 {
		logging.Debug().Int("genres", have).Msg("genre pool already seeded")
		return nil
	}

	genres, err := source.Genres(ctx)
	if err != nil {
		return err
	}
	n, err := store.InsertGenres(ctx, genres)
	if err != nil {
		return err
	}
	logging.Info().Int("genres", n).Msg("seeded genre pool")
	return nil
}
