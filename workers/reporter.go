package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/amonks/catalog/db"
	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/metrics"
)

// ProgressSource is satisfied by *db.DB.
type ProgressSource interface {
	Progress(ctx context.Context) (*db.Progress, error)
}

// runReporter logs catalog progress every interval and exports it as gauges.
// A failed report is logged and tried again next tick.
func runReporter(ctx context.Context, c chan<- struct{}, source ProgressSource, interval time.Duration) error {
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		if err := report(ctx, source); err != nil {
			logging.Warn().Err(err).Msg("progress report failed")
		} else {
			select {
			case c <- struct{}{}:
			case <-ctx.Done():
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("canceled: %w", ctx.Err())
		case <-tick.C:
		}
	}
}

func report(ctx context.Context, source ProgressSource) error {
	p, err := source.Progress(ctx)
	if err != nil {
		return fmt.Errorf("reporting error: %w", err)
	}

	metrics.CatalogRows.WithLabelValues("artists").Set(float64(p.Artists))
	metrics.CatalogRows.WithLabelValues("albums").Set(float64(p.Albums))
	metrics.CatalogRows.WithLabelValues("genres").Set(float64(p.Genres))
	metrics.StaleAlbums.Set(float64(p.StaleAlbums))

	logging.Info().
		Int("artists", p.Artists).
		Int("albums", p.Albums).
		Int("stale_albums", p.StaleAlbums).
		Int("genres", p.Genres).
		Msg("progress")
	return nil
}
