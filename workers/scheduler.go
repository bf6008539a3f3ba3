package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amonks/catalog/fetcher"
	"github.com/amonks/catalog/logging"
)

type Schedule struct {
	Interval time.Duration

	// RunAtStart starts the first run right away instead of after one
	// interval.
	RunAtStart bool
}

func runScheduler(ctx context.Context, c chan<- struct{}, syncer Syncer, schedule Schedule) error {
	if schedule.RunAtStart {
		runOnce(ctx, c, syncer)
	}

	tick := time.NewTicker(schedule.Interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("canceled: %w", ctx.Err())
		case <-tick.C:
			runOnce(ctx, c, syncer)
		}
	}
}

// runOnce does one sync run. A failed run only gets logged; the next tick
// tries again.
func runOnce(ctx context.Context, c chan<- struct{}, syncer Syncer) {
	summary, err := syncer.Run(ctx)
	switch {
	case errors.Is(err, fetcher.ErrRunInProgress):
		logging.Info().Msg("skipping scheduled run; one is already going")
		return
	case err != nil:
		logging.Error().Err(err).Str("run", summary.RunID).Msg("scheduled run failed")
	}

	select {
	case c <- struct{}{}:
	case <-ctx.Done():
	}
}
