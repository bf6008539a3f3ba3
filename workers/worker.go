// Package workers runs the background side of the sync service: a scheduler
// that starts a sync run every interval, a queue of on-demand artist syncs,
// and some housekeeping.
package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amonks/catalog/fetcher"
	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/spotify"
	"golang.org/x/sync/errgroup"
)

// Syncer is satisfied by *fetcher.Fetcher.
type Syncer interface {
	Run(ctx context.Context) (fetcher.Summary, error)
	SyncArtist(ctx context.Context, artist spotify.Artist) (int, error)
}

type worker struct {
	f func(context.Context, chan<- struct{}) error
}

// engine runs named workers together. Each worker sends on its channel when
// it finishes a batch of work.
type engine struct {
	mu      sync.Mutex
	workers map[string]worker
}

func (eng *engine) add(name string, f func(context.Context, chan<- struct{}) error) {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	eng.workers[name] = worker{f: f}
}

// start runs every worker until ctx is done or one of them fails, which
// stops the rest.
func (eng *engine) start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	eng.mu.Lock()
	for name, w := range eng.workers {
		events := make(chan struct{})
		go func() {
			for range events {
				logging.Debug().Str("worker", name).Msg("batch")
			}
		}()

		g.Go(func() error {
			defer close(events)
			logging.Info().Str("worker", name).Msg("start")
			err := w.f(ctx, events)
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Str("worker", name).Msg("worker failed")
				return fmt.Errorf("worker '%s': %w", name, err)
			}
			logging.Info().Str("worker", name).Msg("done")
			return nil
		})
	}
	eng.mu.Unlock()

	return g.Wait()
}

// Options picks which workers Run starts. Zero values leave a worker out.
type Options struct {
	Queue    *Queue
	Schedule Schedule

	// Progress is reported every ReportInterval.
	Progress       ProgressSource
	ReportInterval time.Duration

	// If both are set, an empty genre pool is filled from Genres at start.
	Genres     GenreSource
	GenreStore GenreStore
}

// Run runs the configured workers until ctx is done or one of them fails.
func Run(ctx context.Context, syncer Syncer, opts Options) error {
	eng := engine{
		workers: map[string]worker{},
	}

	if opts.Queue != nil {
		eng.add("artist_queue", opts.Queue.run)
	}
	if opts.Schedule.Interval > 0 {
		eng.add("scheduler", func(ctx context.Context, c chan<- struct{}) error {
			return runScheduler(ctx, c, syncer, opts.Schedule)
		})
	}
	if opts.Progress != nil && opts.ReportInterval > 0 {
		eng.add("reporter", func(ctx context.Context, c chan<- struct{}) error {
			return runReporter(ctx, c, opts.Progress, opts.ReportInterval)
		})
	}
	if opts.Genres != nil && opts.GenreStore != nil {
		eng.add("genre_seeder", func(ctx context.Context, c chan<- struct{}) error {
			return runGenreSeeder(ctx, c, opts.Genres, opts.GenreStore)
		})
	}

	return eng.start(ctx)
}
