package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/spotify"
)

var ErrQueueFull = errors.New("artist sync queue is full")

// A Queue holds artists waiting for an on-demand sync. Callers enqueue and
// move on; a single consumer, started by Run, syncs them one at a time.
type Queue struct {
	syncer Syncer
	jobs   chan spotify.Artist

	// OnDone, if set, is called with the outcome of every sync.
	OnDone func(artist spotify.Artist, albums int, err error)
}

func NewQueue(syncer Syncer, size int) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{
		syncer: syncer,
		jobs:   make(chan spotify.Artist, size),
	}
}

// Enqueue adds an artist without waiting for the sync. It fails only if the
// queue is full.
func (q *Queue) Enqueue(artist spotify.Artist) error {
	select {
	case q.jobs <- artist:
		logging.Debug().Str("artist", artist.ID).Int("queued", len(q.jobs)).Msg("queued artist sync")
		return nil
	default:
		return fmt.Errorf("%w: can't queue artist '%s'", ErrQueueFull, artist.ID)
	}
}

func (q *Queue) run(ctx context.Context, c chan<- struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("canceled: %w", ctx.Err())
		case artist := <-q.jobs:
			albums, err := q.syncer.SyncArtist(ctx, artist)
			if err != nil {
				logging.Error().Err(err).Str("artist", artist.ID).Msg("queued artist sync failed")
			}
			if q.OnDone != nil {
				q.OnDone(artist, albums, err)
			}

			select {
			case c <- struct{}{}:
			case <-ctx.Done():
			}
		}
	}
}
