// Package limiter paces requests to an upstream API: a steady minimum gap
// between requests, plus an optional hold (like after a 429) that every caller
// waits out.
package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/amonks/catalog/logging"
	"golang.org/x/time/rate"
)

// New returns a Limiter that lets one request through per delay. A zero delay
// means no pacing.
func New(delay time.Duration) *Limiter {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Limiter{
		delay: delay,
		rate:  rate.NewLimiter(limit, 1),
	}
}

type Limiter struct {
	delay time.Duration
	rate  *rate.Limiter

	mu     sync.Mutex
	nextAt time.Time
}

// Wait blocks until a request may be sent: after any hold has passed, and
// after the pacing delay since the last request.
func (lim *Limiter) Wait(ctx context.Context) error {
	lim.mu.Lock()
	nextAt := lim.nextAt
	lim.mu.Unlock()

	if !nextAt.IsZero() {
		if dur := time.Until(nextAt); dur > 0 {
			if dur > time.Second {
				logging.Info().
					Dur("wait", dur.Truncate(time.Second)).
					Str("until", nextAt.Format(time.StampMilli)).
					Msg("waiting on limiter hold")
			}
			if err := Sleep(ctx, dur); err != nil {
				return err
			}
		}
	}

	return lim.rate.Wait(ctx)
}

// HoldFor makes every caller of Wait wait at least dur from now. A hold never
// shortens an existing, later one.
func (lim *Limiter) HoldFor(dur time.Duration) {
	at := time.Now().Add(dur)

	lim.mu.Lock()
	defer lim.mu.Unlock()
	if at.After(lim.nextAt) {
		lim.nextAt = at
	}
}

// Delay is the pacing gap this limiter was built with.
func (lim *Limiter) Delay() time.Duration {
	return lim.delay
}

// Sleep waits for dur or until ctx is done, whichever is first.
func Sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
