package limiter_test

import (
	"context"
	"testing"
	"time"

	"github.com/amonks/catalog/limiter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitPaces(t *testing.T) {
	lim := limiter.New(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, lim.Wait(ctx))
	}
	// first request is free, the next two wait one delay each
	assert.GreaterOrEqual(t, time.Since(start), 55*time.Millisecond)
}

func TestZeroDelayDoesNotWait(t *testing.T) {
	lim := limiter.New(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, lim.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestHoldFor(t *testing.T) {
	lim := limiter.New(0)
	lim.HoldFor(40 * time.Millisecond)
	lim.HoldFor(time.Millisecond)

	start := time.Now()
	require.NoError(t, lim.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}

func TestWaitCanceled(t *testing.T) {
	lim := limiter.New(0)
	lim.HoldFor(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, lim.Wait(ctx), context.DeadlineExceeded)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, limiter.Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, limiter.Sleep(ctx, time.Hour), context.Canceled)
}
