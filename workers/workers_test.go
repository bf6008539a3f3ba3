package workers_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amonks/catalog/data"
	"github.com/amonks/catalog/db"
	"github.com/amonks/catalog/fetcher"
	"github.com/amonks/catalog/spotify"
	"github.com/amonks/catalog/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	mu      sync.Mutex
	synced  []string
	runs    chan struct{}
	runErr  error
	failing map[string]bool
}

func (s *fakeSyncer) Run(ctx context.Context) (fetcher.Summary, error) {
	select {
	case s.runs <- struct{}{}:
	case <-ctx.Done():
	}
	return fetcher.Summary{RunID: "run"}, s.runErr
}

func (s *fakeSyncer) SyncArtist(ctx context.Context, artist spotify.Artist) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, artist.ID)
	if s.failing[artist.ID] {
		return 0, errors.New("boom")
	}
	return 2, nil
}

type outcome struct {
	id     string
	albums int
	err    error
}

func start(t *testing.T, syncer workers.Syncer, opts workers.Options) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- workers.Run(ctx, syncer, opts) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("workers didn't stop")
		}
	})
}

func TestQueue(t *testing.T) {
	syncer := &fakeSyncer{failing: map[string]bool{"bad": true}}
	q := workers.NewQueue(syncer, 10)
	outcomes := make(chan outcome, 10)
	q.OnDone = func(artist spotify.Artist, albums int, err error) {
		outcomes <- outcome{artist.ID, albums, err}
	}

	for _, id := range []string{"ar1", "bad", "ar2"} {
		require.NoError(t, q.Enqueue(spotify.Artist{ID: id, Name: id}))
	}
	start(t, syncer, workers.Options{Queue: q})

	var got []outcome
	for i := 0; i < 3; i++ {
		select {
		case o := <-outcomes:
			got = append(got, o)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for syncs")
		}
	}

	require.Len(t, got, 3)
	assert.Equal(t, outcome{"ar1", 2, nil}, got[0])
	assert.Equal(t, "bad", got[1].id)
	assert.Error(t, got[1].err)
	assert.Equal(t, outcome{"ar2", 2, nil}, got[2])
}

func TestQueueFull(t *testing.T) {
	q := workers.NewQueue(&fakeSyncer{}, 1)
	require.NoError(t, q.Enqueue(spotify.Artist{ID: "ar1"}))
	assert.ErrorIs(t, q.Enqueue(spotify.Artist{ID: "ar2"}), workers.ErrQueueFull)
}

func TestScheduler(t *testing.T) {
	for _, runErr := range []error{nil, errors.New("boom"), fetcher.ErrRunInProgress} {
		name := "ok"
		if runErr != nil {
			name = runErr.Error()
		}
		t.Run(name, func(t *testing.T) {
			syncer := &fakeSyncer{runs: make(chan struct{}), runErr: runErr}
			start(t, syncer, workers.Options{Schedule: workers.Schedule{Interval: 5 * time.Millisecond, RunAtStart: true}})

			for i := 0; i < 3; i++ {
				select {
				case <-syncer.runs:
				case <-time.After(5 * time.Second):
					t.Fatalf("timed out waiting for run %d", i+1)
				}
			}
		})
	}
}

func TestRunWithNoWork(t *testing.T) {
	assert.NoError(t, workers.Run(context.Background(), &fakeSyncer{}, workers.Options{}))
}

type fakeProgress struct {
	reports chan struct{}
	fail    bool
}

func (p *fakeProgress) Progress(ctx context.Context) (*db.Progress, error) {
	select {
	case p.reports <- struct{}{}:
	case <-ctx.Done():
	}
	if p.fail {
		return nil, errors.New("boom")
	}
	return &db.Progress{Artists: 3, Albums: 10, StaleAlbums: 2, Genres: 5}, nil
}

func TestReporter(t *testing.T) {
	for _, fail := range []bool{false, true} {
		source := &fakeProgress{reports: make(chan struct{}), fail: fail}
		start(t, &fakeSyncer{}, workers.Options{Progress: source, ReportInterval: 5 * time.Millisecond})

		for i := 0; i < 3; i++ {
			select {
			case <-source.reports:
			case <-time.After(5 * time.Second):
				t.Fatalf("timed out waiting for report %d", i+1)
			}
		}
	}
}

type fakeGenres struct {
	mu       sync.Mutex
	have     int
	inserted []data.Genre
	fetchErr error
}

func (g *fakeGenres) Genres(ctx context.Context) ([]data.Genre, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return []data.Genre{{Name: "shoegaze"}, {Name: "zolo"}}, nil
}

func (g *fakeGenres) CountGenres(ctx context.Context) (int, error) {
	return g.have, nil
}

func (g *fakeGenres) InsertGenres(ctx context.Context, genres []data.Genre) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inserted = append(g.inserted, genres...)
	return len(genres), nil
}

func TestGenreSeeder(t *testing.T) {
	ctx := context.Background()

	t.Run("empty pool", func(t *testing.T) {
		g := &fakeGenres{}
		require.NoError(t, workers.Run(ctx, &fakeSyncer{}, workers.Options{Genres: g, GenreStore: g}))
		assert.Len(t, g.inserted, 2)
	})

	t.Run("already seeded", func(t *testing.T) {
		g := &fakeGenres{have: 100}
		require.NoError(t, workers.Run(ctx, &fakeSyncer{}, workers.Options{Genres: g, GenreStore: g}))
		assert.Empty(t, g.inserted)
	})

	t.Run("scrape failure isn't fatal", func(t *testing.T) {
		g := &fakeGenres{fetchErr: errors.New("down")}
		require.NoError(t, workers.Run(ctx, &fakeSyncer{}, workers.Options{Genres: g, GenreStore: g}))
		assert.Empty(t, g.inserted)
	})
}
