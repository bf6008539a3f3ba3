package main

import (
	"context"
	"fmt"
	"time"

	"github.com/amonks/catalog/config"
	"github.com/amonks/catalog/db"
	"github.com/amonks/catalog/enao"
	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/server"
	"github.com/amonks/catalog/subcmd"
	"github.com/amonks/catalog/workers"
	"golang.org/x/sync/errgroup"
)

func serve(ctx context.Context, cfg *config.Config, db *db.DB, args []string) error {
	subcmd := subcmd.New("serve", "serve the sync triggers over http, and run scheduled syncs\nif SCHEDULE_INTERVAL is set")
	var (
		addr       = subcmd.String("addr", cfg.Server.ListenAddr, "http listen address")
		runAtStart = subcmd.Bool("run-at-start", false, "start a sync run right away instead of after one interval")
		seed       = subcmd.Bool("seed-genres", true, "scrape genres at start if the discovery pool is empty")
	)
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	f, _, pub, err := newFetcher(cfg, db, cfg.FetcherConfig())
	if err != nil {
		return err
	}
	defer pub.Close()
	if err := pub.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("redis unreachable; notifications will fail")
	}

	queue := workers.NewQueue(f, cfg.Sync.QueueSize)
	opts := workers.Options{
		Queue: queue,
		Schedule: workers.Schedule{
			Interval:   cfg.Sync.ScheduleInterval,
			RunAtStart: *runAtStart,
		},
		Progress:       db,
		ReportInterval: cfg.Sync.ReportInterval,
	}
	if *seed {
		opts.Genres = enao.New(cfg.Genres.SourceURL, enao.WithCacheDir(cfg.Genres.CacheDir))
		opts.GenreStore = db
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return workers.Run(ctx, f, opts)
	})
	g.Go(func() error {
		srv := server.New(f, queue,
			server.WithCORSOrigins(cfg.Server.Origins()...),
			server.WithRateLimit(cfg.Server.TriggerRateLimit, time.Minute),
		)
		return server.Run(ctx, srv.Router(), *addr)
	})
	return g.Wait()
}
