// catalog keeps a local album and artist catalog in sync with Spotify.
//
// Configuration comes from the environment (see the config package);
// SPOTIFY_CLIENT_ID, SPOTIFY_CLIENT_SECRET, DATABASE_URL, and
// DATABASE_WRITE_KEY are required.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/amonks/catalog/config"
	"github.com/amonks/catalog/db"
	"github.com/amonks/catalog/fetcher"
	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/notify"
	"github.com/amonks/catalog/spotify"
)

func main() {
	err := run()
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(os.Stderr, "canceled")
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var usage = strings.TrimSpace(`
usage: catalog $cmd
valid $cmd are 'serve', 'run', 'sync-artist', 'seed-genres', 'progress'
for help: catalog $cmd -help
`)

func run() error {
	if len(os.Args) < 2 {
		return errors.New(usage)
	}
	cmd, args := os.Args[1], os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	db, err := db.Open(cfg.Database.URL, cfg.Database.WriteKey)
	if err != nil {
		return err
	}
	defer db.Close()

	switch cmd {
	case "serve":
		return serve(ctx, cfg, db, args)
	case "run":
		return runSync(ctx, cfg, db, args)
	case "sync-artist":
		return syncArtist(ctx, cfg, db, args)
	case "seed-genres":
		return seedGenres(ctx, cfg, db, args)
	case "progress":
		return progress(ctx, db, args)
	default:
		return fmt.Errorf("unknown cmd: '%s'\n%s", cmd, usage)
	}
}

// newFetcher wires a fetcher to Spotify, the database, and, if REDIS_URL is
// set, the notification channel. The caller closes the publisher.
func newFetcher(cfg *config.Config, db *db.DB, fcfg fetcher.Config) (*fetcher.Fetcher, *spotify.Client, *notify.Publisher, error) {
	spo := spotify.New(cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.SpotifyOptions()...)

	pub, err := notify.New(cfg.Redis.URL)
	if err != nil {
		return nil, nil, nil, err
	}

	f := fetcher.New(db, spo, fcfg)
	if pub.Enabled() {
		f.SetNotifier(pub)
	}
	return f, spo, pub, nil
}
