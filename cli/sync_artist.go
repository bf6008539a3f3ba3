package main

import (
	"context"
	"fmt"

	"github.com/amonks/catalog/config"
	"github.com/amonks/catalog/db"
	"github.com/amonks/catalog/subcmd"
)

func syncArtist(ctx context.Context, cfg *config.Config, db *db.DB, args []string) error {
	subcmd := subcmd.New("sync-artist", "fetch one artist and their whole discography").
		SetArg("id", "string", "spotify artist id")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	f, spo, pub, err := newFetcher(cfg, db, cfg.FetcherConfig())
	if err != nil {
		return err
	}
	defer pub.Close()

	artist, err := spo.Artist(ctx, subcmd.Value())
	if err != nil {
		return err
	}
	n, err := f.SyncArtist(ctx, *artist)
	if err != nil {
		return err
	}

	fmt.Printf("synced %d albums of %s\n", n, artist.Name)
	return nil
}
