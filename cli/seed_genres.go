package main

import (
	"context"
	"fmt"

	"github.com/amonks/catalog/config"
	"github.com/amonks/catalog/db"
	"github.com/amonks/catalog/enao"
	"github.com/amonks/catalog/subcmd"
)

func seedGenres(ctx context.Context, cfg *config.Config, db *db.DB, args []string) error {
	subcmd := subcmd.New("seed-genres", "scrape everynoise.com for genres and add them to the discovery pool")
	var (
		url      = subcmd.String("url", cfg.Genres.SourceURL, "page to scrape")
		cacheDir = subcmd.String("cache", cfg.Genres.CacheDir, "directory to cache the page in; empty for none")
	)
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	genres, err := enao.New(*url, enao.WithCacheDir(*cacheDir)).Genres(ctx)
	if err != nil {
		return err
	}
	n, err := db.InsertGenres(ctx, genres)
	if err != nil {
		return err
	}

	fmt.Printf("seeded %d genres\n", n)
	return nil
}
