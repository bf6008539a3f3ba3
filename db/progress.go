package db

import (
	"context"
	"fmt"

	"github.com/amonks/catalog/data"
)

// Progress is a snapshot of how much of the catalog we hold and how much of
// it is due for a refresh.
type Progress struct {
	Artists     int
	Albums      int
	StaleAlbums int
	Genres      int
}

func (db *DB) Progress(ctx context.Context) (*Progress, error) {
	var p Progress
	var err error
	if p.Artists, err = db.CountArtists(ctx); err != nil {
		return nil, err
	}
	if p.Albums, err = db.CountAlbums(ctx); err != nil {
		return nil, err
	}
	if p.StaleAlbums, err = db.CountStaleAlbums(ctx); err != nil {
		return nil, err
	}
	if p.Genres, err = db.CountGenres(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *DB) CountArtists(ctx context.Context) (int, error) {
	var count int64
	if err := db.
		WithContext(ctx).
		Model(&data.Artist{}).
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting artists: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountAlbums(ctx context.Context) (int, error) {
	var count int64
	if err := db.
		WithContext(ctx).
		Model(&data.Album{}).
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting albums: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountStaleAlbums(ctx context.Context) (int, error) {
	var count int64
	if err := db.
		WithContext(ctx).
		Model(&data.Album{}).
		Where("updated_at < ?", db.staleCutoff()).
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting stale albums: %w", err)
	}
	return int(count), nil
}

func (db *DB) CountGenres(ctx context.Context) (int, error) {
	var count int64
	if err := db.
		WithContext(ctx).
		Model(&data.Genre{}).
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("error counting genres: %w", err)
	}
	return int(count), nil
}
