package db

import (
	"context"
	"fmt"

	"github.com/amonks/catalog/data"
	"github.com/amonks/catalog/metrics"
	"github.com/amonks/catalog/spotify"
	"gorm.io/gorm/clause"
)

var (
	albumColumns = []string{
		"name",
		"artist_name",
		"artist_spotify_id",
		"image_url",
		"spotify_url",
		"kind",
		"popularity",
		"release_date",
		"release_date_precision",
		"total_tracks",
		"tracks",
		"updated_at",
	}

	// a refresh never touches the tracklist
	refreshColumns = []string{
		"name",
		"image_url",
		"popularity",
		"spotify_url",
		"updated_at",
	}

	artistColumns = []string{
		"name",
		"image_url",
		"spotify_url",
		"genres",
		"updated_at",
	}
)

// UpsertAlbums writes full albums, tracklists included, in one statement,
// replacing whatever was stored for the same ids. It returns the number of
// rows written.
func (db *DB) UpsertAlbums(ctx context.Context, albums []spotify.Album) (int, error) {
	return db.upsertAlbums(ctx, albums, albumColumns)
}

// RefreshAlbums is the lightweight upsert: for albums we already have, only
// the display fields, popularity, and freshness timestamp are updated.
func (db *DB) RefreshAlbums(ctx context.Context, albums []spotify.Album) (int, error) {
	return db.upsertAlbums(ctx, albums, refreshColumns)
}

func (db *DB) upsertAlbums(ctx context.Context, albums []spotify.Album, columns []string) (int, error) {
	if len(albums) == 0 {
		return 0, nil
	}

	rows, err := albumRows(albums, db.timestamp())
	if err != nil {
		return 0, err
	}

	if err := db.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "spotify_id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(&rows).
		Error; err != nil {
		return 0, fmt.Errorf("%w: error upserting %d albums: %w", ErrDatastoreWrite, len(rows), err)
	}

	metrics.RowsUpserted.WithLabelValues("albums").Add(float64(len(rows)))
	return len(rows), nil
}

// UpsertArtists writes artists in one statement, replacing whatever was
// stored for the same ids. It returns the number of rows written.
func (db *DB) UpsertArtists(ctx context.Context, artists []spotify.Artist) (int, error) {
	if len(artists) == 0 {
		return 0, nil
	}

	rows, err := artistRows(artists, db.timestamp())
	if err != nil {
		return 0, err
	}

	if err := db.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "spotify_id"}},
			DoUpdates: clause.AssignmentColumns(artistColumns),
		}).
		Create(&rows).
		Error; err != nil {
		return 0, fmt.Errorf("%w: error upserting %d artists: %w", ErrDatastoreWrite, len(rows), err)
	}

	metrics.RowsUpserted.WithLabelValues("artists").Add(float64(len(rows)))
	return len(rows), nil
}

// InsertGenres adds genres to the discovery pool, leaving any we already
// have alone. It returns the number of genres it was given.
func (db *DB) InsertGenres(ctx context.Context, genres []data.Genre) (int, error) {
	if len(genres) == 0 {
		return 0, nil
	}

	at := db.timestamp()
	rows := make([]data.Genre, len(genres))
	for i, genre := range genres {
		if genre.Name == "" {
			return 0, fmt.Errorf("%w: genre %d of %d has no name", ErrInvalidRecord, i+1, len(genres))
		}
		genre.UpdatedAt = at
		rows[i] = genre
	}

	if err := db.
		WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&rows, 500).
		Error; err != nil {
		return 0, fmt.Errorf("%w: error inserting %d genres: %w", ErrDatastoreWrite, len(rows), err)
	}

	metrics.RowsUpserted.WithLabelValues("genres").Add(float64(len(rows)))
	return len(rows), nil
}
