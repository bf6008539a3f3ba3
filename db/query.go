package db

import (
	"context"
	"fmt"
	"time"

	"github.com/amonks/catalog/data"
)

// StaleAfter is how long an album goes without a successful upsert before
// it's due for a refresh.
const StaleAfter = 14 * 24 * time.Hour

// staleCutoff is the freshness timestamp below which a row is stale.
func (db *DB) staleCutoff() time.Time {
	return db.timestamp().Add(-StaleAfter)
}

// FindStaleAlbumIDs returns the ids of up to limit stale albums, least
// recently updated first.
func (db *DB) FindStaleAlbumIDs(ctx context.Context, limit int) ([]string, error) {
	ids := []string{}
	if limit <= 0 {
		return ids, nil
	}
	if err := db.
		WithContext(ctx).
		Model(&data.Album{}).
		Where("updated_at < ?", db.staleCutoff()).
		Order("updated_at asc").
		Order("spotify_id asc").
		Limit(limit).
		Pluck("spotify_id", &ids).
		Error; err != nil {
		return nil, fmt.Errorf("error finding stale albums: %w", err)
	}
	return ids, nil
}

// NeedsUpdate reports whether the album with the given id is missing or
// stale.
func (db *DB) NeedsUpdate(ctx context.Context, albumSpotifyID string) (bool, error) {
	var rows []data.Album
	if err := db.
		WithContext(ctx).
		Select("spotify_id", "updated_at").
		Where("spotify_id = ?", albumSpotifyID).
		Limit(1).
		Find(&rows).
		Error; err != nil {
		return false, fmt.Errorf("error checking freshness of album '%s': %w", albumSpotifyID, err)
	}
	if len(rows) == 0 {
		return true, nil
	}
	return rows[0].UpdatedAt.Before(db.staleCutoff()), nil
}

// GetAlbum returns the stored album with the given id.
func (db *DB) GetAlbum(ctx context.Context, albumSpotifyID string) (*data.Album, error) {
	var album data.Album
	if err := db.
		WithContext(ctx).
		Where("spotify_id = ?", albumSpotifyID).
		First(&album).
		Error; err != nil {
		return nil, fmt.Errorf("error getting album '%s': %w", albumSpotifyID, err)
	}
	return &album, nil
}

func (db *DB) GetArtist(ctx context.Context, artistSpotifyID string) (*data.Artist, error) {
	var artist data.Artist
	if err := db.
		WithContext(ctx).
		Where("spotify_id = ?", artistSpotifyID).
		First(&artist).
		Error; err != nil {
		return nil, fmt.Errorf("error getting artist '%s': %w", artistSpotifyID, err)
	}
	return &artist, nil
}

// RandomGenre picks a genre from the discovery pool. It returns "" if the
// pool is empty.
func (db *DB) RandomGenre(ctx context.Context) (string, error) {
	names := []string{}
	if err := db.
		WithContext(ctx).
		Model(&data.Genre{}).
		Order("random()").
		Limit(1).
		Pluck("name", &names).
		Error; err != nil {
		return "", fmt.Errorf("error picking a genre: %w", err)
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}
