package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/amonks/catalog/data"
	"github.com/amonks/catalog/spotify"
)

// albumRows maps Spotify albums to rows stamped with at. Any album without an
// id or with an unknown kind fails the whole batch. When an id appears more
// than once, the last occurrence wins.
func albumRows(albums []spotify.Album, at time.Time) ([]data.Album, error) {
	rows := make([]data.Album, 0, len(albums))
	index := map[string]int{}
	for i, album := range albums {
		row, err := albumRow(album, at)
		if err != nil {
			return nil, fmt.Errorf("album %d of %d: %w", i+1, len(albums), err)
		}
		if j, ok := index[row.SpotifyID]; ok {
			rows[j] = row
			continue
		}
		index[row.SpotifyID] = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}

func albumRow(album spotify.Album, at time.Time) (data.Album, error) {
	if album.ID == "" {
		return data.Album{}, fmt.Errorf("%w: album '%s' has no id", ErrInvalidRecord, album.Name)
	}
	kind := strings.ToLower(album.AlbumType)
	if !data.ValidKind(kind) {
		return data.Album{}, fmt.Errorf("%w: album '%s' has unknown kind '%s'", ErrInvalidRecord, album.ID, album.AlbumType)
	}

	row := data.Album{
		SpotifyID:            album.ID,
		Name:                 album.Name,
		ImageURL:             spotify.FirstImageURL(album.Images),
		SpotifyURL:           album.ExternalURLs.Spotify,
		Kind:                 kind,
		Popularity:           album.Popularity,
		ReleaseDate:          album.ReleaseDate,
		ReleaseDatePrecision: album.ReleaseDatePrecision,
		TotalTracks:          album.TotalTracks,
		Tracks:               make([]data.Track, len(album.Tracks.Items)),
		UpdatedAt:            at,
	}
	if len(album.Artists) > 0 {
		row.ArtistName = album.Artists[0].Name
		row.ArtistSpotifyID = album.Artists[0].ID
	}
	for i, track := range album.Tracks.Items {
		row.Tracks[i] = data.Track{
			SpotifyID:       track.ID,
			Name:            track.Name,
			DurationSeconds: track.DurationMS / 1000,
			Position:        i + 1,
		}
	}
	return row, nil
}

func artistRows(artists []spotify.Artist, at time.Time) ([]data.Artist, error) {
	rows := make([]data.Artist, 0, len(artists))
	index := map[string]int{}
	for i, artist := range artists {
		if artist.ID == "" {
			return nil, fmt.Errorf("artist %d of %d: %w: artist '%s' has no id", i+1, len(artists), ErrInvalidRecord, artist.Name)
		}
		genres := artist.Genres
		if genres == nil {
			genres = []string{}
		}
		row := data.Artist{
			SpotifyID:  artist.ID,
			Name:       artist.Name,
			ImageURL:   spotify.FirstImageURL(artist.Images),
			SpotifyURL: artist.ExternalURLs.Spotify,
			Genres:     genres,
			UpdatedAt:  at,
		}
		if j, ok := index[row.SpotifyID]; ok {
			rows[j] = row
			continue
		}
		index[row.SpotifyID] = len(rows)
		rows = append(rows, row)
	}
	return rows, nil
}
