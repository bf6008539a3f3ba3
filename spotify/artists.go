package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

type Artist struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Genres       []string     `json:"genres"`
	Popularity   int64        `json:"popularity"`
	Images       []Image      `json:"images"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

func (spo *Client) Artist(ctx context.Context, id string) (*Artist, error) {
	var artist Artist
	if err := spo.Get(ctx, "/artists/"+url.PathEscape(id), nil, &artist); err != nil {
		return nil, fmt.Errorf("error fetching artist '%s': %w", id, err)
	}
	return &artist, nil
}

// SearchArtistsByGenre returns up to limit artists tagged with genre.
func (spo *Client) SearchArtistsByGenre(ctx context.Context, genre string, limit int) ([]Artist, error) {
	query := url.Values{}
	query.Set("q", fmt.Sprintf("genre:%q", genre))
	query.Set("type", "artist")
	query.Set("limit", strconv.Itoa(limit))

	var results struct {
		Artists Page[Artist] `json:"artists"`
	}
	if err := spo.Get(ctx, "/search", query, &results); err != nil {
		return nil, fmt.Errorf("error searching for artists in genre '%s': %w", genre, err)
	}
	return results.Artists.Items, nil
}
