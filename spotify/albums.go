package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MaxAlbumsPerRequest is the most ids the several-albums endpoint takes.
const MaxAlbumsPerRequest = 20

type Image struct {
	URL    string `json:"url"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
}

type ExternalURLs struct {
	Spotify string `json:"spotify"`
}

// An ArtistRef is the short artist object embedded in albums and tracks.
type ArtistRef struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ExternalURLs ExternalURLs `json:"external_urls"`
}

type Track struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	DurationMS  int64       `json:"duration_ms"`
	DiscNumber  int64       `json:"disc_number"`
	TrackNumber int64       `json:"track_number"`
	Artists     []ArtistRef `json:"artists"`
}

// An Album is either the simplified album object (from listings, with no
// tracks and no popularity) or the full one from the album endpoints.
type Album struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	AlbumType            string       `json:"album_type"`
	TotalTracks          int64        `json:"total_tracks"`
	ReleaseDate          string       `json:"release_date"`
	ReleaseDatePrecision string       `json:"release_date_precision"`
	Popularity           int64        `json:"popularity"`
	Images               []Image      `json:"images"`
	ExternalURLs         ExternalURLs `json:"external_urls"`
	Artists              []ArtistRef  `json:"artists"`
	Tracks               Page[Track]  `json:"tracks"`
}

// FirstImageURL is the URL of the first (largest) image, or "".
func FirstImageURL(images []Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// NewReleases gets one page of newly released albums. These are simplified
// albums.
func (spo *Client) NewReleases(ctx context.Context, limit int) ([]Album, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var results struct {
		Albums Page[Album] `json:"albums"`
	}
	if err := spo.Get(ctx, "/browse/new-releases", query, &results); err != nil {
		return nil, fmt.Errorf("error fetching new releases: %w", err)
	}
	return results.Albums.Items, nil
}

// Album gets one full album. If the album has more tracks than fit on the
// embedded first page, the whole tracklist is fetched from the tracks
// endpoint.
func (spo *Client) Album(ctx context.Context, id string) (*Album, error) {
	endpoint := "/albums/" + url.PathEscape(id)

	var album Album
	if err := spo.Get(ctx, endpoint, nil, &album); err != nil {
		return nil, fmt.Errorf("error fetching album '%s': %w", id, err)
	}

	if album.Tracks.Next != "" {
		tracks, err := FetchAll[Track](ctx, spo, endpoint+"/tracks", nil)
		if err != nil {
			return nil, fmt.Errorf("error fetching tracks of album '%s': %w", id, err)
		}
		album.Tracks.Items = tracks
		album.Tracks.Next = ""
	}

	return &album, nil
}

// Albums gets up to MaxAlbumsPerRequest full albums in one request. Ids that
// Spotify doesn't know are left out of the result. Tracklists are whatever
// fits on the embedded first page.
func (spo *Client) Albums(ctx context.Context, ids []string) ([]Album, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxAlbumsPerRequest {
		return nil, fmt.Errorf("can't fetch %d albums at once; the limit is %d", len(ids), MaxAlbumsPerRequest)
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))

	var results struct {
		Albums []*Album `json:"albums"`
	}
	if err := spo.Get(ctx, "/albums", query, &results); err != nil {
		return nil, fmt.Errorf("error fetching %d albums: %w", len(ids), err)
	}

	albums := make([]Album, 0, len(results.Albums))
	for _, album := range results.Albums {
		if album == nil || album.ID == "" {
			continue
		}
		albums = append(albums, *album)
	}
	return albums, nil
}

// ArtistAlbums gets every album, single, and compilation by the given artist. These are
// simplified albums, and may contain duplicates.
func (spo *Client) ArtistAlbums(ctx context.Context, artistID string) ([]Album, error) {
	query := url.Values{}
	query.Set("include_groups", "album,single,compilation")

	albums, err := FetchAll[Album](ctx, spo, "/artists/"+url.PathEscape(artistID)+"/albums", query)
	if err != nil {
		return nil, fmt.Errorf("error fetching albums of artist '%s': %w", artistID, err)
	}
	return albums, nil
}
