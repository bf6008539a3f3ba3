// Package enao scrapes the genre map at everynoise.com ("every noise at
// once"). The genres it finds become the pool that artist discovery searches
// from.
package enao

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amonks/catalog/data"
	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/readthrough"
	"github.com/amonks/catalog/request"
)

const DefaultURL = "https://everynoise.com"

// The page changes rarely; a cached copy is good for a week.
const cacheMaxAge = 7 * 24 * time.Hour

type Option func(*Scraper)

func WithHTTPClient(client *http.Client) Option {
	return func(s *Scraper) { s.http = client }
}

// WithCacheDir keeps a copy of the page under dir. An empty dir means no
// caching.
func WithCacheDir(dir string) Option {
	return func(s *Scraper) {
		if dir != "" {
			s.cache = readthrough.New(dir, "enao-", cacheMaxAge)
		}
	}
}

type Scraper struct {
	url   string
	http  *http.Client
	cache *readthrough.ReadThrough
}

func New(url string, opts ...Option) *Scraper {
	if url == "" {
		url = DefaultURL
	}
	s := &Scraper{
		url:  url,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Genres fetches the everynoise.com page and extracts every genre on it.
func (s *Scraper) Genres(ctx context.Context) ([]data.Genre, error) {
	body, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching enao visualization: %w", err)
	}
	defer body.Close()

	vis, err := Parse(body)
	if err != nil {
		return nil, err
	}
	logging.Info().Int("genres", len(vis.Genres)).Msg("scraped enao")
	return vis.ToGenres(), nil
}

func (s *Scraper) fetch(ctx context.Context) (io.ReadCloser, error) {
	fill := func() (io.ReadCloser, error) {
		return request.Fetch(ctx, s.http, s.url, "text/html")
	}
	if s.cache == nil {
		return fill()
	}
	return s.cache.Fetch(s.url, fill)
}

// A Visualization is the set of genres drawn on the page, plus the range of
// font sizes they're drawn at.
type Visualization struct {
	Genres []Genre

	MinFontSize, MaxFontSize int64
}

// NewVisualization drops repeated genre names, keeping the first, and
// computes the font size range.
func NewVisualization(genres []Genre) *Visualization {
	vis := &Visualization{MinFontSize: -1}

	seen := map[string]struct{}{}
	for _, genre := range genres {
		if _, ok := seen[genre.Name]; ok {
			continue
		}
		seen[genre.Name] = struct{}{}
		vis.Genres = append(vis.Genres, genre)

		if genre.FontSize < vis.MinFontSize || vis.MinFontSize < 0 {
			vis.MinFontSize = genre.FontSize
		}
		if genre.FontSize > vis.MaxFontSize {
			vis.MaxFontSize = genre.FontSize
		}
	}
	if vis.MinFontSize < 0 {
		vis.MinFontSize = 0
	}

	return vis
}

// ToGenres converts the visualization into rows for the genre pool, turning
// font size back into a popularity in [0, 4096].
func (vis *Visualization) ToGenres() []data.Genre {
	out := make([]data.Genre, len(vis.Genres))
	for i, genre := range vis.Genres {
		out[i] = data.Genre{
			Name:       genre.Name,
			Key:        genre.Key,
			Example:    genre.Example,
			Popularity: normalize(vis.MinFontSize, vis.MaxFontSize, genre.FontSize),
		}
	}
	return out
}

// A Genre is one genre as drawn on the page.
type Genre struct {
	// like "pop"
	Name string

	// like "3nzVSyaYk0KNrahyNQS0Ur"
	Key string

	// Like `Budapest Chorus "Let the Light Shine on Me"`
	//
	// We can't safely parse this into artist/track, because quote marks
	// -within- artist and track names are not guaranteed to be matched
	// properly.
	Example string

	// Percent. Bigger genres are drawn bigger.
	FontSize int64
}

func normalize(min, max, value int64) int64 {
	if max <= min {
		return 0
	}
	return int64(float64(value-min) / float64(max-min) * 4096)
}
