package spotify

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/amonks/catalog/logging"
)

const (
	// PageSize is the limit we ask for on every paged endpoint; it's the
	// most Spotify allows.
	PageSize = 50

	// MaxPages bounds a single pagination so a server that always reports
	// another page can't keep us going forever.
	MaxPages = 200
)

// A Page is one slice of an offset-paginated collection.
type Page[T any] struct {
	Items  []T    `json:"items"`
	Next   string `json:"next"`
	Total  int    `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// Getter is satisfied by *Client.
type Getter interface {
	Get(ctx context.Context, endpoint string, query url.Values, out any) error
}

// FetchAll gets every page of endpoint, concatenating the items in the order
// they came. It stops when a page has no next link or no items. Duplicate
// items are kept; deduplication is up to the caller.
func FetchAll[T any](ctx context.Context, spo Getter, endpoint string, query url.Values) ([]T, error) {
	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("limit", strconv.Itoa(PageSize))

	var all []T
	for page, offset := 0, 0; page < MaxPages; page, offset = page+1, offset+PageSize {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("canceled: %w", err)
		}

		q.Set("offset", strconv.Itoa(offset))
		var p Page[T]
		if err := spo.Get(ctx, endpoint, q, &p); err != nil {
			return nil, fmt.Errorf("error fetching '%s' at offset %d: %w", endpoint, offset, err)
		}
		all = append(all, p.Items...)

		if p.Next == "" || len(p.Items) == 0 {
			return all, nil
		}
	}

	logging.Warn().
		Str("endpoint", endpoint).
		Int("pages", MaxPages).
		Int("items", len(all)).
		Msg("stopped paginating at page cap")
	return all, nil
}
