package spotify_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"testing"

	"github.com/amonks/catalog/spotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pager serves a fixed list of ints, a page at a time.
type pager struct {
	items   []int
	offsets []int
	failAt  int
	always  bool
}

func (p *pager) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	offset, _ := strconv.Atoi(query.Get("offset"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	p.offsets = append(p.offsets, offset)
	if p.failAt != 0 && offset == p.failAt {
		return errors.New("boom")
	}

	page := out.(*spotify.Page[int])
	if p.always {
		page.Items = []int{offset}
		page.Next = "more"
		return nil
	}
	if offset < len(p.items) {
		end := min(offset+limit, len(p.items))
		page.Items = p.items[offset:end]
		if end < len(p.items) {
			page.Next = fmt.Sprintf("?offset=%d", end)
		}
	}
	return nil
}

func TestFetchAll(t *testing.T) {
	p := &pager{}
	for i := 0; i < 107; i++ {
		p.items = append(p.items, i)
	}

	got, err := spotify.FetchAll[int](context.Background(), p, "/things", nil)
	require.NoError(t, err)
	assert.Equal(t, p.items, got)
	assert.Equal(t, []int{0, 50, 100}, p.offsets)
}

func TestFetchAllEmpty(t *testing.T) {
	p := &pager{}
	got, err := spotify.FetchAll[int](context.Background(), p, "/things", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []int{0}, p.offsets)
}

func TestFetchAllKeepsQuery(t *testing.T) {
	var seen url.Values
	getter := getterFunc(func(ctx context.Context, endpoint string, query url.Values, out any) error {
		seen = query
		return nil
	})
	query := url.Values{"include_groups": {"album,single"}}

	_, err := spotify.FetchAll[int](context.Background(), getter, "/things", query)
	require.NoError(t, err)
	assert.Equal(t, "album,single", seen.Get("include_groups"))
	assert.Equal(t, "50", seen.Get("limit"))
	assert.Empty(t, query.Get("limit"))
}

func TestFetchAllPropagatesErrors(t *testing.T) {
	p := &pager{failAt: 50}
	for i := 0; i < 107; i++ {
		p.items = append(p.items, i)
	}
	_, err := spotify.FetchAll[int](context.Background(), p, "/things", nil)
	assert.ErrorContains(t, err, "boom")
	assert.ErrorContains(t, err, "offset 50")
}

func TestFetchAllStopsAtPageCap(t *testing.T) {
	p := &pager{always: true}
	got, err := spotify.FetchAll[int](context.Background(), p, "/things", nil)
	require.NoError(t, err)
	assert.Len(t, got, spotify.MaxPages)
}

func TestFetchAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := spotify.FetchAll[int](ctx, &pager{}, "/things", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type getterFunc func(ctx context.Context, endpoint string, query url.Values, out any) error

func (f getterFunc) Get(ctx context.Context, endpoint string, query url.Values, out any) error {
	return f(ctx, endpoint, query, out)
}
