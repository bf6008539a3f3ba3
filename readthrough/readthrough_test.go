package readthrough

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func read(t *testing.T, r io.ReadCloser) string {
	t.Helper()
	defer r.Close()
	bs, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(bs)
}

func TestFetch(t *testing.T) {
	rt := New(t.TempDir(), "page-", 0)

	calls := 0
	fill := func() (io.ReadCloser, error) {
		calls++
		return io.NopCloser(strings.NewReader("<html>")), nil
	}

	r, err := rt.Fetch("https://example.com", fill)
	require.NoError(t, err)
	assert.Equal(t, "<html>", read(t, r))

	r, err = rt.Fetch("https://example.com", fill)
	require.NoError(t, err)
	assert.Equal(t, "<html>", read(t, r))
	assert.Equal(t, 1, calls)
}

func TestFetchError(t *testing.T) {
	rt := New(t.TempDir(), "", 0)
	boom := errors.New("boom")

	_, err := rt.Fetch("k", func() (io.ReadCloser, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)

	_, err = rt.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestExpiry(t *testing.T) {
	rt := New(t.TempDir(), "", time.Hour)
	_, err := rt.Set("k", io.NopCloser(strings.NewReader("v")))
	require.NoError(t, err)

	r, err := rt.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", read(t, r))

	rt.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = rt.Get("k")
	assert.ErrorIs(t, err, ErrMiss)
}
