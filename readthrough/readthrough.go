// Package readthrough is a small on-disk cache for slow fetches, like the
// everynoise.com page.
package readthrough

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

var ErrMiss = errors.New("cache miss")

// New caches under dir. Entries older than maxAge are misses; a zero maxAge
// keeps them forever.
func New(dir, prefix string, maxAge time.Duration) *ReadThrough {
	return &ReadThrough{dir: dir, prefix: prefix, maxAge: maxAge, now: time.Now}
}

type ReadThrough struct {
	dir, prefix string
	maxAge      time.Duration
	now         func() time.Time
}

// Get opens the cached value for key, or returns an error wrapping ErrMiss.
func (rt *ReadThrough) Get(key string) (io.ReadCloser, error) {
	hash, filename := rt.hashAndFilename(key)

	info, err := os.Stat(filename)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cache miss for '%s': %w", hash, ErrMiss)
	} else if err != nil {
		return nil, fmt.Errorf("error checking for cache file '%s': %w", hash, err)
	}
	if rt.maxAge > 0 && rt.now().Sub(info.ModTime()) > rt.maxAge {
		return nil, fmt.Errorf("cache entry '%s' expired: %w", hash, ErrMiss)
	}

	cache, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening cache file '%s' for read: %w", hash, err)
	}
	return cache, nil
}

// Set stores everything in r under key and returns a reader over the same
// bytes. It closes r.
func (rt *ReadThrough) Set(key string, r io.ReadCloser) (io.ReadCloser, error) {
	defer r.Close()
	hash, filename := rt.hashAndFilename(key)

	if err := os.MkdirAll(rt.dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating cache dir: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, fmt.Errorf("error reading value for cache file '%s': %w", hash, err)
	}

	// Write then rename, so a reader never sees half a file.
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("error writing cache file '%s': %w", hash, err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return nil, fmt.Errorf("error moving cache file '%s' into place: %w", hash, err)
	}

	return io.NopCloser(&buf), nil
}

// Fetch returns the cached value for key, calling fill and caching its result
// on a miss.
func (rt *ReadThrough) Fetch(key string, fill func() (io.ReadCloser, error)) (io.ReadCloser, error) {
	cached, err := rt.Get(key)
	if err == nil {
		return cached, nil
	} else if !errors.Is(err, ErrMiss) {
		return nil, err
	}

	r, err := fill()
	if err != nil {
		return nil, err
	}
	return rt.Set(key, r)
}

func (rt *ReadThrough) hashAndFilename(key string) (string, string) {
	sum := sha256.Sum256([]byte(key))
	hash := hex.EncodeToString(sum[:])
	return hash, filepath.Join(rt.dir, rt.prefix+hash)
}
