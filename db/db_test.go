package db_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amonks/catalog/data"
	"github.com/amonks/catalog/db"
	"github.com/amonks/catalog/spotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func open(t *testing.T) (*db.DB, *clock) {
	t.Helper()
	c := &clock{t: t0}
	d, err := db.Open("sqlite:"+filepath.Join(t.TempDir(), "catalog.db"), "", db.WithClock(c.Now))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d, c
}

func fullAlbum(id string, tracks ...int64) spotify.Album {
	a := spotify.Album{
		ID:                   id,
		Name:                 "Album " + id,
		AlbumType:            "album",
		ReleaseDate:          "1999-04",
		ReleaseDatePrecision: "month",
		Popularity:           50,
		TotalTracks:          int64(len(tracks)),
		Images:               []spotify.Image{{URL: "https://img/" + id}},
		ExternalURLs:         spotify.ExternalURLs{Spotify: "https://open.spotify.com/album/" + id},
		Artists: []spotify.ArtistRef{
			{ID: "ar1", Name: "First"},
			{ID: "ar2", Name: "Second"},
		},
	}
	for i, ms := range tracks {
		a.Tracks.Items = append(a.Tracks.Items, spotify.Track{
			ID:         fmt.Sprintf("%s-t%d", id, i+1),
			Name:       fmt.Sprintf("Track %d", i+1),
			DurationMS: ms,
		})
	}
	return a
}

func TestUpsertAlbumsMapsRows(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	n, err := d.UpsertAlbums(ctx, []spotify.Album{fullAlbum("a1", 180999, 1000, 999)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := d.GetAlbum(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Album a1", got.Name)
	assert.Equal(t, "First", got.ArtistName)
	assert.Equal(t, "ar1", got.ArtistSpotifyID)
	assert.Equal(t, "https://img/a1", got.ImageURL)
	assert.Equal(t, "https://open.spotify.com/album/a1", got.SpotifyURL)
	assert.Equal(t, data.KindAlbum, got.Kind)
	assert.Equal(t, "1999-04", got.ReleaseDate)
	assert.EqualValues(t, 50, got.Popularity)
	assert.True(t, t0.Equal(got.UpdatedAt))
	assert.Equal(t, []data.Track{
		{SpotifyID: "a1-t1", Name: "Track 1", DurationSeconds: 180, Position: 1},
		{SpotifyID: "a1-t2", Name: "Track 2", DurationSeconds: 1, Position: 2},
		{SpotifyID: "a1-t3", Name: "Track 3", DurationSeconds: 0, Position: 3},
	}, got.Tracks)
}

func TestUpsertAlbumsIsIdempotent(t *testing.T) {
	d, c := open(t)
	ctx := context.Background()
	album := fullAlbum("a1", 1000, 2000)

	_, err := d.UpsertAlbums(ctx, []spotify.Album{album})
	require.NoError(t, err)
	first, err := d.GetAlbum(ctx, "a1")
	require.NoError(t, err)

	c.Set(t0.Add(time.Hour))
	_, err = d.UpsertAlbums(ctx, []spotify.Album{album})
	require.NoError(t, err)
	second, err := d.GetAlbum(ctx, "a1")
	require.NoError(t, err)

	count, err := d.CountAlbums(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.True(t, t0.Add(time.Hour).Equal(second.UpdatedAt))
	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
}

func TestUpsertAlbumsReplacesTracks(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	_, err := d.UpsertAlbums(ctx, []spotify.Album{fullAlbum("a1", 1000, 2000, 3000)})
	require.NoError(t, err)

	shorter := fullAlbum("a1", 5000, 6000)
	shorter.Tracks.Items[0].ID = "new"
	_, err = d.UpsertAlbums(ctx, []spotify.Album{shorter})
	require.NoError(t, err)

	got, err := d.GetAlbum(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, got.Tracks, 2)
	assert.Equal(t, "new", got.Tracks[0].SpotifyID)
	assert.EqualValues(t, 6, got.Tracks[1].DurationSeconds)
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	// any statement would fail on a closed pool
	require.NoError(t, d.Close())

	n, err := d.UpsertAlbums(ctx, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
	n, err = d.RefreshAlbums(ctx, []spotify.Album{})
	assert.NoError(t, err)
	assert.Zero(t, n)
	n, err = d.UpsertArtists(ctx, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
	n, err = d.InsertGenres(ctx, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpsertRejectsInvalidBatches(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	noID := fullAlbum("", 1000)
	_, err := d.UpsertAlbums(ctx, []spotify.Album{fullAlbum("a1"), noID})
	assert.ErrorIs(t, err, db.ErrInvalidRecord)

	badKind := fullAlbum("a2")
	badKind.AlbumType = "mixtape"
	_, err = d.UpsertAlbums(ctx, []spotify.Album{badKind})
	assert.ErrorIs(t, err, db.ErrInvalidRecord)

	_, err = d.UpsertArtists(ctx, []spotify.Artist{{ID: "ar1", Name: "One"}, {Name: "Nobody"}})
	assert.ErrorIs(t, err, db.ErrInvalidRecord)

	albums, err := d.CountAlbums(ctx)
	require.NoError(t, err)
	assert.Zero(t, albums)
	artists, err := d.CountArtists(ctx)
	require.NoError(t, err)
	assert.Zero(t, artists)
}

func TestUpsertAcceptsUppercaseKinds(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	single := fullAlbum("a1")
	single.AlbumType = "SINGLE"
	_, err := d.UpsertAlbums(ctx, []spotify.Album{single})
	require.NoError(t, err)

	got, err := d.GetAlbum(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, data.KindSingle, got.Kind)
}

func TestUpsertCollapsesDuplicates(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	older, newer := fullAlbum("a1"), fullAlbum("a1")
	newer.Popularity = 99
	n, err := d.UpsertAlbums(ctx, []spotify.Album{older, fullAlbum("a2"), newer})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := d.GetAlbum(ctx, "a1")
	require.NoError(t, err)
	assert.EqualValues(t, 99, got.Popularity)
}

func TestRefreshAlbumsKeepsTracks(t *testing.T) {
	d, c := open(t)
	ctx := context.Background()

	_, err := d.UpsertAlbums(ctx, []spotify.Album{fullAlbum("a1", 1000, 2000, 3000)})
	require.NoError(t, err)

	c.Set(t0.Add(20 * 24 * time.Hour))
	refreshed := fullAlbum("a1")
	refreshed.Popularity = 77
	refreshed.Name = "Renamed"
	refreshed.ReleaseDate = "2001"
	n, err := d.RefreshAlbums(ctx, []spotify.Album{refreshed})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := d.GetAlbum(ctx, "a1")
	require.NoError(t, err)
	assert.EqualValues(t, 77, got.Popularity)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "1999-04", got.ReleaseDate)
	assert.Len(t, got.Tracks, 3)
	assert.True(t, t0.Add(20*24*time.Hour).Equal(got.UpdatedAt))
}

func TestUpsertArtists(t *testing.T) {
	d, c := open(t)
	ctx := context.Background()

	_, err := d.UpsertArtists(ctx, []spotify.Artist{{
		ID:           "ar1",
		Name:         "One",
		Images:       []spotify.Image{{URL: "https://img/ar1"}},
		ExternalURLs: spotify.ExternalURLs{Spotify: "https://open.spotify.com/artist/ar1"},
	}})
	require.NoError(t, err)

	got, err := d.GetArtist(ctx, "ar1")
	require.NoError(t, err)
	assert.Equal(t, "One", got.Name)
	assert.Equal(t, "https://img/ar1", got.ImageURL)
	assert.Equal(t, []string{}, got.Genres)

	c.Set(t0.Add(time.Minute))
	_, err = d.UpsertArtists(ctx, []spotify.Artist{{ID: "ar1", Name: "One", Genres: []string{"shoegaze"}}})
	require.NoError(t, err)

	got, err = d.GetArtist(ctx, "ar1")
	require.NoError(t, err)
	assert.Equal(t, []string{"shoegaze"}, got.Genres)
	assert.True(t, t0.Add(time.Minute).Equal(got.UpdatedAt))

	count, err := d.CountArtists(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWriteFailure(t *testing.T) {
	d, _ := open(t)
	require.NoError(t, d.Close())

	_, err := d.UpsertAlbums(context.Background(), []spotify.Album{fullAlbum("a1")})
	assert.ErrorIs(t, err, db.ErrDatastoreWrite)
}

func TestStalenessBoundary(t *testing.T) {
	d, c := open(t)
	ctx := context.Background()

	// "old" will be 14 days and a second old, "recent" 13 days old
	_, err := d.UpsertAlbums(ctx, []spotify.Album{fullAlbum("old")})
	require.NoError(t, err)
	c.Set(t0.Add(24*time.Hour + time.Second))
	_, err = d.UpsertAlbums(ctx, []spotify.Album{fullAlbum("recent")})
	require.NoError(t, err)

	c.Set(t0.Add(db.StaleAfter + time.Second))

	ids, err := d.FindStaleAlbumIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids)

	stale, err := d.NeedsUpdate(ctx, "old")
	require.NoError(t, err)
	assert.True(t, stale)
	stale, err = d.NeedsUpdate(ctx, "recent")
	require.NoError(t, err)
	assert.False(t, stale)
	stale, err = d.NeedsUpdate(ctx, "never-seen")
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestExactlyFourteenDaysIsNotStale(t *testing.T) {
	d, c := open(t)
	ctx := context.Background()

	_, err := d.UpsertAlbums(ctx, []spotify.Album{fullAlbum("a1")})
	require.NoError(t, err)
	c.Set(t0.Add(db.StaleAfter))

	ids, err := d.FindStaleAlbumIDs(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFindStaleAlbumIDsOrderAndLimit(t *testing.T) {
	d, c := open(t)
	ctx := context.Background()

	for i, id := range []string{"c", "a", "b", "d"} {
		c.Set(t0.Add(time.Duration(i) * time.Hour))
		_, err := d.UpsertAlbums(ctx, []spotify.Album{fullAlbum(id)})
		require.NoError(t, err)
	}
	c.Set(t0.Add(30 * 24 * time.Hour))

	ids, err := d.FindStaleAlbumIDs(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	ids, err = d.FindStaleAlbumIDs(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)

	count, err := d.CountStaleAlbums(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestGenres(t *testing.T) {
	d, _ := open(t)
	ctx := context.Background()

	genre, err := d.RandomGenre(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", genre)

	_, err = d.InsertGenres(ctx, []data.Genre{{Name: "shoegaze", Popularity: 100}, {Name: "dream pop"}})
	require.NoError(t, err)
	// already-known genres are left alone
	_, err = d.InsertGenres(ctx, []data.Genre{{Name: "shoegaze", Popularity: 1}})
	require.NoError(t, err)

	_, err = d.InsertGenres(ctx, []data.Genre{{Key: "no-name"}})
	assert.ErrorIs(t, err, db.ErrInvalidRecord)

	genre, err = d.RandomGenre(ctx)
	require.NoError(t, err)
	assert.Contains(t, []string{"shoegaze", "dream pop"}, genre)

	p, err := d.Progress(ctx)
	require.NoError(t, err)
	assert.Equal(t, &db.Progress{Genres: 2}, p)
}

func TestOpenRejectsUnknownURLs(t *testing.T) {
	_, err := db.Open("mysql://localhost/catalog", "")
	assert.ErrorContains(t, err, "unsupported database url")
}
