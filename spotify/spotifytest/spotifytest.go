// Package spotifytest runs an in-memory stand-in for the Spotify Web API, for
// tests of code built on package spotify.
package spotifytest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amonks/catalog/spotify"
	"github.com/goccy/go-json"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"
)

// A Server serves the endpoints the spotify client uses, from data the test
// adds through its methods. Adding the same album twice lists it twice in its
// artist's discography, like Spotify sometimes does.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	albums       map[string]spotify.Album
	artists      map[string]spotify.Artist
	artistAlbums map[string][]string
	genres       map[string][]string
	newReleases  []string
	failures     map[string]int
	calls        map[string]int

	tokenExpiresIn int
	tokenStatus    int
}

// NewServer starts a Server that's closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		albums:         map[string]spotify.Album{},
		artists:        map[string]spotify.Artist{},
		artistAlbums:   map[string][]string{},
		genres:         map[string][]string{},
		failures:       map[string]int{},
		calls:          map[string]int{},
		tokenExpiresIn: 3600,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("GET /v1/browse/new-releases", s.handleNewReleases)
	mux.HandleFunc("GET /v1/albums", s.handleAlbums)
	mux.HandleFunc("GET /v1/albums/{id}", s.handleAlbum)
	mux.HandleFunc("GET /v1/albums/{id}/tracks", s.handleAlbumTracks)
	mux.HandleFunc("GET /v1/artists/{id}", s.handleArtist)
	mux.HandleFunc("GET /v1/artists/{id}/albums", s.handleArtistAlbums)
	mux.HandleFunc("GET /v1/search", s.handleSearch)

	s.Server = httptest.NewServer(s.count(mux))
	t.Cleanup(s.Close)
	return s
}

// Client returns a spotify client pointed at this server, with a short retry
// delay and no pacing.
func (s *Server) Client(opts ...spotify.Option) *spotify.Client {
	base := []spotify.Option{
		spotify.WithAPIURL(s.URL + "/v1"),
		spotify.WithTokenURL(s.URL + "/token"),
		spotify.WithRetryDelay(time.Millisecond),
	}
	return spotify.New(ClientID, ClientSecret, append(base, opts...)...)
}

// AddAlbum stores a full album. Its first artist, if any, gets it in their
// discography.
func (s *Server) AddAlbum(album spotify.Album) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.albums[album.ID] = album
	if len(album.Artists) > 0 {
		artistID := album.Artists[0].ID
		s.artistAlbums[artistID] = append(s.artistAlbums[artistID], album.ID)
	}
}

func (s *Server) AddArtist(artist spotify.Artist, genres ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artists[artist.ID] = artist
	for _, genre := range genres {
		s.genres[genre] = append(s.genres[genre], artist.ID)
	}
}

// SetTokenExpiry sets the expires_in handed out with each token.
func (s *Server) SetTokenExpiry(seconds int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenExpiresIn = seconds
}

// FailTokens makes every credential exchange fail with status. Zero undoes
// it.
func (s *Server) FailTokens(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenStatus = status
}

// SetNewReleases sets the new-releases listing to these album ids, which
// should also have been added.
func (s *Server) SetNewReleases(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newReleases = ids
}

// FailPath makes every request to path (like "/v1/albums/abc") respond with
// status.
func (s *Server) FailPath(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Calls is how many requests path has received.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		status := s.failures[r.URL.Path]
		s.mu.Unlock()

		if status != 0 {
			http.Error(w, http.StatusText(status), status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status, expiresIn := s.tokenStatus, s.tokenExpiresIn
	s.mu.Unlock()

	id, secret, ok := r.BasicAuth()
	if !ok || id != ClientID || secret != ClientSecret {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusBadRequest)
		return
	}
	if status != 0 {
		http.Error(w, `{"error":"server_error"}`, status)
		return
	}
	writeJSON(w, map[string]any{
		"access_token": "token-" + strconv.Itoa(s.Calls("/token")),
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
	})
}

func (s *Server) handleNewReleases(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := intParam(r, "limit", 20)
	var items []spotify.Album
	for _, id := range s.newReleases {
		if len(items) == limit {
			break
		}
		items = append(items, simplify(s.albums[id]))
	}
	writeJSON(w, map[string]any{"albums": spotify.Page[spotify.Album]{Items: items, Total: len(s.newReleases), Limit: limit}})
}

func (s *Server) handleAlbums(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var albums []*spotify.Album
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		album, ok := s.albums[id]
		if !ok {
			albums = append(albums, nil)
			continue
		}
		full := withFirstTrackPage(album)
		albums = append(albums, &full)
	}
	writeJSON(w, map[string]any{"albums": albums})
}

func (s *Server) handleAlbum(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	album, ok := s.albums[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":{"status":404,"message":"Non existing id"}}`, http.StatusNotFound)
		return
	}
	writeJSON(w, withFirstTrackPage(album))
}

func (s *Server) handleAlbumTracks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	album, ok := s.albums[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":{"status":404,"message":"Non existing id"}}`, http.StatusNotFound)
		return
	}
	writeJSON(w, page(r, album.Tracks.Items))
}

func (s *Server) handleArtist(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	artist, ok := s.artists[r.PathValue("id")]
	if !ok {
		http.Error(w, `{"error":{"status":404,"message":"Non existing id"}}`, http.StatusNotFound)
		return
	}
	writeJSON(w, artist)
}

func (s *Server) handleArtistAlbums(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var albums []spotify.Album
	for _, id := range s.artistAlbums[r.PathValue("id")] {
		albums = append(albums, simplify(s.albums[id]))
	}
	writeJSON(w, page(r, albums))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query().Get("q")
	genre, err := strconv.Unquote(strings.TrimPrefix(q, "genre:"))
	if err != nil {
		http.Error(w, fmt.Sprintf("bad query %q", q), http.StatusBadRequest)
		return
	}
	limit := intParam(r, "limit", 20)

	var artists []spotify.Artist
	for _, id := range s.genres[genre] {
		if len(artists) == limit {
			break
		}
		artists = append(artists, s.artists[id])
	}
	writeJSON(w, map[string]any{"artists": spotify.Page[spotify.Artist]{Items: artists, Total: len(s.genres[genre]), Limit: limit}})
}

// page slices items by the request's offset and limit, the way Spotify does.
func page[T any](r *http.Request, items []T) spotify.Page[T] {
	offset, limit := intParam(r, "offset", 0), intParam(r, "limit", 20)
	p := spotify.Page[T]{Total: len(items), Offset: offset, Limit: limit, Items: []T{}}
	if offset < len(items) {
		end := min(offset+limit, len(items))
		p.Items = items[offset:end]
		if end < len(items) {
			p.Next = fmt.Sprintf("%s?offset=%d&limit=%d", r.URL.Path, end, limit)
		}
	}
	return p
}

func withFirstTrackPage(album spotify.Album) spotify.Album {
	tracks := album.Tracks.Items
	album.Tracks = spotify.Page[spotify.Track]{Total: len(tracks), Limit: spotify.PageSize, Items: tracks}
	if len(tracks) > spotify.PageSize {
		album.Tracks.Items = tracks[:spotify.PageSize]
		album.Tracks.Next = fmt.Sprintf("/v1/albums/%s/tracks?offset=%d&limit=%d", album.ID, spotify.PageSize, spotify.PageSize)
	}
	return album
}

func simplify(album spotify.Album) spotify.Album {
	album.Popularity = 0
	album.Tracks = spotify.Page[spotify.Track]{}
	return album
}

func intParam(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
