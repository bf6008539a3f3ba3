package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/amonks/catalog/fetcher"
	"github.com/amonks/catalog/spotify"
	"github.com/amonks/catalog/workers"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type runResponse struct {
	Message                           string `json:"message"`
	NewReleasesProcessed              int    `json:"newReleasesProcessed"`
	ArtistsDiscovered                 int    `json:"artistsDiscovered"`
	NewAlbumsFromArtistsProcessed     int    `json:"newAlbumsFromArtistsProcessed"`
	ExistingAlbumsPopularityRefreshed int    `json:"existingAlbumsPopularityRefreshed"`
}

// handleRun runs every phase to completion even if the caller goes away. The
// run's context keeps the request's values but not its cancellation.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.syncer.Run(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, fetcher.ErrRunInProgress):
		writeError(w, http.StatusConflict, "sync already running", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "sync run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		Message:                           "sync run completed",
		NewReleasesProcessed:              summary.NewReleasesProcessed,
		ArtistsDiscovered:                 summary.ArtistsDiscovered,
		NewAlbumsFromArtistsProcessed:     summary.NewAlbumsFromArtistsProcessed,
		ExistingAlbumsPopularityRefreshed: summary.ExistingAlbumsPopularityRefreshed,
	})
}

type artistRequest struct {
	Artist *artistBody `json:"artist" validate:"required"`
}

type artistBody struct {
	ID         string   `json:"id" validate:"required"`
	Name       string   `json:"name" validate:"required"`
	ImageURL   string   `json:"imageUrl,omitempty" validate:"omitempty,url"`
	SpotifyURL string   `json:"spotifyUrl,omitempty" validate:"omitempty,url"`
	Genres     []string `json:"genres,omitempty"`
}

func (a artistBody) toArtist() spotify.Artist {
	artist := spotify.Artist{
		ID:           a.ID,
		Name:         a.Name,
		Genres:       a.Genres,
		ExternalURLs: spotify.ExternalURLs{Spotify: a.SpotifyURL},
	}
	if a.ImageURL != "" {
		artist.Images = []spotify.Image{{URL: a.ImageURL}}
	}
	return artist
}

type artistResponse struct {
	Message      string     `json:"message"`
	Data         artistBody `json:"data"`
	AlbumsSynced *int       `json:"albumsSynced,omitempty"`
}

func (s *Server) handleSyncArtist(w http.ResponseWriter, r *http.Request) {
	var req artistRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid artist", validationError(err))
		return
	}
	artist := req.Artist.toArtist()
	if err := fetcher.ValidateArtist(artist); err != nil {
		writeError(w, http.StatusBadRequest, "invalid artist", err)
		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		s.enqueueArtist(w, *req.Artist, artist)
		return
	}

	n, err := s.syncer.SyncArtist(context.WithoutCancel(r.Context()), artist)
	switch {
	case errors.Is(err, fetcher.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid artist", err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "artist sync failed", err)
		return
	}

	writeJSON(w, http.StatusOK, artistResponse{
		Message:      "artist synced",
		Data:         *req.Artist,
		AlbumsSynced: &n,
	})
}

func (s *Server) enqueueArtist(w http.ResponseWriter, body artistBody, artist spotify.Artist) {
	if s.queue == nil {
		writeError(w, http.StatusServiceUnavailable, "async sync unavailable", errors.New("no artist queue"))
		return
	}
	if err := s.queue.Enqueue(artist); errors.Is(err, workers.ErrQueueFull) {
		writeError(w, http.StatusServiceUnavailable, "artist queue full", err)
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "artist sync failed", err)
		return
	}
	writeJSON(w, http.StatusAccepted, artistResponse{
		Message: "artist sync queued",
		Data:    body,
	})
}

// validationError flattens validator errors into one readable error, naming
// fields by their json paths.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		path := fe.Namespace()
		if _, rest, ok := strings.Cut(path, "."); ok {
			path = rest
		}
		switch fe.Tag() {
		case "required":
			msgs[i] = fmt.Sprintf("%s is required", path)
		case "url":
			msgs[i] = fmt.Sprintf("%s must be a url", path)
		default:
			msgs[i] = fmt.Sprintf("%s failed '%s'", path, fe.Tag())
		}
	}
	return fmt.Errorf("%w: %s", fetcher.ErrValidation, strings.Join(msgs, "; "))
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	writeJSON(w, status, errorResponse{Error: msg, Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
