// Package server is the HTTP side of the sync service: triggers for sync
// runs and artist syncs, plus health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amonks/catalog/fetcher"
	"github.com/amonks/catalog/logging"
	"github.com/amonks/catalog/spotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "catalog-sync"

// Syncer is satisfied by *fetcher.Fetcher.
type Syncer interface {
	Run(ctx context.Context) (fetcher.Summary, error)
	SyncArtist(ctx context.Context, artist spotify.Artist) (int, error)
}

// Enqueuer is satisfied by *workers.Queue.
type Enqueuer interface {
	Enqueue(artist spotify.Artist) error
}

type Server struct {
	syncer Syncer
	queue  Enqueuer

	corsOrigins []string
	rateLimit   int
	rateWindow  time.Duration
}

type Option func(*Server)

// WithCORSOrigins lets browsers on the given origins call the sync triggers.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.corsOrigins = origins }
}

// WithRateLimit caps each client IP at requests sync triggers per window. A
// non-positive requests turns the limit off.
func WithRateLimit(requests int, window time.Duration) Option {
	return func(s *Server) { s.rateLimit, s.rateWindow = requests, window }
}

// New makes a Server. queue may be nil, in which case async artist syncs
// are refused.
func New(syncer Syncer, queue Enqueuer, opts ...Option) *Server {
	s := &Server{syncer: syncer, queue: queue}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests)
	r.Use(middleware.Recoverer)
	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/sync", func(r chi.Router) {
		if s.rateLimit > 0 {
			r.Use(httprate.LimitByIP(s.rateLimit, s.rateWindow))
		}
		r.Post("/run", s.handleRun)
		r.Post("/artist", s.handleSyncArtist)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

// Run serves handler on addr until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, handler http.Handler, addr string) error {
	srv := http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()
	logging.Info().Str("addr", addr).Msg("listening")

	select {
	case err := <-errs:
		return fmt.Errorf("error serving on '%s': %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down: %w", err)
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
