// Package metrics declares the Prometheus series the sync pipeline exports.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequests counts provider responses by endpoint kind and
	// outcome ("ok", "rate_limited", "error").
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_provider_requests_total",
			Help: "Spotify API requests by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	TokenExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_token_exchanges_total",
			Help: "Client-credentials exchanges by outcome.",
		},
		[]string{"outcome"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_provider_circuit_state",
			Help: "Provider circuit breaker state (0 closed, 1 half-open, 2 open).",
		},
	)

	// RowsUpserted counts rows written, by table.
	RowsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_rows_upserted_total",
			Help: "Rows written by the upsert writer.",
		},
		[]string{"table"},
	)

	// PhaseItems counts items handled per phase, by result ("ok", "skipped",
	// "failed", "missing").
	PhaseItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_phase_items_total",
			Help: "Items handled by each sync phase.",
		},
		[]string{"phase", "result"},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_runs_total",
			Help: "Scheduled sync runs by outcome.",
		},
		[]string{"outcome"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_run_duration_seconds",
			Help:    "Wall time of scheduled sync runs.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	ArtistSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_artist_syncs_total",
			Help: "On-demand artist syncs by outcome.",
		},
		[]string{"outcome"},
	)

	StaleAlbums = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_stale_albums",
			Help: "Albums past the staleness threshold at the start of the last refresh phase.",
		},
	)

	// CatalogRows is the row count per table, as of the last progress
	// report.
	CatalogRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_rows",
			Help: "Rows held per table.",
		},
		[]string{"table"},
	)
)
