package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrape_jobs_total",
			Help: "Scrape jobs by mode and terminal status.",
		},
		[]string{"mode", "status"}, // status: completed, failed
	)

	CollectorPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "collector_pages_total",
			Help: "Marketplace result pages fetched.",
		},
		[]string{"mode"},
	)

	CollectorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "collector_request_duration_seconds",
			Help:    "Duration of marketplace search requests.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"mode"},
	)

	ListingsPersistedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_persisted_total",
			Help: "Raw listing rows inserted.",
		},
		[]string{"mode"},
	)

	SignalParseFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signal_parse_failures_total",
			Help: "Listings skipped because signal extraction failed.",
		},
	)

	TokenExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_exchanges_total",
			Help: "Credential exchanges against the identity endpoint.",
		},
		[]string{"result"}, // success, failure
	)

	CacheRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_refreshes_total",
			Help: "Aggregate cache recomputations.",
		},
		[]string{"scope", "result"}, // scope: dashboard, global
	)

	SnapshotsWrittenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "price_snapshots_written_total",
			Help: "Price snapshots appended by the volatility tracker.",
		},
	)

	SurgesDetected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "price_surges_detected",
			Help: "Surges found by the latest detection pass.",
		},
	)

	EnrichmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "description_enrichments_total",
			Help: "Item pages rendered to recover a missing description.",
		},
		[]string{"result"}, // success, empty, error
	)
)
