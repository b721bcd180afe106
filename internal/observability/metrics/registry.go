// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Pipeline metrics track the ten ingestion components (C1-C10).
var (
	// RawItemsTotal tracks total number of raw items in the database.
	RawItemsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "raw_items_total",
			Help: "Total number of raw items in the database",
		},
	)

	// AlertsTotal tracks total number of enriched alerts in the database.
	AlertsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alerts_total",
			Help: "Total number of enriched alerts in the database",
		},
	)

	// SourcesTotal tracks total number of sources in database
	SourcesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sources_total",
			Help: "Total number of sources in the database",
		},
	)

	// FeedFetchDuration measures time to fetch and parse a feed source (C1).
	FeedFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Time taken to fetch and parse a feed source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"source_id"},
	)

	// FeedEntriesEmittedTotal counts entries emitted per source (C1).
	FeedEntriesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_entries_emitted_total",
			Help: "Total number of entries emitted per source after the cutoff filter",
		},
		[]string{"source_id"},
	)

	// FeedFetchErrorsTotal counts feed fetch failures, never retried in-cycle (C1).
	FeedFetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetch_errors_total",
			Help: "Total number of feed fetch failures (each is skipped, not retried in-cycle)",
		},
		[]string{"source_id"},
	)

	// ContentFilterMatchesTotal counts filter decisions by tier (C2).
	ContentFilterMatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_filter_matches_total",
			Help: "Total number of content filter decisions by match tier",
		},
		[]string{"tier"}, // base, co_occurrence, none
	)

	// LocationMethodTotal counts resolved locations by method (C3).
	LocationMethodTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_method_total",
			Help: "Total number of entries resolved by each location method",
		},
		[]string{"method"},
	)

	// BatchQueueDepth tracks the current number of entries awaiting an LLM batch flush (C4).
	BatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "batch_queue_depth",
			Help: "Current number of entries awaiting a batch queue flush",
		},
	)

	// BatchQueueFlushTotal counts batch queue flushes by trigger (C4).
	BatchQueueFlushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_queue_flush_total",
			Help: "Total number of batch queue flushes by trigger",
		},
		[]string{"trigger"}, // size, age, final_drain
	)

	// CircuitBreakerStateGauge reports the current breaker state (C5): 0=closed, 1=half-open, 2=open.
	CircuitBreakerStateGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// RateLimiterWaitDuration measures time spent waiting for a rate limit token (C6).
	RateLimiterWaitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rate_limiter_wait_duration_seconds",
			Help:    "Time spent waiting for a rate limiter token",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"service"},
	)

	// RateLimiterRejectedTotal counts calls that exceeded the wait cap (C6).
	RateLimiterRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_rejected_total",
			Help: "Total number of calls rejected after exceeding the rate limiter wait cap",
		},
		[]string{"service"},
	)

	// DedupRejectedTotal counts entries rejected as duplicates by method (C7).
	DedupRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_rejected_total",
			Help: "Total number of entries rejected as duplicates",
		},
		[]string{"method"}, // exact, semantic
	)

	// EnrichResultTotal counts enrichment attempts by provider and outcome (C8).
	EnrichResultTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrich_result_total",
			Help: "Total number of enrichment provider attempts by outcome",
		},
		[]string{"provider", "outcome"}, // outcome: success, failure, circuit_open, rate_limited
	)

	// EnrichDuration measures time spent in the enrichment provider chain (C8).
	EnrichDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrich_duration_seconds",
			Help:    "Time spent in the enrichment provider chain per entry",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// StorageUpsertConflictsTotal counts ON CONFLICT resolutions by table (C9).
	StorageUpsertConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_upsert_conflicts_total",
			Help: "Total number of storage upsert conflicts resolved (existing row)",
		},
		[]string{"table"},
	)

	// PipelineCycleDuration measures the wall-clock time of a full RunCycle (C10).
	PipelineCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_cycle_duration_seconds",
			Help:    "Wall-clock duration of a full pipeline cycle",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
