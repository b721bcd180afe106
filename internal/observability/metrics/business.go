package metrics

import (
	"fmt"
	"time"
)

// RecordFeedFetchSuccess records a successful feed fetch (C1): duration and
// the number of entries that survived the cutoff filter.
func RecordFeedFetchSuccess(sourceID int64, entries int, duration time.Duration) {
	sourceIDLabel := fmt.Sprintf("%d", sourceID)
	FeedFetchDuration.WithLabelValues(sourceIDLabel).Observe(duration.Seconds())
	FeedEntriesEmittedTotal.WithLabelValues(sourceIDLabel).Add(float64(entries))
}

// RecordFeedFetchError records a feed fetch failure (C1). The feed is
// skipped for this cycle, not retried.
func RecordFeedFetchError(sourceID int64) {
	FeedFetchErrorsTotal.WithLabelValues(fmt.Sprintf("%d", sourceID)).Inc()
}

// RecordFilterMatch records a content filter decision (C2). tier is one of
// "base", "co_occurrence", or "none".
func RecordFilterMatch(tier string) {
	ContentFilterMatchesTotal.WithLabelValues(tier).Inc()
}

// RecordLocationMethod records which method resolved an entry's location (C3).
func RecordLocationMethod(method string) {
	LocationMethodTotal.WithLabelValues(method).Inc()
}

// UpdateBatchQueueDepth reports the batch queue's current depth (C4).
func UpdateBatchQueueDepth(depth int) {
	BatchQueueDepth.Set(float64(depth))
}

// RecordBatchQueueFlush records a batch queue flush by its trigger (C4):
// "size", "age", or "final_drain".
func RecordBatchQueueFlush(trigger string) {
	BatchQueueFlushTotal.WithLabelValues(trigger).Inc()
}

// UpdateCircuitBreakerState reports a circuit breaker's current state (C5).
func UpdateCircuitBreakerState(name string, state int) {
	CircuitBreakerStateGauge.WithLabelValues(name).Set(float64(state))
}

// RecordRateLimiterWait records time spent waiting for a rate limit token (C6).
func RecordRateLimiterWait(service string, duration time.Duration) {
	RateLimiterWaitDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordRateLimiterRejected records a call rejected after the wait cap (C6).
func RecordRateLimiterRejected(service string) {
	RateLimiterRejectedTotal.WithLabelValues(service).Inc()
}

// RecordDedupRejected records an entry rejected as a duplicate (C7). method
// is "exact" or "semantic".
func RecordDedupRejected(method string) {
	DedupRejectedTotal.WithLabelValues(method).Inc()
}

// RecordEnrichResult records an enrichment provider attempt's outcome (C8).
func RecordEnrichResult(provider, outcome string) {
	EnrichResultTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordEnrichDuration records time spent in the enrichment chain for one entry (C8).
func RecordEnrichDuration(duration time.Duration) {
	EnrichDuration.Observe(duration.Seconds())
}

// RecordStorageUpsertConflict records an ON CONFLICT resolution at the
// storage boundary (C9).
func RecordStorageUpsertConflict(table string) {
	StorageUpsertConflictsTotal.WithLabelValues(table).Inc()
}

// RecordPipelineCycle records the wall-clock duration of a full cycle (C10).
func RecordPipelineCycle(duration time.Duration) {
	PipelineCycleDuration.Observe(duration.Seconds())
}

// UpdateRawItemsTotal updates the gauge tracking total raw items stored.
func UpdateRawItemsTotal(count int) {
	RawItemsTotal.Set(float64(count))
}

// UpdateAlertsTotal updates the gauge tracking total enriched alerts stored.
func UpdateAlertsTotal(count int) {
	AlertsTotal.Set(float64(count))
}

// UpdateSourcesTotal updates the total count of sources in the database.
func UpdateSourcesTotal(count int) {
	SourcesTotal.Set(float64(count))
}

// RecordDBQuery records the duration of a database query operation.
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
