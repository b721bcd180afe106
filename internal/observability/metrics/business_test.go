package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordFeedFetchSuccess(t *testing.T) {
	tests := []struct {
		name     string
		sourceID int64
		entries  int
		duration time.Duration
	}{
		{name: "entries found", sourceID: 1, entries: 10, duration: 2 * time.Second},
		{name: "empty feed", sourceID: 2, entries: 0, duration: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordFeedFetchSuccess(tt.sourceID, tt.entries, tt.duration)
			})
		})
	}
}

func TestRecordFeedFetchError(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordFeedFetchError(1)
	})
}

func TestRecordFilterMatch(t *testing.T) {
	for _, tier := range []string{"base", "co_occurrence", "none"} {
		assert.NotPanics(t, func() {
			RecordFilterMatch(tier)
		})
	}
}

func TestRecordLocationMethod(t *testing.T) {
	for _, method := range []string{"cache", "deterministic", "llm_batch", "country_centroid", "unknown"} {
		assert.NotPanics(t, func() {
			RecordLocationMethod(method)
		})
	}
}

func TestUpdateBatchQueueDepth(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateBatchQueueDepth(42)
	})
}

func TestRecordBatchQueueFlush(t *testing.T) {
	for _, trigger := range []string{"size", "age", "final_drain"} {
		assert.NotPanics(t, func() {
			RecordBatchQueueFlush(trigger)
		})
	}
}

func TestUpdateCircuitBreakerState(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateCircuitBreakerState("openai", 1)
	})
}

func TestRecordRateLimiterWait(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRateLimiterWait("openai", 50*time.Millisecond)
	})
}

func TestRecordRateLimiterRejected(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRateLimiterRejected("openai")
	})
}

func TestRecordDedupRejected(t *testing.T) {
	for _, method := range []string{"exact", "semantic"} {
		assert.NotPanics(t, func() {
			RecordDedupRejected(method)
		})
	}
}

func TestRecordEnrichResult(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordEnrichResult("openai", "success")
		RecordEnrichResult("claude", "circuit_open")
	})
}

func TestRecordEnrichDuration(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordEnrichDuration(1500 * time.Millisecond)
	})
}

func TestRecordStorageUpsertConflict(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordStorageUpsertConflict("alerts")
	})
}

func TestRecordPipelineCycle(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordPipelineCycle(45 * time.Second)
	})
}

func TestUpdateRawItemsTotal(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateRawItemsTotal(100)
	})
}

func TestUpdateAlertsTotal(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateAlertsTotal(100)
	})
}

func TestUpdateSourcesTotal(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateSourcesTotal(10)
	})
}

func TestRecordDBQuery(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordDBQuery("select_raw_items", 10*time.Millisecond)
	})
}

func TestUpdateDBConnectionStats(t *testing.T) {
	assert.NotPanics(t, func() {
		UpdateDBConnectionStats(5, 10)
	})
}

func TestMetricsFunctions_AllCallable(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordFeedFetchSuccess(1, 10, 2*time.Second)
		RecordFeedFetchError(1)
		RecordFilterMatch("base")
		RecordLocationMethod("deterministic")
		UpdateBatchQueueDepth(5)
		RecordBatchQueueFlush("size")
		UpdateCircuitBreakerState("openai", 0)
		RecordRateLimiterWait("openai", 10*time.Millisecond)
		RecordRateLimiterRejected("openai")
		RecordDedupRejected("exact")
		RecordEnrichResult("openai", "success")
		RecordEnrichDuration(time.Second)
		RecordStorageUpsertConflict("alerts")
		RecordPipelineCycle(30 * time.Second)
		UpdateRawItemsTotal(100)
		UpdateAlertsTotal(100)
		UpdateSourcesTotal(10)
		RecordDBQuery("test_operation", 10*time.Millisecond)
		UpdateDBConnectionStats(5, 10)
	})
}
