// Package batchqueue implements the Batch Queue (C4): a thread-safe buffer
// that accumulates entries deferred by the Location Resolver and flushes
// them to a single LLM batch call on a size or age trigger.
package batchqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/observability/metrics"
)

// tickInterval is how often the background loop checks the age trigger.
// spec.md requires "at most every 1s".
const tickInterval = 1 * time.Second

// State names the buffer's position in spec.md §4.4's transition table.
type State int

const (
	StateEmpty State = iota
	StatePending
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePending:
		return "pending"
	case StateFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// FlushFunc resolves a batch of deferred entries in one call (normally one
// LLM request through the Rate Limiter and Circuit Breaker) and returns one
// Location per input entry, same order.
type FlushFunc func(ctx context.Context, entries []entity.Entry) ([]entity.Location, error)

// Config sets the two flush triggers and the retry cap.
type Config struct {
	SizeThreshold int
	TimeThreshold time.Duration
	RetryCap      int
}

// DefaultConfig matches spec.md §6's defaults: size 10, age 30s, retry cap 2.
func DefaultConfig() Config {
	return Config{SizeThreshold: 10, TimeThreshold: 30 * time.Second, RetryCap: 2}
}

type queuedEntry struct {
	entry      entity.Entry
	resultCh   chan entity.Location
	retryCount int
}

// Queue buffers deferred entries under a single mutex; every mutation
// (enqueue, drain, requeue) takes the lock, and no read is permitted while
// a mutation is in flight (spec.md §5: "reads during mutation are not
// permitted").
type Queue struct {
	cfg   Config
	flush FlushFunc

	mu           sync.Mutex
	items        []*queuedEntry
	state        State
	firstArrival time.Time

	done chan struct{}
}

// New builds a Queue. flush is called with the current buffer contents
// whenever a trigger fires.
func New(cfg Config, flush FlushFunc) *Queue {
	if cfg.SizeThreshold <= 0 {
		cfg.SizeThreshold = 10
	}
	if cfg.TimeThreshold <= 0 {
		cfg.TimeThreshold = 30 * time.Second
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = 2
	}
	return &Queue{cfg: cfg, flush: flush, done: make(chan struct{})}
}

// Run starts the background age-trigger loop and returns immediately; the
// loop stops once ctx is cancelled. Callers should still call Close to
// guarantee a final drain,
// since cancellation may race with an in-flight enqueue.
func (q *Queue) Run(ctx context.Context) {
	go q.loop(ctx)
}

func (q *Queue) loop(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.maybeFlushOnAge(ctx)
		}
	}
}

// Enqueue appends entry to the buffer and returns a channel that receives
// exactly one Location once the entry is resolved, either by a successful
// batch flush or by exhausting its retry cap (in which case it resolves to
// method=unknown). If the size threshold is reached, a flush is triggered
// immediately.
func (q *Queue) Enqueue(ctx context.Context, entry entity.Entry) <-chan entity.Location {
	q.mu.Lock()
	resultCh := make(chan entity.Location, 1)
	qe := &queuedEntry{entry: entry, resultCh: resultCh}
	q.items = append(q.items, qe)
	if q.state == StateEmpty {
		q.state = StatePending
		q.firstArrival = time.Now()
	}
	trigger := len(q.items) >= q.cfg.SizeThreshold
	depth := len(q.items)
	q.mu.Unlock()

	metrics.UpdateBatchQueueDepth(depth)
	if trigger {
		go q.flushNow(ctx, "size")
	}
	return resultCh
}

func (q *Queue) maybeFlushOnAge(ctx context.Context) {
	q.mu.Lock()
	due := q.state == StatePending && len(q.items) > 0 && time.Since(q.firstArrival) >= q.cfg.TimeThreshold
	q.mu.Unlock()
	if due {
		q.flushNow(ctx, "age")
	}
}

// drain atomically extracts and clears the buffer.
func (q *Queue) drain() []*queuedEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	q.state = StateEmpty
	return items
}

func (q *Queue) flushNow(ctx context.Context, trigger string) {
	items := q.drain()
	if len(items) == 0 {
		return
	}
	metrics.RecordBatchQueueFlush(trigger)
	metrics.UpdateBatchQueueDepth(0)

	entries := make([]entity.Entry, len(items))
	for i, qe := range items {
		entries[i] = qe.entry
	}

	locations, err := q.flush(ctx, entries)
	if err != nil {
		q.requeueOrFinalize(ctx, items)
		return
	}
	for i, qe := range items {
		if i < len(locations) {
			qe.resultCh <- locations[i]
		} else {
			qe.resultCh <- unknownLocation()
		}
		close(qe.resultCh)
	}
}

// requeueOrFinalize handles a failed flush: entries under the retry cap go
// back into the buffer (re-arming the pending timer), entries at the cap
// are finalized method=unknown and logged at WARN, matching spec.md §4.4's
// failure policy.
func (q *Queue) requeueOrFinalize(ctx context.Context, items []*queuedEntry) {
	q.mu.Lock()
	for _, qe := range items {
		qe.retryCount++
		if qe.retryCount > q.cfg.RetryCap {
			slog.Warn("batch queue entry exceeded retry cap, finalizing as unknown",
				"link", qe.entry.Link, "retry_count", qe.retryCount)
			qe.resultCh <- unknownLocation()
			close(qe.resultCh)
			continue
		}
		if q.state == StateEmpty {
			q.state = StatePending
			q.firstArrival = time.Now()
		}
		q.items = append(q.items, qe)
	}
	depth := len(q.items)
	q.mu.Unlock()
	metrics.UpdateBatchQueueDepth(depth)
}

// Close guarantees a final drain: any entry still buffered is flushed once
// more (entries that fail this last attempt are finalized unknown rather
// than re-queued, since there is no further cycle to retry them in).
// Callers should defer Close immediately after Run, per spec.md's
// guaranteed-release-on-all-exit-paths requirement.
func (q *Queue) Close(ctx context.Context) {
	items := q.drain()
	if len(items) == 0 {
		metrics.RecordBatchQueueFlush("final_drain")
		return
	}
	metrics.RecordBatchQueueFlush("final_drain")

	entries := make([]entity.Entry, len(items))
	for i, qe := range items {
		entries[i] = qe.entry
	}
	locations, err := q.flush(ctx, entries)
	for i, qe := range items {
		if err != nil || i >= len(locations) {
			qe.resultCh <- unknownLocation()
		} else {
			qe.resultCh <- locations[i]
		}
		close(qe.resultCh)
	}
}

// State reports the buffer's current state, for tests and diagnostics.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Len reports the current buffer depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func unknownLocation() entity.Location {
	return entity.Location{Method: entity.LocationMethodUnknown, Confidence: entity.ConfidenceNone}
}
