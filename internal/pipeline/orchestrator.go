// Package pipeline wires the ten components together into one ingestion
// cycle: fetch fan-out → filter → raw-save → resolve → dedup → enrich →
// enriched-save, generalizing the teacher's
// internal/usecase/fetch/service.go CrawlAllSources/processSingleSource/
// processFeedItems three-layer structure to the full chain.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"threatfeed/internal/dedup"
	"threatfeed/internal/domain/entity"
	"threatfeed/internal/enrich"
	"threatfeed/internal/filter"
	"threatfeed/internal/infra/feed"
	"threatfeed/internal/location"
	"threatfeed/internal/location/batchqueue"
	"threatfeed/internal/observability/metrics"
	"threatfeed/internal/observability/slo"
	"threatfeed/internal/observability/tracing"
	"threatfeed/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// Config controls per-cycle concurrency; everything else (circuit breaker,
// rate limiter, batch queue timings) is configured on the components passed
// to New.
type Config struct {
	// ItemConcurrency bounds how many entries are resolved/deduped/enriched
	// at once within one cycle (teacher's summarizerParallelism=5 plays the
	// same role for AI calls in processFeedItems).
	ItemConcurrency int
}

func DefaultConfig() Config {
	return Config{ItemConcurrency: 5}
}

// cycleIDKey carries the per-cycle correlation id through ctx so every log
// line and span a cycle's goroutines emit, however deep, can be tied back
// to one run (teacher's notify.Service request-id pattern, generalized from
// one HTTP request to one cron cycle).
type cycleIDKey struct{}

// cycleIDFrom returns the cycle id stashed in ctx, or "" if RunCycle never
// set one (e.g. a unit test calling processEntry directly).
func cycleIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(cycleIDKey{}).(string)
	return id
}

// Orchestrator is the Pipeline Orchestrator (C10).
type Orchestrator struct {
	cfg Config

	sources  repository.SourceRepository
	fetcher  *feed.Fetcher
	filter   *filter.Filter
	resolver *location.Resolver
	queue    *batchqueue.Queue
	dedup    *dedup.Deduplicator
	enricher *enrich.Enricher
	rawItems repository.RawItemRepository
	alerts   repository.EnrichedAlertRepository
}

func New(
	cfg Config,
	sources repository.SourceRepository,
	fetcher *feed.Fetcher,
	f *filter.Filter,
	resolver *location.Resolver,
	queue *batchqueue.Queue,
	d *dedup.Deduplicator,
	enricher *enrich.Enricher,
	rawItems repository.RawItemRepository,
	alerts repository.EnrichedAlertRepository,
) *Orchestrator {
	if cfg.ItemConcurrency <= 0 {
		cfg.ItemConcurrency = DefaultConfig().ItemConcurrency
	}
	return &Orchestrator{
		cfg: cfg, sources: sources, fetcher: fetcher, filter: f, resolver: resolver,
		queue: queue, dedup: d, enricher: enricher, rawItems: rawItems, alerts: alerts,
	}
}

// CycleStats mirrors the teacher's CrawlStats, extended with the additional
// pipeline stages this spec adds.
type CycleStats struct {
	SourcesActive   int
	EntriesFetched  int64
	FilterMatched   int64
	RawInserted     int64
	DedupExact      int64
	DedupSemantic   int64
	Enriched        int64
	EnrichErrors    int64
	AlertsSaved     int64
	Duration        time.Duration
}

// RunCycle executes one full ingestion cycle. Recoverable per-item failures
// are logged and counted, not propagated — only a fetch-layer setup failure
// (listing sources, starting the fetch fan-out) aborts the cycle early,
// matching the teacher's CrawlAllSources/processSingleSource split between
// critical and recoverable errors.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleStats, error) {
	cycleID := uuid.New().String()
	ctx = context.WithValue(ctx, cycleIDKey{}, cycleID)

	ctx, span := tracing.GetTracer().Start(ctx, "pipeline.run_cycle")
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.cycle_id", cycleID))

	start := time.Now()
	stats := &CycleStats{}

	// The Batch Queue's one-final-drain guarantee must hold on every exit
	// path, success or error (teacher's defer database.Close()/defer
	// aiCleanup() discipline in cmd/worker/main.go).
	if o.queue != nil {
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			o.queue.Close(closeCtx)
		}()
	}

	sources, err := o.sources.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	stats.SourcesActive = len(sources)

	entries, err := o.fetcher.FetchAll(ctx, sources)
	if err != nil {
		return nil, fmt.Errorf("fetch all: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ItemConcurrency)

	for entry := range entries {
		entry := entry
		g.Go(func() error {
			o.processEntry(gctx, entry, stats)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	touchCtx := context.WithoutCancel(ctx)
	now := time.Now()
	for _, src := range sources {
		if err := o.sources.TouchCrawledAt(touchCtx, src.ID, now); err != nil {
			slog.Warn("failed to update source crawled timestamp",
				slog.Int64("source_id", src.ID), slog.Any("error", err))
		}
	}

	stats.Duration = time.Since(start)
	metrics.RecordPipelineCycle(stats.Duration)
	recordCycleSLOs(stats)

	span.SetAttributes(
		attribute.Int64("pipeline.entries_fetched", stats.EntriesFetched),
		attribute.Int64("pipeline.alerts_saved", stats.AlertsSaved),
		attribute.Int64("pipeline.enrich_errors", stats.EnrichErrors),
	)

	slog.Info("pipeline cycle completed",
		slog.String("cycle_id", cycleID),
		slog.Int("sources", stats.SourcesActive),
		slog.Int64("entries_fetched", stats.EntriesFetched),
		slog.Int64("filter_matched", stats.FilterMatched),
		slog.Int64("raw_inserted", stats.RawInserted),
		slog.Int64("dedup_exact", stats.DedupExact),
		slog.Int64("dedup_semantic", stats.DedupSemantic),
		slog.Int64("alerts_saved", stats.AlertsSaved),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

// recordCycleSLOs updates the SLO gauges from the finished cycle's stats,
// repurposing the teacher's per-HTTP-request availability/error-rate
// definitions (5xx-errors-over-total-requests) to this system's per-cycle
// equivalent: a cron-triggered batch run has no request latency percentiles,
// so only the two ratio gauges the stats can actually support are updated.
func recordCycleSLOs(stats *CycleStats) {
	if stats.FilterMatched == 0 {
		return
	}
	errorRate := float64(stats.EnrichErrors) / float64(stats.FilterMatched)
	slo.UpdateErrorRate(errorRate)
	slo.UpdateAvailability(1 - errorRate)
}

// processEntry runs one entry through filter → raw-save → resolve → dedup →
// enrich → enriched-save. Every recoverable failure is logged and the entry
// is dropped from the alert path without aborting the cycle; the raw item
// is always attempted for storage first, independent of filter outcome, per
// the audit-trail contract on RawItemRepository.
func (o *Orchestrator) processEntry(ctx context.Context, entry entity.Entry, stats *CycleStats) {
	ctx, span := tracing.GetTracer().Start(ctx, "pipeline.process_entry")
	defer span.End()

	cycleID := cycleIDFrom(ctx)

	atomic.AddInt64(&stats.EntriesFetched, 1)

	entry.TextBlob = entry.Title + " " + entry.Summary

	match, matched := o.filter.Match(entry.TextBlob)
	entry.KWMatch = match

	rawItem := entity.NewRawItem(entry)

	// The exact-duplicate check runs before the raw save: run after it, it
	// would find the row this call has just inserted.
	var exists bool
	var existsErr error
	if matched {
		exists, existsErr = o.dedup.ExistsExact(ctx, rawItem.ContentHash)
	}

	inserted, err := o.rawItems.SaveBatch(ctx, []entity.RawItem{rawItem})
	if err != nil {
		slog.Warn("failed to save raw item",
			slog.String("cycle_id", cycleID), slog.String("uuid", rawItem.UUID), slog.Any("error", err))
		return
	}
	atomic.AddInt64(&stats.RawInserted, int64(inserted))

	if !matched {
		return
	}
	atomic.AddInt64(&stats.FilterMatched, 1)

	if existsErr != nil {
		slog.Warn("exact dedup check failed, proceeding with enrichment",
			slog.String("cycle_id", cycleID), slog.String("uuid", rawItem.UUID), slog.Any("error", existsErr))
	} else if exists {
		atomic.AddInt64(&stats.DedupExact, 1)
		metrics.RecordDedupRejected("exact")
		return
	}

	loc := o.resolver.Resolve(ctx, entry)

	dedupText := entry.Title + "\n" + entry.Summary
	isDup, _, err := o.dedup.IsSemanticDuplicate(ctx, dedupText)
	if err != nil {
		slog.Warn("semantic dedup check failed, proceeding with enrichment",
			slog.String("cycle_id", cycleID), slog.String("uuid", rawItem.UUID), slog.Any("error", err))
	} else if isDup {
		atomic.AddInt64(&stats.DedupSemantic, 1)
		return
	}

	alert, err := o.enricher.Enrich(ctx, entry, rawItem, loc)
	if err != nil {
		slog.Warn("enrichment failed, dropping entry from alert path",
			slog.String("cycle_id", cycleID), slog.String("uuid", rawItem.UUID), slog.Any("error", err))
		atomic.AddInt64(&stats.EnrichErrors, 1)
		return
	}
	atomic.AddInt64(&stats.Enriched, 1)

	if err := o.alerts.Save(ctx, alert); err != nil {
		slog.Warn("failed to save enriched alert",
			slog.String("cycle_id", cycleID), slog.String("uuid", alert.UUID), slog.Any("error", err))
		return
	}
	atomic.AddInt64(&stats.AlertsSaved, 1)
}
