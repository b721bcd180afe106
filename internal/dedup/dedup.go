// Package dedup implements the Deduplicator (C7): exact duplicate rejection
// via content_hash (enforced at storage, see RawItemRepo.SaveBatch) and
// semantic duplicate rejection via embedding cosine similarity against
// previously stored alerts.
package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"threatfeed/internal/observability/metrics"
	"threatfeed/internal/repository"
)

// DefaultSimilarityThreshold is the cosine-similarity floor above which a
// new alert is considered a semantic duplicate of a previously stored one
// and rejected rather than saved (spec.md §4.7), used when New is given a
// zero threshold.
const DefaultSimilarityThreshold = 0.92

// Embedder produces an embedding vector for a title+summary pair. The
// Enricher's provider chain supplies this — the Deduplicator itself never
// talks to an LLM/embedding API directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Deduplicator checks candidate alerts for semantic duplication against
// alerts already in storage. Exact-duplicate rejection happens at the
// storage layer (RawItemRepo.SaveBatch's ON CONFLICT (content_hash) DO
// NOTHING) and needs no code here; ExistsExact exposes that same check so
// callers can short-circuit before spending an embedding call.
type Deduplicator struct {
	alerts    repository.EnrichedAlertRepository
	rawItems  repository.RawItemRepository
	embedder  Embedder
	threshold float64
}

// New builds a Deduplicator. A threshold of 0 falls back to
// DefaultSimilarityThreshold, so existing callers that don't care about
// tuning the knob can pass 0.
func New(alerts repository.EnrichedAlertRepository, rawItems repository.RawItemRepository, embedder Embedder, threshold float64) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Deduplicator{alerts: alerts, rawItems: rawItems, embedder: embedder, threshold: threshold}
}

// ExistsExact reports whether contentHash already has a row in raw_items,
// letting the Orchestrator skip downstream work (resolve/enrich) for an
// entry it has already ingested this content for.
func (d *Deduplicator) ExistsExact(ctx context.Context, contentHash string) (bool, error) {
	result, err := d.rawItems.ExistsByContentHashBatch(ctx, []string{contentHash})
	if err != nil {
		return false, fmt.Errorf("ExistsExact: %w", err)
	}
	return result[contentHash], nil
}

// IsSemanticDuplicate embeds text (normally title+summary) and checks it
// against stored alerts' embeddings. It returns true plus the matched
// alert's uuid when similarity meets or exceeds the Deduplicator's threshold
// (DefaultSimilarityThreshold unless New was given another value).
func (d *Deduplicator) IsSemanticDuplicate(ctx context.Context, text string) (bool, string, error) {
	if d.embedder == nil {
		return false, "", nil
	}

	embedding, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return false, "", fmt.Errorf("IsSemanticDuplicate: embed: %w", err)
	}

	matches, err := d.alerts.SearchSimilar(ctx, embedding, 1)
	if err != nil {
		return false, "", fmt.Errorf("IsSemanticDuplicate: search: %w", err)
	}
	if len(matches) == 0 {
		return false, "", nil
	}

	top := matches[0]
	if top.Similarity >= d.threshold {
		metrics.RecordDedupRejected("semantic")
		slog.Info("rejected semantic duplicate", "matched_uuid", top.UUID, "similarity", top.Similarity)
		return true, top.UUID, nil
	}
	return false, "", nil
}
