package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/observability/metrics"
)

// Embedder produces a vector representation of an alert's text for semantic
// deduplication (shared with internal/dedup.Embedder so a single
// implementation backs both C7 and C8 — spec.md §4.7/§4.8).
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Enricher composes the provider chain (C8): primary, secondary, and a
// free fallback, trying each in order until one succeeds. A failed
// embedding call degrades the alert rather than dropping it, the same
// degrade-log-continue discipline the teacher applies to its own optional
// AI calls.
type Enricher struct {
	providers []Provider
	embedder  Embedder
}

func New(embedder Embedder, providers ...Provider) *Enricher {
	return &Enricher{providers: providers, embedder: embedder}
}

// Enrich builds the prompt for entry/rawItem/location, routes it through the
// provider chain, and assembles the resulting EnrichedAlert. The embedding
// call is best-effort: a failure is logged and the alert is still returned,
// just without a vector (SearchSimilar has no embedding to compare for such
// an alert, so later entries are not matched against it as semantic
// duplicates; exact duplicates are still rejected by content hash).
func (e *Enricher) Enrich(ctx context.Context, entry entity.Entry, item entity.RawItem, loc entity.Location) (*entity.EnrichedAlert, error) {
	start := time.Now()
	defer func() { metrics.RecordEnrichDuration(time.Since(start)) }()

	prompt := buildPrompt(entry, loc)

	var assessment Assessment
	var lastErr error
	var usedProvider string
	for _, p := range e.providers {
		a, err := p.Assess(ctx, prompt)
		if err == nil {
			assessment = a
			usedProvider = p.Name()
			metrics.RecordEnrichResult(p.Name(), "success")
			break
		}
		slog.Warn("enrichment provider failed, trying next",
			slog.String("provider", p.Name()),
			slog.Any("error", err))
		lastErr = err
		metrics.RecordEnrichResult(p.Name(), "failure")
	}
	if usedProvider == "" {
		return nil, fmt.Errorf("enrich: all providers failed: %w", lastErr)
	}

	alert := &entity.EnrichedAlert{
		UUID:           item.UUID,
		SourceID:       item.SourceID,
		Title:          item.Title,
		Link:           item.Link,
		Summary:        item.Summary,
		Tags:           item.Tags,
		Lat:            loc.Lat,
		Lon:            loc.Lon,
		Country:        loc.Country,
		LocationMethod: loc.Method,
		Category:       assessment.Category,
		Subcategory:    assessment.Subcategory,
		ThreatLabel:    assessment.ThreatLabel,
		Score:          assessment.Score,
		Confidence:     assessment.Confidence,
		Reasoning:      assessment.Reasoning,
		PublishedAt:    item.PublishedAt,
	}

	if e.embedder != nil {
		embedding, err := e.embedder.Embed(ctx, embeddingText(item))
		if err != nil {
			slog.Warn("embedding failed, storing alert without vector",
				slog.String("uuid", item.UUID),
				slog.Any("error", err))
			metrics.RecordEnrichResult("embedder", "failure")
		} else {
			alert.Embedding = embedding
		}
	}

	return alert, nil
}

func buildPrompt(entry entity.Entry, loc entity.Location) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(entry.Title)
	b.WriteString("\nSummary: ")
	b.WriteString(entry.Summary)
	if entry.KWMatch != nil {
		b.WriteString("\nMatched keyword: ")
		b.WriteString(entry.KWMatch.Keyword)
	}
	if loc.Country != "" {
		b.WriteString("\nLocation: ")
		b.WriteString(loc.Country)
		if loc.City != "" {
			b.WriteString(", ")
			b.WriteString(loc.City)
		}
	}
	b.WriteString("\nPublished: ")
	b.WriteString(entry.PublishedAt.Format(time.RFC3339))
	return b.String()
}

func embeddingText(item entity.RawItem) string {
	return item.Title + "\n" + item.Summary
}
