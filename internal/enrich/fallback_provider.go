package enrich

import "context"

// FallbackProvider always succeeds, returning a generic low-confidence
// assessment so the pipeline can store something rather than drop the item
// outright. Grounded on the teacher's no-op summarizer's always-available
// shape, generalized from passthrough text to a minimal Assessment.
type FallbackProvider struct{}

func NewFallbackProvider() *FallbackProvider { return &FallbackProvider{} }

func (p *FallbackProvider) Name() string { return "fallback" }

func (p *FallbackProvider) Assess(_ context.Context, _ string) (Assessment, error) {
	return Assessment{
		Category:    "unclassified",
		Subcategory: "unclassified",
		ThreatLabel: "low",
		Score:       0,
		Confidence:  0.1,
		Reasoning:   "all enrichment providers unavailable; assigned default low-confidence assessment",
	}, nil
}
