// Package enrich implements the Enricher (C8): given a filtered, located
// entry, produce a structured threat assessment by routing a prompt through
// a provider chain, each call wrapped by the Rate Limiter and Circuit
// Breaker (spec.md §4.8).
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Assessment is the structured JSON contract every provider must satisfy,
// parsed directly into the non-key EnrichedAlert fields.
type Assessment struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory"`
	ThreatLabel string  `json:"threat_label"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
}

// Provider is one entry in the enrichment chain: OpenAI, Claude, a tertiary
// configurable backend, or the always-available free fallback.
type Provider interface {
	Name() string
	Assess(ctx context.Context, prompt string) (Assessment, error)
}

// parseAssessment extracts the JSON object from a model's reply, tolerating
// the common case of the model wrapping it in a code fence or leading prose
// (grounded on the teacher's doSummarize response-validation discipline:
// validate before trusting, never panic on unexpected shape).
func parseAssessment(reply string) (Assessment, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return Assessment{}, fmt.Errorf("enrich: no JSON object found in model reply")
	}

	var a Assessment
	if err := json.Unmarshal([]byte(reply[start:end+1]), &a); err != nil {
		return Assessment{}, fmt.Errorf("enrich: parsing model reply: %w", err)
	}
	if a.ThreatLabel == "" {
		return Assessment{}, fmt.Errorf("enrich: model reply missing threat_label")
	}
	return a, nil
}
