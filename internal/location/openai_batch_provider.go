package location

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"threatfeed/internal/domain/entity"
	"threatfeed/internal/resilience/circuitbreaker"
	"threatfeed/internal/resilience/ratelimit"
	"threatfeed/internal/resilience/retry"
)

// batchSystemPrompt instructs the model to resolve every numbered entry in
// one reply, preserving order, per spec.md §4.3 step 4's "parsed JSON array
// mapping entry -> {city, country, region, confidence}" contract.
const batchSystemPrompt = `You are a geolocation assistant for security ` +
	`news items. You will receive a numbered list of item texts. For each ` +
	`item, identify the most likely city (if any), country, and region ` +
	`the event occurred in. Respond with ONLY a JSON array, one object ` +
	`per item in the same order, each shaped ` +
	`{"city": string, "country": string, "region": string, "confidence": ` +
	`one of "high"|"medium"|"low"|"none"}. Use empty strings for fields ` +
	`you cannot determine. No prose before or after the JSON array.`

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

type batchLocationResult struct {
	City       string `json:"city"`
	Country    string `json:"country"`
	Region     string `json:"region"`
	Confidence string `json:"confidence"`
}

// OpenAILocationProvider resolves a batch of entries to locations through
// OpenAI's chat completions API, grounded on enrich.OpenAIProvider's
// Rate-Limiter+Circuit-Breaker+retry call shape, generalized from a single
// assessment to an ordered array of locations. Hard per-batch budget is
// 30s per spec.md §6 (stricter than a single enrichment call's 60s, since a
// stuck batch call blocks every entry queued behind it).
type OpenAILocationProvider struct {
	client  *openai.Client
	model   string
	cb      *circuitbreaker.CircuitBreaker
	limiter *ratelimit.Limiter
	retry   retry.Config
}

func NewOpenAILocationProvider(apiKey, model string) *OpenAILocationProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAILocationProvider{
		client:  openai.NewClient(apiKey),
		model:   model,
		cb:      circuitbreaker.New(circuitbreaker.DefaultConfig("openai-location")),
		limiter: ratelimit.New(ratelimit.DefaultConfig("openai-location")),
		retry:   retry.EnrichmentConfig(),
	}
}

func (p *OpenAILocationProvider) Name() string { return "openai-location" }

// CircuitState reports the underlying circuit breaker's state, for the
// health server's /health/detail endpoint.
func (p *OpenAILocationProvider) CircuitState() circuitbreaker.State { return p.cb.State() }

func (p *OpenAILocationProvider) ResolveBatch(ctx context.Context, entries []entity.Entry) ([]entity.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai-location: %w", err)
	}

	var reply string
	retryErr := retry.WithBackoff(ctx, p.retry, func() error {
		return p.cb.Execute(func() error {
			resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: p.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: batchSystemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: buildBatchPrompt(entries)},
				},
			})
			if err != nil {
				return fmt.Errorf("openai api error: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("openai api returned empty response")
			}
			reply = resp.Choices[0].Message.Content
			return nil
		})
	})
	if retryErr != nil {
		return nil, fmt.Errorf("openai-location: %w", retryErr)
	}

	return parseBatchLocations(reply)
}

func buildBatchPrompt(entries []entity.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, e.TextBlob)
	}
	return b.String()
}

func parseBatchLocations(reply string) ([]entity.Location, error) {
	match := jsonArrayPattern.FindString(reply)
	if match == "" {
		return nil, fmt.Errorf("no JSON array found in reply")
	}

	var results []batchLocationResult
	if err := json.Unmarshal([]byte(match), &results); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}

	locations := make([]entity.Location, len(results))
	for i, r := range results {
		conf := entity.Confidence(strings.ToLower(r.Confidence))
		switch conf {
		case entity.ConfidenceHigh, entity.ConfidenceMedium, entity.ConfidenceLow, entity.ConfidenceNone:
		default:
			conf = entity.ConfidenceNone
		}
		locations[i] = entity.Location{
			City:       r.City,
			Country:    r.Country,
			Region:     r.Region,
			Confidence: conf,
		}
	}
	return locations, nil
}
