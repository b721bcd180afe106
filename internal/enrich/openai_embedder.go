package enrich

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"threatfeed/internal/resilience/circuitbreaker"
	"threatfeed/internal/resilience/ratelimit"
	"threatfeed/internal/resilience/retry"
)

// OpenAIEmbedder implements both dedup.Embedder and enrich.Embedder (their
// method sets are identical by design — one embedding call backs both
// semantic dedup and alert storage). Wrapped by the same Rate Limiter and
// Circuit Breaker composition as OpenAIProvider.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	cb      *circuitbreaker.CircuitBreaker
	limiter *ratelimit.Limiter
	retry   retry.Config
}

func NewOpenAIEmbedder(apiKey string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client:  openai.NewClient(apiKey),
		model:   openai.AdaEmbeddingV2,
		cb:      circuitbreaker.New(circuitbreaker.DefaultConfig("openai-embeddings")),
		limiter: ratelimit.New(ratelimit.DefaultConfig("openai-embeddings")),
		retry:   retry.EnrichmentConfig(),
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	var vec []float32
	retryErr := retry.WithBackoff(ctx, e.retry, func() error {
		return e.cb.Execute(func() error {
			resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: []string{text},
				Model: e.model,
			})
			if err != nil {
				return fmt.Errorf("openai embeddings api error: %w", err)
			}
			if len(resp.Data) == 0 {
				return fmt.Errorf("openai embeddings api returned empty response")
			}
			vec = resp.Data[0].Embedding
			return nil
		})
	})
	if retryErr != nil {
		return nil, fmt.Errorf("openai embed: %w", retryErr)
	}
	return vec, nil
}
