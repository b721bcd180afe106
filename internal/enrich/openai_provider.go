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

// systemPrompt instructs the model to return only the Assessment JSON
// contract, nothing else.
const systemPrompt = `You are a threat-intelligence analyst. Given a news ` +
	`item, respond with ONLY a JSON object matching this shape: ` +
	`{"category": string, "subcategory": string, "threat_label": one of ` +
	`"critical"|"high"|"medium"|"low", "score": number 0-100, "confidence": ` +
	`number 0-1, "reasoning": string}. No prose before or after the JSON.`

// OpenAIProvider calls the OpenAI chat completions API, wrapped by a Rate
// Limiter and Circuit Breaker, grounded on the teacher's OpenAI
// summarizer's NewOpenAI/Summarize/doSummarize shape, generalized from
// plain-text summarization to structured assessment JSON.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	cb      *circuitbreaker.CircuitBreaker
	limiter *ratelimit.Limiter
	retry   retry.Config
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		client:  openai.NewClient(apiKey),
		model:   model,
		cb:      circuitbreaker.New(circuitbreaker.DefaultConfig("openai")),
		limiter: ratelimit.New(ratelimit.DefaultConfig("openai")),
		retry:   retry.EnrichmentConfig(),
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

// CircuitState reports the underlying circuit breaker's state, for the
// health server's /health/detail endpoint.
func (p *OpenAIProvider) CircuitState() circuitbreaker.State { return p.cb.State() }

func (p *OpenAIProvider) Assess(ctx context.Context, prompt string) (Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return Assessment{}, fmt.Errorf("openai: %w", err)
	}

	var reply string
	retryErr := retry.WithBackoff(ctx, p.retry, func() error {
		return p.cb.Execute(func() error {
			resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model: p.model,
				Messages: []openai.ChatCompletionMessage{
					{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
					{Role: openai.ChatMessageRoleUser, Content: prompt},
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
		return Assessment{}, fmt.Errorf("openai: %w", retryErr)
	}

	return parseAssessment(reply)
}
