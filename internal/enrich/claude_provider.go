package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"threatfeed/internal/resilience/circuitbreaker"
	"threatfeed/internal/resilience/ratelimit"
	"threatfeed/internal/resilience/retry"
)

// ClaudeProvider calls Anthropic's Messages API, wrapped by a Rate Limiter
// and Circuit Breaker, grounded on the teacher's Claude summarizer's
// NewClaude/Summarize/doSummarize shape, generalized from plain-text
// summarization to structured assessment JSON.
type ClaudeProvider struct {
	client  anthropic.Client
	model   string
	cb      *circuitbreaker.CircuitBreaker
	limiter *ratelimit.Limiter
	retry   retry.Config
}

func NewClaudeProvider(apiKey, model string) *ClaudeProvider {
	if model == "" {
		model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}
	return &ClaudeProvider{
		client:  anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		cb:      circuitbreaker.New(circuitbreaker.DefaultConfig("claude")),
		limiter: ratelimit.New(ratelimit.DefaultConfig("claude")),
		retry:   retry.EnrichmentConfig(),
	}
}

func (p *ClaudeProvider) Name() string { return "claude" }

// CircuitState reports the underlying circuit breaker's state, for the
// health server's /health/detail endpoint.
func (p *ClaudeProvider) CircuitState() circuitbreaker.State { return p.cb.State() }

func (p *ClaudeProvider) Assess(ctx context.Context, prompt string) (Assessment, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return Assessment{}, fmt.Errorf("claude: %w", err)
	}

	var reply string
	retryErr := retry.WithBackoff(ctx, p.retry, func() error {
		return p.cb.Execute(func() error {
			message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
				Model:     anthropic.Model(p.model),
				MaxTokens: 1024,
				System: []anthropic.TextBlockParam{
					{Text: systemPrompt},
				},
				Messages: []anthropic.MessageParam{
					anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
				},
			})
			if err != nil {
				return fmt.Errorf("claude api error: %w", err)
			}
			if len(message.Content) == 0 {
				return fmt.Errorf("claude api returned empty response")
			}
			textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
			if !ok {
				return fmt.Errorf("claude api returned unexpected response type")
			}
			reply = textBlock.Text
			return nil
		})
	})
	if retryErr != nil {
		return Assessment{}, fmt.Errorf("claude: %w", retryErr)
	}

	return parseAssessment(reply)
}
