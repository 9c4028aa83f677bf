package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/metrics"
)

// Chat is a text generation client over the chat completions endpoint.
type Chat struct {
	client   *openai.Client
	model    string
	provider string
	logger   *zap.Logger
}

// NewChat creates an OpenAI-compatible chat client.
func NewChat(cfg *Config) *Chat {
	return &Chat{
		client:   newClient(cfg),
		model:    cfg.Model,
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// Generate sends prompt as a single user message and returns the first choice.
// Failures wrap domain.ErrGenerationUnavailable.
func (c *Chat) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		observe(metrics.KindGeneration, c.provider, c.model, "error", start, openai.Usage{})
		return "", parseAPIError("generation", err, domain.ErrGenerationUnavailable)
	}
	if len(resp.Choices) == 0 {
		observe(metrics.KindGeneration, c.provider, c.model, "empty", start, openai.Usage{})
		return "", fmt.Errorf("empty generation response: %w", domain.ErrGenerationUnavailable)
	}

	observe(metrics.KindGeneration, c.provider, c.model, "success", start, resp.Usage)

	c.logger.Debug("Generation completed",
		zap.String("provider", c.provider),
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
