// Package embedding guards the embedding provider with a dimension check, a deadline and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/domain"
)

// Gateway wraps an Embedder and enforces the deployment contract:
// every vector has the configured dimension and every call finishes within timeout.
// Transport metrics (requests, duration, tokens) are recorded in transport/openai.
type Gateway struct {
	inner      domain.Embedder
	dimensions int
	timeout    time.Duration
	provider   string
	model      string
	logger     *zap.Logger
}

// Config holds the gateway settings.
type Config struct {
	Dimensions int
	Timeout    time.Duration
	Provider   string
	Model      string
}

// NewGateway wraps an embedder. A zero timeout leaves the caller's deadline in charge.
func NewGateway(inner domain.Embedder, cfg Config, logger *zap.Logger) *Gateway {
	return &Gateway{
		inner:      inner,
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		provider:   cfg.Provider,
		model:      cfg.Model,
		logger:     logger,
	}
}

// Dimensions returns the vector dimension every result is checked against.
func (g *Gateway) Dimensions() int { return g.dimensions }

// Embed delegates to the inner embedder and validates the returned vector.
func (g *Gateway) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := g.inner.Embed(ctx, text)
	duration := time.Since(start)

	if err != nil {
		err = domain.WrapUpstream(err, domain.ErrEmbeddingUnavailable)
		g.logger.Error("Embedding request failed",
			zap.String("provider", g.provider),
			zap.String("model", g.model),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}

	if g.dimensions > 0 && len(result.Embedding) != g.dimensions {
		g.logger.Error("Embedding dimension mismatch",
			zap.String("provider", g.provider),
			zap.String("model", g.model),
			zap.Int("expected", g.dimensions),
			zap.Int("actual", len(result.Embedding)),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: got %d dimensions, want %d: %w",
			len(result.Embedding), g.dimensions, domain.ErrVectorDimMismatch)
	}

	g.logger.Debug("Embedding request completed",
		zap.String("provider", g.provider),
		zap.String("model", g.model),
		zap.Duration("duration", duration),
		zap.Int("dimensions", len(result.Embedding)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("total_tokens", result.TotalTokens),
		zap.Bool("cached", result.Cached),
	)

	return result, nil
}

// HealthCheck forwards to the inner embedder when it supports health checks.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	if hc, ok := g.inner.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return domain.WrapUpstream(err, domain.ErrEmbeddingUnavailable)
		}
	}
	return nil
}
