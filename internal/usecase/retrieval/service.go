// Package retrieval runs the query-time pipeline: embed, search, rerank, assemble.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/bundle"
	"github.com/kailas-cloud/policyrag/internal/domain/record"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
	"github.com/kailas-cloud/policyrag/internal/logger"
	"github.com/kailas-cloud/policyrag/internal/metrics"
	"github.com/kailas-cloud/policyrag/internal/retry"
)

// Defaults used when configuration leaves retrieval unset.
const (
	DefaultFanOut = 7
	DefaultTopN   = 3
)

// Config holds the retrieval settings.
type Config struct {
	// FanOut is the number of candidates fetched from the store before reranking.
	FanOut int
	// TopN is the number of ranked chunks kept when the caller does not ask for a count.
	TopN int
	// Timeout bounds each embedding and search attempt.
	Timeout time.Duration
	Retry   retry.Policy
}

// Service retrieves policy chunks for a query, ordered by organisational precedence.
type Service struct {
	embed  Embedder
	repo   Searcher
	scopes role.ScopeTable
	cfg    Config
	logger *zap.Logger
}

// New creates a retrieval service.
func New(embed Embedder, repo Searcher, scopes role.ScopeTable, cfg Config, logger *zap.Logger) *Service {
	if cfg.FanOut <= 0 {
		cfg.FanOut = DefaultFanOut
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if scopes == nil {
		scopes = role.DefaultScopes()
	}
	return &Service{embed: embed, repo: repo, scopes: scopes, cfg: cfg, logger: logger}
}

// Retrieve embeds query, fetches candidates, reranks them for userRole and
// returns the first topN as a bundle. topN <= 0 uses the configured default.
// Any stage failure fails the whole request; no partial bundle is returned.
func (s *Service) Retrieve(ctx context.Context, query string, userRole role.Role, topN int) (bundle.Bundle, error) {
	b, err := s.retrieve(ctx, query, userRole, topN)
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		return bundle.Bundle{}, err
	}
	metrics.RetrievalRequestsTotal.WithLabelValues("ok").Inc()
	return b, nil
}

func (s *Service) retrieve(ctx context.Context, query string, userRole role.Role, topN int) (bundle.Bundle, error) {
	if strings.TrimSpace(query) == "" {
		return bundle.Bundle{}, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	if topN <= 0 {
		topN = s.cfg.TopN
	}
	if _, err := s.scopes.Scope(userRole); err != nil {
		return bundle.Bundle{}, err
	}

	start := time.Now()
	emb, err := retry.Do(ctx, s.retryPolicy("embed_query"), func(ctx context.Context) (domain.EmbeddingResult, error) {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		res, err := s.embed.Embed(ctx, query)
		return res, domain.WrapUpstream(err, domain.ErrEmbeddingUnavailable)
	})
	metrics.RetrievalStageDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return bundle.Bundle{}, fmt.Errorf("vectorize query: %w", err)
	}

	candidates, err := s.Search(ctx, emb.Embedding, max(s.cfg.FanOut, topN))
	if err != nil {
		return bundle.Bundle{}, err
	}

	start = time.Now()
	ranked, err := Rerank(candidates, userRole, s.scopes, topN)
	metrics.RetrievalStageDuration.WithLabelValues("rerank").Observe(time.Since(start).Seconds())
	if err != nil {
		return bundle.Bundle{}, err
	}

	logger.FromContext(ctx).Debug("Retrieved policy chunks",
		zap.String("role", userRole.String()),
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked", len(ranked)),
	)
	return bundle.Assemble(query, ranked), nil
}

// Search fetches up to k candidates nearest to vector, ascending by distance.
func (s *Service) Search(ctx context.Context, vector []float32, k int) ([]record.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty: %w", domain.ErrInvalidInput)
	}

	start := time.Now()
	candidates, err := retry.Do(ctx, s.retryPolicy("search"), func(ctx context.Context) ([]record.Candidate, error) {
		ctx, cancel := s.withTimeout(ctx)
		defer cancel()
		res, err := s.repo.Search(ctx, vector, k)
		return res, domain.WrapUpstream(err, domain.ErrStoreUnavailable)
	})
	metrics.RetrievalStageDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return candidates, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Timeout)
}

func (s *Service) retryPolicy(op string) retry.Policy {
	p := s.cfg.Retry
	p.OnRetry = func(err error, wait time.Duration) {
		metrics.RetryAttemptsTotal.WithLabelValues(op).Inc()
		s.logger.Warn("Retrying after transient failure",
			zap.String("operation", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	return p
}
