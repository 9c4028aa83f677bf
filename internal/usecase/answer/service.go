// Package answer composes role classification, retrieval and generation into one answer.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/bundle"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
)

// DefaultAssistant names the assistant in the generation prompt.
const DefaultAssistant = "the company's official policy assistant"

// Answer is a generated reply with the context it was grounded on.
type Answer struct {
	Text   string
	Role   role.Role
	Bundle bundle.Bundle
}

// Config holds the answer pipeline settings.
type Config struct {
	Assistant string
	TopN      int
	Timeout   time.Duration
}

// Service answers policy questions.
type Service struct {
	retriever  Retriever
	classifier RoleClassifier
	generator  Generator
	cfg        Config
	logger     *zap.Logger
}

// New creates an answer service.
func New(retriever Retriever, classifier RoleClassifier, generator Generator, cfg Config, logger *zap.Logger) *Service {
	if cfg.Assistant == "" {
		cfg.Assistant = DefaultAssistant
	}
	return &Service{retriever: retriever, classifier: classifier, generator: generator, cfg: cfg, logger: logger}
}

// Answer classifies the requester's role from the query, then answers as that role.
// A classifier reply outside the role set is treated as employee.
func (s *Service) Answer(ctx context.Context, query string) (Answer, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	raw, err := s.classifier.ClassifyRole(ctx, query)
	if err != nil {
		return Answer{}, err
	}
	r := role.Normalize(raw)
	s.logger.Debug("Classified requester role", zap.String("raw", raw), zap.String("role", r.String()))
	return s.AnswerAs(ctx, query, r)
}

// AnswerAs answers query for a known role, skipping classification.
func (s *Service) AnswerAs(ctx context.Context, query string, r role.Role) (Answer, error) {
	b, err := s.retriever.Retrieve(ctx, query, r, s.cfg.TopN)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve: %w", err)
	}

	prompt, err := render(answerTemplate, struct {
		Assistant string
		Role      string
		Context   string
		Query     string
	}{Assistant: s.cfg.Assistant, Role: r.String(), Context: b.Render(), Query: query})
	if err != nil {
		return Answer{}, fmt.Errorf("render answer prompt: %w", err)
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("generate: %w", domain.WrapUpstream(err, domain.ErrGenerationUnavailable))
	}

	return Answer{Text: text, Role: r, Bundle: b}, nil
}
