package answer

import (
	"context"

	"github.com/kailas-cloud/policyrag/internal/domain/bundle"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
)

// Retriever returns the ranked policy context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, userRole role.Role, topN int) (bundle.Bundle, error)
}

// Generator completes a prompt with a language model.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RoleClassifier extracts the requester's role from the raw query. The returned
// string may fall outside the closed role set; callers normalize it.
type RoleClassifier interface {
	ClassifyRole(ctx context.Context, query string) (string, error)
}
