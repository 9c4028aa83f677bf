package chi

import (
	"context"

	"github.com/kailas-cloud/policyrag/internal/domain/batch"
	"github.com/kailas-cloud/policyrag/internal/domain/bundle"
	"github.com/kailas-cloud/policyrag/internal/domain/role"
	"github.com/kailas-cloud/policyrag/internal/usecase/answer"
	"github.com/kailas-cloud/policyrag/internal/usecase/health"
	"github.com/kailas-cloud/policyrag/internal/usecase/ingest"
)

// Ingester writes and removes policy documents.
type Ingester interface {
	IngestAll(ctx context.Context, sources []ingest.Source) []batch.Result
	Delete(ctx context.Context, documentID string) (int, error)
}

// Retriever produces a ranked context bundle for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, userRole role.Role, topN int) (bundle.Bundle, error)
}

// Answerer generates grounded answers.
type Answerer interface {
	Answer(ctx context.Context, query string) (answer.Answer, error)
	AnswerAs(ctx context.Context, query string, r role.Role) (answer.Answer, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) health.Report
}
