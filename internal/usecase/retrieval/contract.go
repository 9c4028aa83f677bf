package retrieval

import (
	"context"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/record"
)

// Searcher runs nearest-neighbour queries against the vector store.
type Searcher interface {
	// Search returns up to k candidates ascending by distance.
	Search(ctx context.Context, vector []float32, k int) ([]record.Candidate, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
