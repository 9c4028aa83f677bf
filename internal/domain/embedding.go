package domain

import "context"

// KeyPrefix namespaces every key this service writes to a shared key-value store.
const KeyPrefix = "policyrag:"

// Embedder turns chunk or query text into a vector. Ingestion and retrieval
// must use the same Embedder so stored and query vectors are comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker is implemented by embedders that can probe their provider.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult is one vector plus the provider usage that produced it.
// A cache hit carries no usage and sets Cached.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
	Cached       bool
}
