package ingest

import (
	"context"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/policy"
	domrec "github.com/kailas-cloud/policyrag/internal/domain/record"
)

// Repository persists the record set of a document.
type Repository interface {
	// WriteDocument atomically replaces every record of documentID.
	WriteDocument(ctx context.Context, documentID string, records []domrec.Record) error
	DeleteDocument(ctx context.Context, documentID string) (int, error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Tagger derives document metadata from its identifier.
type Tagger interface {
	Tag(identifier string) policy.Metadata
}
