// Package record defines the persisted chunk record and the shapes it takes on the read path.
package record

import (
	"fmt"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/chunk"
	"github.com/kailas-cloud/policyrag/internal/domain/policy"
)

// Record is a chunk with its document metadata and embedding, as stored.
type Record struct {
	chunk    chunk.Chunk
	metadata policy.Metadata
	vector   []float32
}

// New validates and creates a Record.
func New(c chunk.Chunk, md policy.Metadata, vector []float32) (Record, error) {
	if c.ID() == "" || c.SourceDocumentID() == "" {
		return Record{}, fmt.Errorf("record requires chunk and document ids: %w", domain.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return Record{}, fmt.Errorf("record %s has no vector: %w", c.ID(), domain.ErrInvalidInput)
	}
	return Record{chunk: c, metadata: md, vector: vector}, nil
}

// ID returns the chunk identifier.
func (r *Record) ID() string { return r.chunk.ID() }

// Chunk returns the stored chunk.
func (r *Record) Chunk() chunk.Chunk { return r.chunk }

// Metadata returns the document metadata copied onto the chunk.
func (r *Record) Metadata() policy.Metadata { return r.metadata }

// Vector returns the chunk embedding.
func (r *Record) Vector() []float32 { return r.vector }

// Candidate is a stored record returned by a nearest-neighbour query.
// Distance is the raw cosine distance; smaller is closer.
type Candidate struct {
	ChunkID          string
	SourceDocumentID string
	ChunkIndex       int
	Text             string
	Metadata         policy.Metadata
	Distance         float64
}

// RankedChunk is a candidate after reranking. Rank is 1-based.
type RankedChunk struct {
	Rank             int
	ChunkID          string
	SourceDocumentID string
	ChunkIndex       int
	Text             string
	Metadata         policy.Metadata
	Distance         float64
}
