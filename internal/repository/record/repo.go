package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/policyrag/internal/db"
	"github.com/kailas-cloud/policyrag/internal/domain"
	domrec "github.com/kailas-cloud/policyrag/internal/domain/record"
)

// store is the consumer interface for chunk records (ISP).
type store interface {
	ReplaceGroup(ctx context.Context, groupKey string, items []db.HashSetItem) error
	GroupMembers(ctx context.Context, groupKey string) ([]string, error)
	DeleteGroup(ctx context.Context, groupKey string) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Repo stores chunk records as hashes behind an FT vector index.
type Repo struct {
	store store
	dim   int
	algo  db.VectorAlgorithm
}

// New creates a record repository for vectors of dimension dim.
func New(s store, dim int, algo db.VectorAlgorithm) *Repo {
	return &Repo{store: s, dim: dim, algo: algo}
}

// EnsureIndex creates the chunk index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", IndexName, domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	if exists {
		return nil
	}

	def, err := indexDefinition(r.dim, r.algo)
	if err != nil {
		return fmt.Errorf("index definition: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", IndexName, domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	return nil
}

// WriteDocument atomically replaces every stored record of documentID with records.
func (r *Repo) WriteDocument(ctx context.Context, documentID string, records []domrec.Record) error {
	items := make([]db.HashSetItem, 0, len(records))
	for i := range records {
		rec := &records[i]
		ch := rec.Chunk()
		if ch.SourceDocumentID() != documentID {
			return fmt.Errorf("record %s belongs to %q, not %q: %w",
				rec.ID(), ch.SourceDocumentID(), documentID, domain.ErrInvalidInput)
		}
		if len(rec.Vector()) != r.dim {
			return fmt.Errorf("record %s has %d dimensions, index has %d: %w",
				rec.ID(), len(rec.Vector()), r.dim, domain.ErrVectorDimMismatch)
		}
		items = append(items, db.HashSetItem{
			Key:    chunkKey(documentID, rec.ID()),
			Fields: toHash(rec),
		})
	}

	if err := r.store.ReplaceGroup(ctx, documentKey(documentID), items); err != nil {
		return fmt.Errorf("write document %s: %w", documentID, domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	return nil
}

// DeleteDocument removes every record of documentID and reports how many existed.
func (r *Repo) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	n, err := r.store.DeleteGroup(ctx, documentKey(documentID))
	if err != nil {
		return 0, fmt.Errorf("delete document %s: %w", documentID, domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	return n, nil
}

// CountDocument reports how many records documentID currently has.
func (r *Repo) CountDocument(ctx context.Context, documentID string) (int, error) {
	members, err := r.store.GroupMembers(ctx, documentKey(documentID))
	if err != nil {
		return 0, fmt.Errorf("count document %s: %w", documentID, domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	return len(members), nil
}

// Search returns the k nearest records by cosine distance, ascending.
func (r *Repo) Search(ctx context.Context, vector []float32, k int) ([]domrec.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}
	if len(vector) != r.dim {
		return nil, fmt.Errorf("query has %d dimensions, index has %d: %w",
			len(vector), r.dim, domain.ErrVectorDimMismatch)
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		VectorField:  fieldVector,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", IndexName, domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	if sr == nil {
		return nil, nil
	}

	out := make([]domrec.Candidate, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		c, err := fromHash(e.Key, e.Fields, e.Distance)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
