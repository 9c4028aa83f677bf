// Package pgvector persists chunk records in Postgres with the pgvector extension.
package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/policy"
	domrec "github.com/kailas-cloud/policyrag/internal/domain/record"
)

// Table holds one row per chunk.
const Table = "policy_chunks"

// pool is the consumer interface over *pgxpool.Pool (ISP).
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Repo implements the record repository on Postgres.
type Repo struct {
	pool pool
	dim  int
}

// Connect opens a pool and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return p, nil
}

// New creates a repository for vectors of dimension dim.
func New(p pool, dim int) *Repo {
	return &Repo{pool: p, dim: dim}
}

// Ping checks database connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return domain.WrapUpstream(err, domain.ErrStoreUnavailable)
	}
	return nil
}

// EnsureSchema creates the extension, table and indexes if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL(r.dim)); err != nil {
		return fmt.Errorf("ensure schema: %w", domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	return nil
}

// WriteDocument replaces all rows of documentID inside one transaction.
func (r *Repo) WriteDocument(ctx context.Context, documentID string, records []domrec.Record) (err error) {
	for i := range records {
		rec := &records[i]
		ch := rec.Chunk()
		if ch.SourceDocumentID() != documentID {
			return fmt.Errorf("record %s belongs to %q, not %q: %w",
				rec.ID(), ch.SourceDocumentID(), documentID, domain.ErrInvalidInput)
		}
		if len(rec.Vector()) != r.dim {
			return fmt.Errorf("record %s has %d dimensions, table has %d: %w",
				rec.ID(), len(rec.Vector()), r.dim, domain.ErrVectorDimMismatch)
		}
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, deleteDocumentSQL, documentID); err != nil {
		return fmt.Errorf("delete %s: %w", documentID, domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	for i := range records {
		rec := &records[i]
		ch := rec.Chunk()
		md := rec.Metadata()
		_, err = tx.Exec(ctx, insertSQL,
			ch.ID(), documentID, ch.Index(), ch.Text(),
			md.EffectiveDate, md.RoleScope, md.DocType,
			pgv.NewVector(rec.Vector()),
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", ch.ID(), domain.WrapUpstream(err, domain.ErrStoreUnavailable))
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", documentID, domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	return nil
}

// DeleteDocument removes all rows of documentID and reports how many existed.
func (r *Repo) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	tag, err := r.pool.Exec(ctx, deleteDocumentSQL, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", documentID, domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	return int(tag.RowsAffected()), nil
}

// Search returns the k nearest rows by cosine distance, ascending.
func (r *Repo) Search(ctx context.Context, vector []float32, k int) ([]domrec.Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d: %w", k, domain.ErrInvalidInput)
	}
	if len(vector) != r.dim {
		return nil, fmt.Errorf("query has %d dimensions, table has %d: %w",
			len(vector), r.dim, domain.ErrVectorDimMismatch)
	}

	rows, err := r.pool.Query(ctx, searchSQL, pgv.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	defer rows.Close()

	var out []domrec.Candidate
	for rows.Next() {
		var c domrec.Candidate
		var md policy.Metadata
		if err := rows.Scan(
			&c.ChunkID, &c.SourceDocumentID, &c.ChunkIndex, &c.Text,
			&md.EffectiveDate, &md.RoleScope, &md.DocType,
			&c.Distance,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", domain.WrapUpstream(err, domain.ErrStoreUnavailable))
		}
		c.Metadata = md
		c.Distance = max(c.Distance, 0)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", domain.WrapUpstream(err, domain.ErrStoreUnavailable))
	}
	return out, nil
}
