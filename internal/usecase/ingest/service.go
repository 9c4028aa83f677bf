// Package ingest turns raw documents into stored, embedded chunk records.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/batch"
	"github.com/kailas-cloud/policyrag/internal/domain/chunk"
	domrec "github.com/kailas-cloud/policyrag/internal/domain/record"
	"github.com/kailas-cloud/policyrag/internal/metrics"
	"github.com/kailas-cloud/policyrag/internal/retry"
)

// DefaultConcurrency is the number of documents ingested in parallel by IngestAll.
const DefaultConcurrency = 4

// Config holds the ingestion settings.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Concurrency  int
	Retry        retry.Policy
}

// Source is one document to ingest.
type Source struct {
	DocumentID string
	Text       string
}

// Service coordinates tagging, chunking, embedding and the per-document write.
type Service struct {
	repo   Repository
	embed  Embedder
	tagger Tagger
	cfg    Config
	logger *zap.Logger
}

// New creates an ingestion service. Zero config values fall back to defaults.
func New(repo Repository, embed Embedder, tagger Tagger, cfg Config, logger *zap.Logger) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunk.DefaultSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = chunk.DefaultOverlap
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Service{repo: repo, embed: embed, tagger: tagger, cfg: cfg, logger: logger}
}

// Ingest replaces the stored records of documentID with records built from text
// and returns how many were written. Either every chunk is written or none is;
// a failure is reported as *domain.IncompleteIngestionError.
func (s *Service) Ingest(ctx context.Context, documentID, text string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("document id is required: %w", domain.ErrInvalidInput)
	}

	md := s.tagger.Tag(documentID)
	if err := md.Validate(documentID); err != nil {
		return 0, s.fail(documentID, -1, err)
	}

	chunks, err := chunk.Build(documentID, text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if err != nil {
		return 0, fmt.Errorf("chunk document %s: %w", documentID, err)
	}

	records := make([]domrec.Record, 0, len(chunks))
	for i := range chunks {
		ch := chunks[i]
		result, err := retry.Do(ctx, s.retryPolicy("embed"), func(ctx context.Context) (domain.EmbeddingResult, error) {
			return s.embed.Embed(ctx, ch.Text())
		})
		if err != nil {
			return 0, s.fail(documentID, ch.Index(), err)
		}
		rec, err := domrec.New(ch, md, result.Embedding)
		if err != nil {
			return 0, s.fail(documentID, ch.Index(), err)
		}
		records = append(records, rec)
	}

	_, err = retry.Do(ctx, s.retryPolicy("write"), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.repo.WriteDocument(ctx, documentID, records)
	})
	if err != nil {
		return 0, s.fail(documentID, -1, err)
	}

	metrics.IngestDocumentsTotal.WithLabelValues(string(batch.StatusCommitted)).Inc()
	metrics.IngestChunksTotal.Add(float64(len(records)))
	s.logger.Info("Document ingested",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(records)),
		zap.String("metadata", md.String()),
	)
	return len(records), nil
}

// IngestAll ingests every source with bounded parallelism. One document's failure
// never affects another; results are in source order. Sources sharing a document
// id run one after another in source order, so the last one wins.
func (s *Service) IngestAll(ctx context.Context, sources []Source) []batch.Result {
	results := make([]batch.Result, len(sources))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, idx := range groupByDocument(sources) {
		g.Go(func() error {
			for _, i := range idx {
				src := sources[i]
				n, err := s.Ingest(ctx, src.DocumentID, src.Text)
				if err != nil {
					results[i] = batch.NewFailed(src.DocumentID, err)
					continue
				}
				results[i] = batch.NewCommitted(src.DocumentID, n)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// groupByDocument returns source indexes grouped by document id, groups ordered
// by first appearance.
func groupByDocument(sources []Source) [][]int {
	pos := make(map[string]int, len(sources))
	var groups [][]int
	for i, src := range sources {
		j, ok := pos[src.DocumentID]
		if !ok {
			j = len(groups)
			pos[src.DocumentID] = j
			groups = append(groups, nil)
		}
		groups[j] = append(groups[j], i)
	}
	return groups
}

// Delete removes every record of documentID and returns how many were removed.
func (s *Service) Delete(ctx context.Context, documentID string) (int, error) {
	if documentID == "" {
		return 0, fmt.Errorf("document id is required: %w", domain.ErrInvalidInput)
	}
	n, err := s.repo.DeleteDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete document %s: %w", documentID, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("document %s: %w", documentID, domain.ErrDocumentNotFound)
	}
	s.logger.Info("Document deleted", zap.String("document_id", documentID), zap.Int("chunks", n))
	return n, nil
}

func (s *Service) fail(documentID string, chunkIndex int, err error) error {
	metrics.IngestDocumentsTotal.WithLabelValues(string(batch.StatusFailed)).Inc()
	s.logger.Warn("Document ingestion aborted",
		zap.String("document_id", documentID),
		zap.Int("chunk_index", chunkIndex),
		zap.Error(err),
	)
	return domain.NewIncompleteIngestion(documentID, chunkIndex, err)
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
