package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/domain"
	"github.com/kailas-cloud/policyrag/internal/domain/policy"
	domrec "github.com/kailas-cloud/policyrag/internal/domain/record"
	"github.com/kailas-cloud/policyrag/internal/retry"
)

// memRepo keeps the record set of every document, replacing it on write.
type memRepo struct {
	mu       sync.Mutex
	docs     map[string][]domrec.Record
	writes   int
	writeErr error
}

func newMemRepo() *memRepo { return &memRepo{docs: map[string][]domrec.Record{}} }

func (m *memRepo) WriteDocument(_ context.Context, documentID string, records []domrec.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	if len(records) == 0 {
		delete(m.docs, documentID)
		return nil
	}
	m.docs[documentID] = records
	return nil
}

func (m *memRepo) DeleteDocument(_ context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.docs[documentID])
	delete(m.docs, documentID)
	return n, nil
}

func (m *memRepo) ids(documentID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.docs[documentID]))
	for i := range m.docs[documentID] {
		out = append(out, m.docs[documentID][i].ID())
	}
	return out
}

// overlapRepo records whether two writes of the same document ever overlapped.
type overlapRepo struct {
	*memRepo
	mu         sync.Mutex
	inflight   map[string]int
	overlapped bool
}

func newOverlapRepo() *overlapRepo {
	return &overlapRepo{memRepo: newMemRepo(), inflight: map[string]int{}}
}

func (o *overlapRepo) WriteDocument(ctx context.Context, documentID string, records []domrec.Record) error {
	o.mu.Lock()
	o.inflight[documentID]++
	if o.inflight[documentID] > 1 {
		o.overlapped = true
	}
	o.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	err := o.memRepo.WriteDocument(ctx, documentID, records)

	o.mu.Lock()
	o.inflight[documentID]--
	o.mu.Unlock()
	return err
}

// fakeEmbedder returns a fixed vector; texts containing failOn fail with err,
// and the first transient calls fail with ErrEmbeddingUnavailable.
type fakeEmbedder struct {
	mu        sync.Mutex
	failOn    string
	err       error
	transient int
	calls     int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return domain.EmbeddingResult{}, f.err
	}
	if f.transient > 0 {
		f.transient--
		return domain.EmbeddingResult{}, domain.ErrEmbeddingUnavailable
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}, TotalTokens: 1}, nil
}

func newTestService(t *testing.T, repo Repository, emb Embedder) *Service {
	t.Helper()
	def, rules := policy.DefaultRules()
	tagger, err := policy.NewTagger(def, rules...)
	if err != nil {
		t.Fatalf("NewTagger: %v", err)
	}
	return New(repo, emb, tagger, Config{
		ChunkSize:    10,
		ChunkOverlap: 2,
		Concurrency:  2,
		Retry:        retry.Policy{MaxTries: 3, InitialInterval: time.Microsecond, MaxInterval: time.Microsecond},
	}, zap.NewNop())
}
