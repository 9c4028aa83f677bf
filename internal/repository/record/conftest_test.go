package record

import (
	"context"
	"testing"

	"github.com/kailas-cloud/policyrag/internal/db"
	"github.com/kailas-cloud/policyrag/internal/domain/chunk"
	"github.com/kailas-cloud/policyrag/internal/domain/policy"
	domrec "github.com/kailas-cloud/policyrag/internal/domain/record"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	replaceGroupFn func(ctx context.Context, groupKey string, items []db.HashSetItem) error
	groupMembersFn func(ctx context.Context, groupKey string) ([]string, error)
	deleteGroupFn  func(ctx context.Context, groupKey string) (int, error)
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) ReplaceGroup(ctx context.Context, groupKey string, items []db.HashSetItem) error {
	if m.replaceGroupFn != nil {
		return m.replaceGroupFn(ctx, groupKey, items)
	}
	return nil
}

func (m *mockStore) GroupMembers(ctx context.Context, groupKey string) ([]string, error) {
	if m.groupMembersFn != nil {
		return m.groupMembersFn(ctx, groupKey)
	}
	return nil, nil
}

func (m *mockStore) DeleteGroup(ctx context.Context, groupKey string) (int, error) {
	if m.deleteGroupFn != nil {
		return m.deleteGroupFn(ctx, groupKey)
	}
	return 0, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, 3, db.VectorFlat), ms
}

func testRecords(t *testing.T, documentID string, n int) []domrec.Record {
	t.Helper()
	md := policy.Metadata{EffectiveDate: "2024-06-01", RoleScope: "interns", DocType: "role_specific"}
	out := make([]domrec.Record, n)
	for i := range out {
		c := chunk.Reconstruct(chunk.ID(documentID, i), "text", documentID, i)
		rec, err := domrec.New(c, md, []float32{0.1, 0.2, float32(i)})
		if err != nil {
			t.Fatalf("build record: %v", err)
		}
		out[i] = rec
	}
	return out
}
