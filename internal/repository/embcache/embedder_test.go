package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/policyrag/internal/db"
	"github.com/kailas-cloud/policyrag/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setKey string
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		setKey, setTTL = key, ttl
		return nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 || result.Cached {
		t.Fatalf("miss must pass provider usage through, got %+v", result)
	}
	if !strings.HasPrefix(setKey, "policyrag:emb_cache:") {
		t.Fatalf("expected cache put under prefix, got %q", setKey)
	}
	if setTTL != time.Hour {
		t.Errorf("expected ttl 1h, got %v", setTTL)
	}
}

func TestEmbed_CacheHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte(db.EncodeVector([]float32{0.4, 0.5, 0.6})), nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if result.TotalTokens != 0 || !result.Cached {
		t.Fatalf("cache hit must report Cached and no usage, got %+v", result)
	}
	if inner.calls != 0 {
		t.Fatalf("inner embedder must not be called on hit")
	}
}

func TestEmbed_InnerErrorPassesThroughUnchanged(t *testing.T) {
	cause := errors.Join(domain.ErrEmbeddingUnavailable, errors.New("provider down"))
	inner := &mockEmbedder{err: cause}
	ce, ms := newTestCachedEmbedder(t, inner)

	setCalled := false
	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		setCalled = true
		return nil
	}

	_, err := ce.Embed(context.Background(), "test text")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if setCalled {
		t.Fatal("failed embeddings must not be cached")
	}
}

func TestEmbed_CacheFailureDegradesToMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.7}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("connection refused") }
	ms.setFn = func(context.Context, string, []byte, time.Duration) error { return errors.New("connection refused") }

	result, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("cache failure must not fail the call: %v", err)
	}
	if result.Embedding[0] != 0.7 || inner.calls != 1 {
		t.Fatalf("expected provider vector, got %v (calls=%d)", result.Embedding, inner.calls)
	}
}

func TestEmbed_CorruptCacheEntry(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.7}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(context.Context, string) ([]byte, error) { return []byte("abc"), nil }

	result, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Embedding[0] != 0.7 {
		t.Fatalf("expected provider vector, got %v", result.Embedding)
	}
}

func TestCacheKey_NamespacedByModel(t *testing.T) {
	a := New(&mockEmbedder{}, &mockKVStore{}, "model-a", 0, nil, zap.NewNop())
	b := New(&mockEmbedder{}, &mockKVStore{}, "model-b", 0, nil, zap.NewNop())
	if a.cacheKey("same") == b.cacheKey("same") {
		t.Fatal("different models must not share cache keys")
	}
	if a.cacheKey("same") != a.cacheKey("same") {
		t.Fatal("cache key must be deterministic")
	}
}

func TestEmbed_Metrics(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	store := NewMemoryStore(time.Hour, 0)
	ce := New(inner, store, "m", time.Hour, counter, zap.NewNop())

	for range 3 {
		if _, err := ce.Embed(context.Background(), "same text"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d, want 1", inner.calls)
	}
}

func TestHealthCheck_Forwards(t *testing.T) {
	inner := &mockEmbedder{health: domain.ErrEmbeddingUnavailable}
	ce, _ := newTestCachedEmbedder(t, inner)
	if err := ce.HealthCheck(context.Background()); !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected forwarded error, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore(time.Hour, 0)
	ctx := context.Background()

	if _, err := m.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := m.SetWithTTL(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := m.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if m.Len() != 1 {
		t.Errorf("Len = %d", m.Len())
	}
}

func TestMemoryStore_Bounded(t *testing.T) {
	m := NewMemoryStore(time.Hour, 2)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		if err := m.SetWithTTL(ctx, k, []byte(k), 0); err != nil {
			t.Fatalf("SetWithTTL(%s): %v", k, err)
		}
	}
	if m.Len() != 2 {
		t.Fatalf("Len = %d, want 2", m.Len())
	}
	if _, err := m.Get(ctx, "c"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("write beyond the cap must be dropped, got %v", err)
	}
	if err := m.SetWithTTL(ctx, "a", []byte("a2"), 0); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.Get(ctx, "a"); string(got) != "a2" {
		t.Errorf("existing key must still be refreshed, got %q", got)
	}
}

func TestMemoryStore_ExpiredEntriesFreeRoom(t *testing.T) {
	m := NewMemoryStore(time.Hour, 1)
	ctx := context.Background()

	if err := m.SetWithTTL(ctx, "old", []byte("v"), time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := m.SetWithTTL(ctx, "new", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(ctx, "new"); err != nil {
		t.Errorf("expired entry must make room: %v", err)
	}
}

func TestMemoryStore_ZeroTTLStillExpires(t *testing.T) {
	m := NewMemoryStore(0, 0)
	if m.maxEntries != DefaultMemoryMaxEntries {
		t.Errorf("maxEntries = %d", m.maxEntries)
	}
	if err := m.SetWithTTL(context.Background(), "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	_, exp, found := m.cache.GetWithExpiration("k")
	if !found || exp.IsZero() {
		t.Errorf("entry must carry an expiry, got %v (found=%v)", exp, found)
	}
}
