package embcache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kailas-cloud/policyrag/internal/db"
)

// In-process cache bounds used when the caller passes zero values.
const (
	DefaultMemoryTTL        = 168 * time.Hour
	DefaultMemoryMaxEntries = 20000
)

// MemoryStore is an in-process cache store for deployments without a key-value server.
// Every entry expires and the entry count is capped; once full, new vectors are
// not cached until expired entries are purged.
type MemoryStore struct {
	cache      *cache.Cache
	maxEntries int
}

// NewMemoryStore creates a store whose entries expire after ttl and which holds
// at most maxEntries vectors.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultMemoryTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryMaxEntries
	}
	return &MemoryStore{
		cache:      cache.New(ttl, 10*time.Minute),
		maxEntries: maxEntries,
	}
}

// Get returns a cached value or db.ErrKeyNotFound.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	if x, found := m.cache.Get(key); found {
		return x.([]byte), nil
	}
	return nil, db.ErrKeyNotFound
}

// SetWithTTL stores value; a non-positive ttl uses the store default.
// A full store drops the write, which the caller sees as a later miss.
func (m *MemoryStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = cache.DefaultExpiration
	}
	if _, exists := m.cache.Get(key); !exists && m.cache.ItemCount() >= m.maxEntries {
		m.cache.DeleteExpired()
		if m.cache.ItemCount() >= m.maxEntries {
			return nil
		}
	}
	m.cache.Set(key, value, ttl)
	return nil
}

// Len reports the number of stored entries.
func (m *MemoryStore) Len() int {
	return m.cache.ItemCount()
}
