// Package db defines the storage contracts shared by the key-value and vector backends.
package db

import (
	"context"
	"time"
)

// Store is the database facade used at wiring time. Consumers depend on the
// narrow interfaces below.
//
//nolint:interfacebloat // facade; consumers use the narrow sub-interfaces
type Store interface {
	Pinger
	GroupStore
	KVStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair written with HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// GroupStore manages a set of hashes owned by one group key as a unit.
// The group key is a SET listing the member hash keys.
type GroupStore interface {
	// ReplaceGroup atomically replaces every member of the group with items.
	// Members not present in items are deleted in the same transaction.
	ReplaceGroup(ctx context.Context, groupKey string, items []HashSetItem) error
	// GroupMembers lists the member keys of a group.
	GroupMembers(ctx context.Context, groupKey string) ([]string, error)
	// DeleteGroup removes the group and all of its members, returning how many members existed.
	DeleteGroup(ctx context.Context, groupKey string) (int, error)
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides vector search over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
