package db

import (
	"context"
	"time"
)

// Store is the database facade combining all sub-interfaces. Consumers
// depend on narrow sub-interfaces (ISP); Store exists for wiring.
type Store interface {
	Pinger
	HashStore
	SetStore
	Barrier
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based row operations.
type HashStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	DelMulti(ctx context.Context, keys []string) error
	Exists(ctx context.Context, key string) (bool, error)
	ExistsMulti(ctx context.Context, keys []string) ([]bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// SetAddItem holds a single key+members pair for pipelined SADD.
type SetAddItem struct {
	Key     string
	Members []string
}

// SetStore provides set-bucket operations.
type SetStore interface {
	SAddMulti(ctx context.Context, items []SetAddItem) error
	SMembersMulti(ctx context.Context, keys []string) ([][]string, error)
}

// Barrier provides a write durability/visibility barrier.
type Barrier interface {
	Wait(ctx context.Context, replicas int, timeout time.Duration) error
}
