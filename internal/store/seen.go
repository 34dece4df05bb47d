// Package store holds the cross-run "seen" ledger and the TTL-LRU it and the
// geocode cache are built on.
package store

import (
	"context"
	"time"
)

// Seen remembers which record revisions were already delivered to the sinks.
type Seen interface {
	// Filter returns the subset of keys not delivered yet, in input order.
	Filter(ctx context.Context, keys []string) ([]string, error)
	Mark(ctx context.Context, keys ...string) error
	Close() error
}

// MemorySeen is a process-local ledger; it only helps a long-running serve loop.
type MemorySeen struct {
	lru *LRU[struct{}]
}

func NewMemorySeen(maxKeys int, ttl time.Duration) *MemorySeen {
	return &MemorySeen{lru: NewLRU[struct{}](maxKeys, ttl)}
}

func (m *MemorySeen) Filter(_ context.Context, keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := m.lru.Get(k); !ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *MemorySeen) Mark(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.lru.Put(k, struct{}{})
	}
	return nil
}

func (m *MemorySeen) Close() error { return nil }
