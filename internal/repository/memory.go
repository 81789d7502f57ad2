package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryDedupStore is the in-process fallback when Redis is absent or
// down. Entries expire lazily on access.
type MemoryDedupStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
}

func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{entries: make(map[string]time.Time)}
}

func (m *MemoryDedupStore) MarkProcessed(ctx context.Context, gateway, eventID string, ttl time.Duration) (bool, error) {
	key := dedupKey(gateway, eventID)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if exp, ok := m.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.entries[key] = now.Add(ttl)

	// Opportunistic cleanup of expired keys.
	if len(m.entries) > 10000 {
		for k, exp := range m.entries {
			if now.After(exp) {
				delete(m.entries, k)
			}
		}
	}
	return true, nil
}

func (m *MemoryDedupStore) Seen(ctx context.Context, gateway, eventID string) (bool, error) {
	key := dedupKey(gateway, eventID)

	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[key]
	if !ok || time.Now().After(exp) {
		return false, nil
	}
	return true, nil
}
