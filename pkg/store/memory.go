package store

import (
	"context"
	"sync"
	"time"

	"node-pulse/pkg/model"
)

type memoryEntry struct {
	snap    model.NodeSnapshot
	expires time.Time
}

// MemoryStore is a process-local cache, suitable for a single dashboard
// instance.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (model.NodeSnapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || !m.now().Before(e.expires) {
		return model.NodeSnapshot{}, false, nil
	}
	return e.snap, true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, snap model.NodeSnapshot, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.entries[key] = memoryEntry{snap: snap, expires: now.Add(ttl)}
	// the node set is small and static, so pruning on write keeps the map bounded
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	return nil
}

// Len reports the number of live entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	now := m.now()
	for _, e := range m.entries {
		if now.Before(e.expires) {
			n++
		}
	}
	return n
}
