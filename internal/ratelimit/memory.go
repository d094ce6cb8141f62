package ratelimit

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	count    int64
	windowAt time.Time
}

// MemoryStore keeps counters in process. Call Cleanup periodically to drop
// expired windows.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (m *MemoryStore) Hit(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.windowAt) {
		e = &entry{windowAt: now.Add(window)}
		m.entries[key] = e
	}
	e.count++
	return e.count, e.windowAt.Sub(now), nil
}

// Cleanup removes expired entries and returns how many were dropped.
func (m *MemoryStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	dropped := 0
	for key, e := range m.entries {
		if !now.Before(e.windowAt) {
			delete(m.entries, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked keys.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
