package registry

import (
	"context"
	"sync"
)

// MemoryRegistry keeps reservations for the lifetime of the process.
type MemoryRegistry struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{ids: make(map[string]struct{})}
}

func (m *MemoryRegistry) Reserve(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.ids[id]; taken {
		return false, nil
	}
	m.ids[id] = struct{}{}
	return true, nil
}

// Len returns the number of reservations held.
func (m *MemoryRegistry) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

func (m *MemoryRegistry) Close() error { return nil }
