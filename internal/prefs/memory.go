package prefs

import (
	"context"
	"sort"
	"sync"
	"time"

	"commentflow/internal/domain"
)

// MemoryStore is a process-local PreferenceStore. Values are lost on exit.
type MemoryStore struct {
	mu    sync.RWMutex
	cells map[string]domain.Preference
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cells: make(map[string]domain.Preference)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.cells[key]
	return p.Value, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[key] = domain.Preference{Key: key, Value: value, UpdatedAt: time.Now()}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cells, key)
	return nil
}

func (m *MemoryStore) All(_ context.Context) ([]domain.Preference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Preference, 0, len(m.cells))
	for _, p := range m.cells {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

var _ domain.PreferenceStore = (*MemoryStore)(nil)
