package database

import (
	"context"
	"encoding/json"
	"sync"

	"chathistory/pkg/historytypes"
)

// MemoryDatabase is an in-process Substrate. Enumerate returns keys in first-insertion order.
type MemoryDatabase struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]json.RawMessage
}

// NewMemoryDatabase creates an empty in-memory substrate.
func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{
		values: make(map[string]json.RawMessage),
	}
}

// Get returns the raw value stored under key.
func (m *MemoryDatabase) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), value...), true, nil
}

// Set replaces the value stored under key.
func (m *MemoryDatabase) Set(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = append(json.RawMessage(nil), value...)
	return nil
}

// Enumerate returns a copy of every stored entry.
func (m *MemoryDatabase) Enumerate(_ context.Context) ([]historytypes.RawEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]historytypes.RawEntry, 0, len(m.keys))
	for _, key := range m.keys {
		entries = append(entries, historytypes.RawEntry{
			Key:   key,
			Value: append(json.RawMessage(nil), m.values[key]...),
		})
	}
	return entries, nil
}

// Close is a no-op.
func (m *MemoryDatabase) Close() error {
	return nil
}
