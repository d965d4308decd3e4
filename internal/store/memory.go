package store

import (
	"context"
	"fmt"
	"sync"

	"ticket-service/internal/models"
)

// MemoryStore is a process-local RecordStore used by tests and the memory driver
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewMemoryStore returns an empty in-memory record store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// Load returns a copy of the namespace payload
func (m *MemoryStore) Load(ctx context.Context, namespace string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.records[namespace]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", namespace, models.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

// Save stores a copy of payload
func (m *MemoryStore) Save(ctx context.Context, namespace string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[namespace] = append([]byte(nil), payload...)
	return nil
}

// Remove drops the namespace
func (m *MemoryStore) Remove(ctx context.Context, namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, namespace)
	return nil
}

// Close is a no-op
func (m *MemoryStore) Close() error { return nil }
