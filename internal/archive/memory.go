package archive

import (
	"context"
	"fmt"
	"sync"

	"ticket-service/internal/models"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// Memory keeps files in process memory
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

// NewMemory creates an empty in-memory archive
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memoryObject)}
}

// Driver reports DriverMemory
func (m *Memory) Driver() Driver { return DriverMemory }

// Put stores a copy of data under key
func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	if err := validKey(key); err != nil {
		return Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return Object{Key: key, ContentType: contentType, Size: int64(len(data))}, nil
}

// Get returns the object at key or ErrNotFound
func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("archive %s: %w", key, models.ErrNotFound)
	}
	return append([]byte(nil), obj.data...), nil
}

// Delete removes key and reports whether it existed
func (m *Memory) Delete(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return false, nil
	}
	delete(m.objects, key)
	return true, nil
}

// Keys lists stored keys
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
