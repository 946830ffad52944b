package archive

import (
	"context"
	"io"
	"sort"
	"sync"
)

// MemorySink keeps objects in memory. It is safe for concurrent use.
type MemorySink struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{objects: make(map[string][]byte)}
}

// Put stores the contents of r under key.
func (m *MemorySink) Put(_ context.Context, key string, r io.Reader, _ int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return nil
}

// Get returns the object stored under key.
func (m *MemorySink) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// Keys returns the stored keys in sorted order.
func (m *MemorySink) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
