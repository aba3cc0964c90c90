package counter

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and throwaway runs
type MemoryStore struct {
	mu          sync.Mutex
	value       int64
	initialized bool

	// Err, when set, is returned by every operation
	Err error
}

// NewMemoryStore creates an uninitialized in-memory counter
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Initialize marks the counter as existing
func (m *MemoryStore) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.initialized = true
	return nil
}

// Increment adds one
func (m *MemoryStore) Increment(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if !m.initialized {
		return 0, ErrNotInitialized
	}
	m.value++
	return m.value, nil
}

// Value returns the count
func (m *MemoryStore) Value(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	if !m.initialized {
		return 0, ErrNotInitialized
	}
	return m.value, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
