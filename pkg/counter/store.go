// Package counter persists the global visit counter.
package counter

import (
	"context"
	"errors"
	"fmt"
)

// DefaultName is the counter row used when none is configured
const DefaultName = "visits"

// ErrNotInitialized is returned when the counter is read or incremented
// before Initialize created it.
var ErrNotInitialized = errors.New("counter not initialized")

// Store is a persisted, monotonically increasing counter
type Store interface {
	// Initialize ensures the counter exists, starting at 0. It is idempotent.
	Initialize(ctx context.Context) error
	// Increment adds one and returns the new value
	Increment(ctx context.Context) (int64, error)
	// Value returns the current value
	Value(ctx context.Context) (int64, error)
	Close() error
}

// Open builds a store for driver ("sqlite" or "memory")
func Open(driver, path, name string) (Store, error) {
	if name == "" {
		name = DefaultName
	}
	switch driver {
	case "", "sqlite":
		return OpenSQLite(path, name)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown counter driver: %s", driver)
	}
}
