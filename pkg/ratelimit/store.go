package ratelimit

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStoreUnavailable wraps any failure or timeout of the backing store.
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")

	// ErrContention is returned by a store that could not commit an update
	// within its retry budget.
	ErrContention = errors.New("ratelimit: too much contention on key")

	// ErrEmptyIdentifier is returned for a blank identifier.
	ErrEmptyIdentifier = errors.New("ratelimit: empty identifier")
)

// UpdateFunc mutates a counter in place. It may be called more than once
// for one Update and must not have side effects.
type UpdateFunc func(c *Counter) error

// Store persists counters. Implementations must make Update atomic per key:
// two concurrent Updates of the same key never both observe the same
// starting state.
type Store interface {
	// Update loads the counter for key (zero if absent), applies fn and
	// persists the result with ttl. An error from fn aborts without writing.
	Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) (Counter, error)

	// Get returns the counter for key, reporting whether it exists.
	Get(ctx context.Context, key string) (Counter, bool, error)

	// Delete removes the counter for key.
	Delete(ctx context.Context, key string) error

	// Ping checks the store is reachable.
	Ping(ctx context.Context) error
}
