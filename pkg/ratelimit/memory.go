package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is how often MemoryStore drops expired keys on its own.
const DefaultSweepInterval = 5 * time.Minute

type memoryEntry struct {
	mu        sync.Mutex
	counter   Counter
	expiresAt time.Time
	removed   bool
}

// MemoryStore keeps counters in process. Updates hold a per-key mutex so
// unrelated keys never contend. Expired keys are swept lazily from Update and
// explicitly through Sweep.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]*memoryEntry
	lastSweep time.Time

	// SweepInterval overrides DefaultSweepInterval.
	SweepInterval time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

// entry returns the live entry for key, locked.
func (s *MemoryStore) entry(key string) *memoryEntry {
	for {
		s.mu.Lock()
		e, ok := s.entries[key]
		if !ok {
			e = &memoryEntry{}
			s.entries[key] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			return e
		}
		// swept between lookup and lock
		e.mu.Unlock()
	}
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, key string, ttl time.Duration, fn UpdateFunc) (Counter, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, err
	}

	now := s.now()
	e := s.entry(key)

	c := e.counter
	if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
		c = Counter{}
	}

	if err := fn(&c); err != nil {
		fresh := e.expiresAt.IsZero()
		if fresh {
			e.removed = true
		}
		e.mu.Unlock()

		if fresh {
			s.drop(key, e)
		}
		return Counter{}, err
	}

	e.counter = c
	e.expiresAt = now.Add(ttl)
	e.mu.Unlock()

	s.maybeSweep(now)
	return c, nil
}

// drop removes e from the map if it is still the entry for key.
func (s *MemoryStore) drop(key string, e *memoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[key] == e {
		delete(s.entries, key)
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (Counter, bool, error) {
	if err := ctx.Err(); err != nil {
		return Counter{}, false, err
	}

	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return Counter{}, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.removed || e.expiresAt.IsZero() || !s.now().Before(e.expiresAt) {
		return Counter{}, false, nil
	}
	return e.counter, true, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
		delete(s.entries, key)
	}
	return nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Len returns the number of tracked keys, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep drops keys whose ttl has passed at now and returns how many went.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSweep = now

	removed := 0
	for key, e := range s.entries {
		e.mu.Lock()
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			e.removed = true
			delete(s.entries, key)
			removed++
		}
		e.mu.Unlock()
	}
	return removed
}

func (s *MemoryStore) maybeSweep(now time.Time) {
	interval := s.SweepInterval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s.mu.Lock()
	due := now.Sub(s.lastSweep) >= interval
	s.mu.Unlock()

	if due {
		s.Sweep(now)
	}
}
