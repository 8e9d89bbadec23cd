// Package ttlstore holds short-lived request state (idempotency keys, rate
// limit counters) behind
// an injectable store. Entries expire after their TTL; Sweep removes expired
// entries for backends that do not expire them on their own.
package ttlstore

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// Store is a string key/value store with per-entry expiry.
type Store interface {
	// SetNX stores value only if key is absent or expired.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Set stores value unconditionally.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// CompareAndSet replaces the value only if it currently equals old.
	CompareAndSet(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error)
	// Get returns the value and whether a live entry exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	// IncrBy adds delta to an integer counter and returns the new value.
	// The ttl applies only when the counter is created.
	IncrBy(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	// Sweep removes expired entries and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Expired entries are invisible to reads
// but occupy memory until Sweep runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) live(key string, now time.Time) (entry, bool) {
	e, ok := s.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		return entry{}, false
	}
	return e, true
}

// SetNX implements Store.
func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, ok := s.live(key, now); ok {
		return false, nil
	}
	s.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	return nil
}

// CompareAndSet implements Store.
func (s *MemoryStore) CompareAndSet(_ context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(key, now)
	if !ok || e.value != old {
		return false, nil
	}
	s.entries[key] = entry{value: value, expiresAt: now.Add(ttl)}
	return true, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key, s.now())
	return e.value, ok, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// IncrBy implements Store.
func (s *MemoryStore) IncrBy(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.live(key, now)
	if !ok {
		s.entries[key] = entry{value: strconv.FormatInt(delta, 10), expiresAt: now.Add(ttl)}
		return delta, nil
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ttlstore: %s is not a counter", key)
	}
	n += delta
	e.value = strconv.FormatInt(n, 10)
	s.entries[key] = e
	return n, nil
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored entries, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
