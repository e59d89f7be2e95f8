package kv

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used for tests and single-node dev
// setups without Redis. Expired entries are reaped lazily on access, which
// is enough to uphold the contract: an expired key behaves exactly like an
// absent one.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]memoryEntry

	// now is swappable in tests.
	now func() time.Time
}

type memoryEntry struct {
	value string
	exp   time.Time // zero means no expiry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:   make(map[string]memoryEntry),
		now: time.Now,
	}
}

func (s *MemoryStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.live(key); ok {
		return false, nil
	}
	s.m[key] = memoryEntry{value: value, exp: s.expiry(ttl)}
	return true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[key] = memoryEntry{value: value, exp: s.expiry(ttl)}
	return nil
}

func (s *MemoryStore) GetDel(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return "", ErrNotFound
	}
	delete(s.m, key)
	return e.value, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.live(key)
	return ok, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return 0, ErrNotFound
	}
	if e.exp.IsZero() {
		return 0, nil
	}
	return e.exp.Sub(s.now()), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// live returns the entry for key, deleting and masking it when expired.
// Caller must hold the mutex.
func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	e, ok := s.m[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.exp.IsZero() && s.now().After(e.exp) {
		delete(s.m, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}
