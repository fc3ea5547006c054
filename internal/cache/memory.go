package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store with lazy TTL eviction. Used by unit
// tests and as a fallback when no Redis address is configured.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]memoryEntry
	sets   map[string]memorySet
	now    func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryEntry),
		sets:   make(map[string]memorySet),
		now:    time.Now,
	}
}

// WithClock overrides the store's clock. Test hook.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Set stores value under key with the given TTL.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), value...)
	s.values[key] = memoryEntry{value: cp, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get returns the value stored under key, or ErrMiss.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.values[key]
	if !ok || !s.now().Before(e.expiresAt) {
		delete(s.values, key)
		return nil, ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Del removes keys from both the value and set spaces.
func (s *MemoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
		delete(s.sets, k)
	}
	return nil
}

// AddToSet adds members to the set at key and refreshes its TTL.
func (s *MemoryStore) AddToSet(_ context.Context, key string, ttl time.Duration, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.liveSet(key)
	if !ok {
		set = memorySet{members: make(map[string]struct{})}
	}
	for _, m := range members {
		set.members[m] = struct{}{}
	}
	set.expiresAt = s.now().Add(ttl)
	s.sets[key] = set
	return nil
}

// RemoveFromSet removes members from the set at key, deleting the set when
// it becomes empty.
func (s *MemoryStore) RemoveFromSet(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.liveSet(key)
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set.members, m)
	}
	if len(set.members) == 0 {
		delete(s.sets, key)
		return nil
	}
	s.sets[key] = set
	return nil
}

// SetMembers returns the members of the set at key.
func (s *MemoryStore) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.liveSet(key)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(set.members))
	for m := range set.members {
		out = append(out, m)
	}
	return out, nil
}

// liveSet returns the set at key if it has not expired; expired sets are
// evicted in place. Caller holds the lock.
func (s *MemoryStore) liveSet(key string) (memorySet, bool) {
	set, ok := s.sets[key]
	if !ok {
		return memorySet{}, false
	}
	if !s.now().Before(set.expiresAt) {
		delete(s.sets, key)
		return memorySet{}, false
	}
	return set, true
}

var _ Store = (*MemoryStore)(nil)
