package services

import (
	"strings"
	"sync"
	"time"
)

// memEntry backs both the rate-limit registry and the fast cache tier.
type memEntry struct {
	value      any
	expiry     time.Time
	lastAccess time.Time
}

// memStore is a bounded in-process TTL map. Expired entries are evicted on
// access; Sweep handles keys that are never touched again. At capacity the
// entry with the oldest last access is evicted before inserting a new key.
// Eviction is a full scan, which is fine at the capacities this process uses.
type memStore struct {
	mu       sync.Mutex
	entries  map[string]*memEntry
	capacity int
	now      func() time.Time
}

func newMemStore(capacity int, now func() time.Time) *memStore {
	if capacity <= 0 {
		capacity = 1024
	}
	if now == nil {
		now = time.Now
	}
	return &memStore{
		entries:  make(map[string]*memEntry),
		capacity: capacity,
		now:      now,
	}
}

func (s *memStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	ts := s.now()
	if !e.expiry.IsZero() && !ts.Before(e.expiry) {
		delete(s.entries, key)
		return nil, false
	}
	e.lastAccess = ts
	return e.value, true
}

func (s *memStore) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	if e, ok := s.entries[key]; ok {
		e.value = value
		e.lastAccess = ts
		if ttl > 0 {
			e.expiry = ts.Add(ttl)
		} else {
			e.expiry = time.Time{}
		}
		return
	}

	if len(s.entries) >= s.capacity {
		s.evictOldestLocked()
	}

	e := &memEntry{value: value, lastAccess: ts}
	if ttl > 0 {
		e.expiry = ts.Add(ttl)
	}
	s.entries[key] = e
}

// Update runs fn on key's current value under the store lock and stores the
// result, so read-modify-write cycles are atomic against concurrent callers.
// fn receives nil when the key is absent or expired. ttl applies only when
// the entry is created; an existing entry keeps its expiry.
func (s *memStore) Update(key string, ttl time.Duration, fn func(prev any) any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	e, ok := s.entries[key]
	if ok && !e.expiry.IsZero() && !ts.Before(e.expiry) {
		delete(s.entries, key)
		ok = false
	}

	if !ok {
		if len(s.entries) >= s.capacity {
			s.evictOldestLocked()
		}
		e = &memEntry{}
		if ttl > 0 {
			e.expiry = ts.Add(ttl)
		}
		s.entries[key] = e
		e.value = fn(nil)
		e.lastAccess = ts
		return
	}

	e.value = fn(e.value)
	e.lastAccess = ts
}

func (s *memStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// DeletePrefix removes every key with the given prefix.
func (s *memStore) DeletePrefix(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

// Sweep drops expired entries independent of access pattern.
func (s *memStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := s.now()
	n := 0
	for k, e := range s.entries {
		if !e.expiry.IsZero() && !ts.Before(e.expiry) {
			delete(s.entries, k)
			n++
		}
	}
	return n
}

func (s *memStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *memStore) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range s.entries {
		if first || e.lastAccess.Before(oldest) {
			oldestKey = k
			oldest = e.lastAccess
			first = false
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
