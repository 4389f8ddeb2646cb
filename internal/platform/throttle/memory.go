package throttle

import (
	"context"
	"sort"
	"sync"
	"time"
)

const defaultMaxKeys = 100_000

type memoryEntry struct {
	hits     []time.Time
	lastSeen time.Time
	window   time.Duration
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	maxKeys int
	now     func() time.Time
}

type MemoryOption func(*MemoryStore)

// WithMaxKeys bounds the number of tracked keys; the least recently seen keys are evicted first.
func WithMaxKeys(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxKeys = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: map[string]*memoryEntry{},
		maxKeys: defaultMaxKeys,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 || window <= 0 {
		return Decision{Allowed: true}, nil
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		if len(s.entries) >= s.maxKeys {
			s.evictLocked(now)
		}
		e = &memoryEntry{}
		s.entries[key] = e
	}
	e.window = window
	e.lastSeen = now
	e.hits = prune(e.hits, now.Add(-window))

	if len(e.hits) >= limit {
		return Decision{
			Allowed:    false,
			Count:      len(e.hits),
			RetryAfter: e.hits[0].Add(window).Sub(now),
		}, nil
	}
	e.hits = append(e.hits, now)
	return Decision{Allowed: true, Count: len(e.hits)}, nil
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Sweep drops keys whose whole window has expired and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if now.Sub(e.lastSeen) >= e.window {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictLocked removes expired keys, then the oldest quarter if still at capacity.
func (s *MemoryStore) evictLocked(now time.Time) {
	for k, e := range s.entries {
		if now.Sub(e.lastSeen) >= e.window {
			delete(s.entries, k)
		}
	}
	if len(s.entries) < s.maxKeys {
		return
	}
	type aged struct {
		key  string
		seen time.Time
	}
	all := make([]aged, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, aged{key: k, seen: e.lastSeen})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seen.Before(all[j].seen) })
	drop := len(all)/4 + 1
	for i := 0; i < drop && i < len(all); i++ {
		delete(s.entries, all[i].key)
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	return append(hits[:0], hits[i:]...)
}
