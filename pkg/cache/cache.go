// Package cache provides the three-tier TTL store backing the stream
// resolution pipeline: one cache each for catalog metadata, aggregator
// search results, and resolved stream URLs. The caches are independent;
// each has its own TTL and its own hit/miss counters.
package cache

import (
	"sync"
	"time"
)

// Cache names.
const (
	Metadata = "metadata"
	Torrents = "torrents"
	Streams  = "streams"
)

type entry struct {
	value     any
	expiresAt time.Time
}

type bucket struct {
	mu     sync.RWMutex
	items  map[string]entry
	ttl    time.Duration
	hits   uint64
	misses uint64
}

// Stats is a point-in-time snapshot of one cache's counters.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// Store owns the three caches. Safe for concurrent use; each cache has
// its own lock, there are no cross-cache operations.
type Store struct {
	buckets map[string]*bucket
	now     func() time.Time
}

// NewStore creates a store with one cache per tier. A background sweep
// removes expired entries; Get never returns an expired entry either way.
func NewStore(metadataTTL, torrentsTTL, streamsTTL time.Duration) *Store {
	s := &Store{
		buckets: map[string]*bucket{
			Metadata: {items: make(map[string]entry), ttl: metadataTTL},
			Torrents: {items: make(map[string]entry), ttl: torrentsTTL},
			Streams:  {items: make(map[string]entry), ttl: streamsTTL},
		},
		now: time.Now,
	}
	go s.sweep(5 * time.Minute)
	return s
}

// SetClock replaces the time source. Test hook; not safe to call once
// the store is shared between goroutines.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns the live value under key, or false on a miss. Expired
// entries count as misses. The appropriate counter is incremented.
func (s *Store) Get(cache, key string) (any, bool) {
	b := s.buckets[cache]
	if b == nil {
		return nil, false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.items[key]
	if !ok || s.now().After(e.expiresAt) {
		b.misses++
		return nil, false
	}
	b.hits++
	return e.value, true
}

// Set stores value under key with the cache's TTL. Unknown cache names
// are ignored rather than panicking; a bad key must not abort a request.
func (s *Store) Set(cache, key string, value any) {
	b := s.buckets[cache]
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.items[key] = entry{value: value, expiresAt: s.now().Add(b.ttl)}
}

// Sizes returns the current live-entry count per cache.
func (s *Store) Sizes() map[string]int {
	out := make(map[string]int, len(s.buckets))
	for name, b := range s.buckets {
		b.mu.RLock()
		now := s.now()
		n := 0
		for _, e := range b.items {
			if !now.After(e.expiresAt) {
				n++
			}
		}
		b.mu.RUnlock()
		out[name] = n
	}
	return out
}

// GetStats returns hit/miss counters and live-entry counts per cache.
func (s *Store) GetStats() map[string]Stats {
	out := make(map[string]Stats, len(s.buckets))
	for name, b := range s.buckets {
		b.mu.RLock()
		now := s.now()
		n := 0
		for _, e := range b.items {
			if !now.After(e.expiresAt) {
				n++
			}
		}
		out[name] = Stats{Hits: b.hits, Misses: b.misses, Entries: n}
		b.mu.RUnlock()
	}
	return out
}

// sweep removes expired entries periodically so the maps do not grow
// without bound between hits.
func (s *Store) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		for _, b := range s.buckets {
			b.mu.Lock()
			now := s.now()
			for key, e := range b.items {
				if now.After(e.expiresAt) {
					delete(b.items, key)
				}
			}
			b.mu.Unlock()
		}
	}
}
