// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

/*
Package cache provides the bounded, TTL-based in-memory store backing the
authentication hot path.

Two instances exist in practice — one for session snapshots, one for identity
snapshots — each with its own ceiling and default TTL. The cache is never
authoritative: every miss falls through to durable storage, and losing the
entire contents costs latency, not data.

# Concurrency

A single mutex guards the entry map. It is held only for the duration of one
map mutation and never across I/O; callers that miss perform their storage
round-trip outside the lock and repopulate afterwards.

Instances are explicit values wired through constructors. There is no
package-level cache and no global state, so tests build isolated instances
with their own clocks.
*/
package cache

import (
	"sort"
	"sync"
	"time"
)

// # Construction

// Cache is a bounded key->value store with per-entry expiry, approximate-LRU
// pressure eviction, and an owner index for bulk invalidation.
type Cache[V any] struct {
	mu         sync.Mutex
	entries    map[string]*entry[V]
	ceiling    int
	defaultTTL time.Duration
	now        func() time.Time
}

type entry[V any] struct {
	value      V
	ownerID    string
	expiresAt  time.Time
	lastAccess time.Time
}

// Option customizes a [Cache] at construction time.
type Option[V any] func(*Cache[V])

// WithClock replaces the time source, letting tests drive TTL expiry
// deterministically.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// New builds a cache holding at most ceiling entries, each defaulting to
// defaultTTL of freshness.
func New[V any](ceiling int, defaultTTL time.Duration, options ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries:    make(map[string]*entry[V]),
		ceiling:    ceiling,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// # Operations

// Put inserts or overwrites an entry. The ownerID groups entries for
// [Cache.InvalidateOwner]; pass "" for un-owned values. A zero ttl uses the
// cache default. Inserting into a full cache evicts the oldest 10% of
// entries by last access first.
func (c *Cache[V]) Put(key string, value V, ownerID string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.ceiling {
		c.evictLocked()
	}

	c.entries[key] = &entry[V]{
		value:      value,
		ownerID:    ownerID,
		expiresAt:  now.Add(ttl),
		lastAccess: now,
	}
}

// Get returns the cached value and true if the key is present and unexpired.
// An expired entry is removed on sight and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	cached, exists := c.entries[key]
	if !exists {
		return zero, false
	}

	now := c.now()
	if !now.Before(cached.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}

	cached.lastAccess = now
	return cached.value, true
}

// Invalidate removes a single entry. Missing keys are a no-op.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateOwner removes every entry registered under ownerID and returns
// how many were dropped. Used to purge all cached sessions of one identity
// on logout-all.
func (c *Cache[V]) InvalidateOwner(ownerID string) int {
	if ownerID == "" {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, cached := range c.entries {
		if cached.ownerID == ownerID {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Sweep removes every expired entry and returns the count. Safe to call from
// a periodic background task; the cache itself owns no timer.
func (c *Cache[V]) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, cached := range c.entries {
		if !now.Before(cached.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len reports the current number of entries, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops the oldest 10% of entries (at least one) by last-access
// time. Approximate LRU: good enough for a latency layer whose misses are
// harmless. Caller holds the mutex.
func (c *Cache[V]) evictLocked() {
	count := c.ceiling / 10
	if count < 1 {
		count = 1
	}

	type aged struct {
		key        string
		lastAccess time.Time
	}
	candidates := make([]aged, 0, len(c.entries))
	for key, cached := range c.entries {
		candidates = append(candidates, aged{key: key, lastAccess: cached.lastAccess})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastAccess.Before(candidates[j].lastAccess)
	})

	if count > len(candidates) {
		count = len(candidates)
	}
	for _, victim := range candidates[:count] {
		delete(c.entries, victim.key)
	}
}
