// Copyright (c) 2026 LifeLink. All rights reserved.
// Author: thanh.phandinh.vn@gmail.com

package cache_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhphan-dev/lifelink/internal/security/cache"
)

// testClock is an adjustable time source for driving TTL expiry.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

/*
TestCache_RoundTrip verifies put/get before TTL elapses and the miss (plus
stale-entry removal) after it elapses.
*/
func TestCache_RoundTrip(t *testing.T) {
	clock := newTestClock()
	store := cache.New(10, 5*time.Minute, cache.WithClock[string](clock.Now))

	store.Put("session-1", "payload", "user-1", 0)

	value, hit := store.Get("session-1")
	require.True(t, hit)
	assert.Equal(t, "payload", value)

	// One tick past the default TTL: miss, and the entry is gone.
	clock.Advance(5*time.Minute + time.Second)
	_, hit = store.Get("session-1")
	assert.False(t, hit)
	assert.Equal(t, 0, store.Len())
}

/*
TestCache_PerEntryTTL verifies an explicit ttl overrides the default.
*/
func TestCache_PerEntryTTL(t *testing.T) {
	clock := newTestClock()
	store := cache.New(10, 5*time.Minute, cache.WithClock[string](clock.Now))

	store.Put("short", "v", "", 30*time.Second)
	store.Put("long", "v", "", 10*time.Minute)

	clock.Advance(time.Minute)
	_, shortHit := store.Get("short")
	_, longHit := store.Get("long")
	assert.False(t, shortHit)
	assert.True(t, longHit)
}

/*
TestCache_EvictionExactness verifies that inserting past the ceiling never
exceeds it and evicts exactly the least-recently-accessed 10%.
*/
func TestCache_EvictionExactness(t *testing.T) {
	clock := newTestClock()
	const ceiling = 20
	store := cache.New(ceiling, time.Hour, cache.WithClock[int](clock.Now))

	// Fill to the ceiling with strictly increasing last-access times.
	for i := 0; i < ceiling; i++ {
		store.Put(fmt.Sprintf("key-%02d", i), i, "", 0)
		clock.Advance(time.Second)
	}
	require.Equal(t, ceiling, store.Len())

	// Touch the two oldest so they become the most recently accessed.
	_, _ = store.Get("key-00")
	_, _ = store.Get("key-01")
	clock.Advance(time.Second)

	// The +1 insert evicts ceiling/10 = 2 entries: now the oldest by
	// last-access are key-02 and key-03.
	store.Put("key-new", 99, "", 0)
	assert.LessOrEqual(t, store.Len(), ceiling)

	_, hit02 := store.Get("key-02")
	_, hit03 := store.Get("key-03")
	assert.False(t, hit02)
	assert.False(t, hit03)

	for _, key := range []string{"key-00", "key-01", "key-new", "key-04"} {
		_, hit := store.Get(key)
		assert.True(t, hit, "expected %s to survive eviction", key)
	}
}

/*
TestCache_InvalidateOwner verifies bulk removal of one identity's entries
while other owners are untouched.
*/
func TestCache_InvalidateOwner(t *testing.T) {
	store := cache.New[string](100, time.Hour)

	store.Put("s1", "v", "user-a", 0)
	store.Put("s2", "v", "user-a", 0)
	store.Put("s3", "v", "user-b", 0)
	store.Put("s4", "v", "", 0)

	assert.Equal(t, 2, store.InvalidateOwner("user-a"))
	assert.Equal(t, 0, store.InvalidateOwner("user-a"))
	assert.Equal(t, 0, store.InvalidateOwner(""))

	_, hitB := store.Get("s3")
	_, hitUnowned := store.Get("s4")
	assert.True(t, hitB)
	assert.True(t, hitUnowned)
}

/*
TestCache_Sweep verifies expired entries are removed in bulk and live ones
survive.
*/
func TestCache_Sweep(t *testing.T) {
	clock := newTestClock()
	store := cache.New(100, time.Hour, cache.WithClock[string](clock.Now))

	store.Put("old-1", "v", "", time.Minute)
	store.Put("old-2", "v", "", time.Minute)
	store.Put("fresh", "v", "", time.Hour)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 2, store.Sweep())
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, store.Sweep())
}

/*
TestCache_Overwrite verifies Put replaces an existing entry without counting
against the ceiling twice.
*/
func TestCache_Overwrite(t *testing.T) {
	store := cache.New[string](2, time.Hour)

	store.Put("k", "first", "", 0)
	store.Put("k", "second", "", 0)

	value, hit := store.Get("k")
	require.True(t, hit)
	assert.Equal(t, "second", value)
	assert.Equal(t, 1, store.Len())
}

/*
TestCache_ConcurrentAccess hammers one instance from many goroutines; the
race detector verifies no torn access, and the ceiling holds afterwards.
*/
func TestCache_ConcurrentAccess(t *testing.T) {
	store := cache.New[int](50, time.Hour)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("key-%d", (seed*31+i)%100)
				store.Put(key, i, fmt.Sprintf("owner-%d", i%5), 0)
				_, _ = store.Get(key)
				if i%50 == 0 {
					store.InvalidateOwner(fmt.Sprintf("owner-%d", i%5))
					store.Sweep()
				}
			}
		}(worker)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), 50)
}
