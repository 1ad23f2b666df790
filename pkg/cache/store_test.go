package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, clock *fakeClock, maxEntries int) *Store[string] {
	t.Helper()
	return NewStore[string](StoreConfig{
		Name:       "test",
		MaxEntries: maxEntries,
		Clock:      clock.Now,
		Logger:     zaptest.NewLogger(t),
	})
}

func TestStore_Lifecycle(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock, 10)

	store.Set("k", "v1", 10*time.Second)

	t.Run("hit-immediately-after-set", func(t *testing.T) {
		got := store.Get("k")
		assert.Equal(t, types.CacheHit, got.Status)
		assert.Equal(t, "v1", got.Data)
		assert.Equal(t, clock.Now(), got.FetchedAt)
		assert.True(t, got.Found())
	})

	t.Run("stale-after-stale-ttl", func(t *testing.T) {
		clock.Advance(10 * time.Second)
		got := store.Get("k")
		assert.Equal(t, types.CacheStale, got.Status)
		assert.Equal(t, "v1", got.Data)
	})

	t.Run("still-stale-before-expiry", func(t *testing.T) {
		clock.Advance(19 * time.Second)
		got := store.Get("k")
		assert.Equal(t, types.CacheStale, got.Status)
	})

	t.Run("miss-and-removed-at-expiry", func(t *testing.T) {
		clock.Advance(time.Second)
		got := store.Get("k")
		assert.Equal(t, types.CacheMiss, got.Status)
		assert.Empty(t, got.Data)
		assert.True(t, got.FetchedAt.IsZero())
		assert.False(t, got.Found())
		assert.Equal(t, 0, store.Len())
	})
}

func TestStore_GetAbsent(t *testing.T) {
	store := newTestStore(t, newFakeClock(), 10)

	assert.Equal(t, types.CacheMiss, store.Get("missing").Status)
}

func TestStore_SetWithExpiry(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock, 10)

	t.Run("explicit-expiry", func(t *testing.T) {
		store.SetWithExpiry("a", "x", time.Second, 5*time.Second)
		clock.Advance(4 * time.Second)
		assert.Equal(t, types.CacheStale, store.Get("a").Status)
		clock.Advance(time.Second)
		assert.Equal(t, types.CacheMiss, store.Get("a").Status)
	})

	t.Run("expiry-shorter-than-stale-is-raised", func(t *testing.T) {
		store.SetWithExpiry("b", "y", 5*time.Second, time.Second)
		clock.Advance(2 * time.Second)
		assert.Equal(t, types.CacheHit, store.Get("b").Status)
		clock.Advance(3 * time.Second)
		assert.Equal(t, types.CacheMiss, store.Get("b").Status)
	})
}

func TestStore_Overwrite(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock, 10)

	store.Set("k", "old", time.Second)
	clock.Advance(2 * time.Second)
	require.Equal(t, types.CacheStale, store.Get("k").Status)

	store.Set("k", "new", time.Second)
	got := store.Get("k")
	assert.Equal(t, types.CacheHit, got.Status)
	assert.Equal(t, "new", got.Data)
}

func TestStore_SweepRemovesExpiredFirst(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock, 4)

	store.Set("old-1", "a", time.Second)
	store.Set("old-2", "b", time.Second)
	clock.Advance(time.Second)
	store.Set("fresh-1", "c", time.Minute)
	store.Set("fresh-2", "d", time.Minute)
	clock.Advance(3 * time.Second) // old-* expired at 3s after write

	store.Set("fresh-3", "e", time.Minute)

	assert.Equal(t, 3, store.Len())
	assert.Equal(t, types.CacheHit, store.Get("fresh-1").Status)
	assert.Equal(t, types.CacheHit, store.Get("fresh-2").Status)
	assert.Equal(t, types.CacheHit, store.Get("fresh-3").Status)
}

func TestStore_SweepEvictsOldestQuartile(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock, 8)

	for i := 0; i < 8; i++ {
		store.Set(fmt.Sprintf("k%d", i), "v", time.Hour)
		clock.Advance(time.Second)
	}

	// Reads do not refresh recency.
	store.Get("k0")
	store.Get("k1")

	store.Set("k8", "v", time.Hour)

	assert.Equal(t, 7, store.Len())
	assert.Equal(t, types.CacheMiss, store.Get("k0").Status)
	assert.Equal(t, types.CacheMiss, store.Get("k1").Status)
	assert.Equal(t, types.CacheHit, store.Get("k2").Status)
	assert.Equal(t, types.CacheHit, store.Get("k8").Status)
}

func TestStore_DeleteClearPattern(t *testing.T) {
	store := newTestStore(t, newFakeClock(), 10)

	store.Set("markets:sports:20", "a", time.Minute)
	store.Set("markets:politics:20", "b", time.Minute)
	store.Set("market:123", "c", time.Minute)
	store.Set("history:123:1d", "d", time.Minute)

	store.Delete("markets:politics:20")
	assert.Equal(t, types.CacheMiss, store.Get("markets:politics:20").Status)

	removed := store.ClearPattern("123")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.Len())

	assert.Equal(t, 1, store.ClearPattern("SPORTS"))

	store.Set("x", "y", time.Minute)
	store.Clear()
	assert.Equal(t, 0, store.Len())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore[int](StoreConfig{Name: "concurrent", MaxEntries: 50})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%120)
				store.Set(key, i, time.Minute)
				store.Get(key)
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, store.Len(), 50)
}
