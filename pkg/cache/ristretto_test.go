package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestPriceCache(t *testing.T, ttl time.Duration) *PriceCache {
	t.Helper()
	pc, err := NewPriceCache(&PriceCacheConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		TTL:         ttl,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(pc.Close)
	return pc
}

func TestPriceCache(t *testing.T) {
	pc := newTestPriceCache(t, time.Hour)

	t.Run("set-and-get", func(t *testing.T) {
		require.True(t, pc.Set("tok-1", 0.42))
		pc.Wait()

		price, found := pc.Get("tok-1")
		require.True(t, found)
		assert.Equal(t, 0.42, price)
	})

	t.Run("get-missing-token", func(t *testing.T) {
		_, found := pc.Get("nonexistent")
		assert.False(t, found)
	})

	t.Run("store-price-and-delete", func(t *testing.T) {
		pc.StorePrice("tok-2", 0.9)
		pc.Wait()
		_, found := pc.Get("tok-2")
		require.True(t, found)

		pc.Delete("tok-2")
		_, found = pc.Get("tok-2")
		assert.False(t, found)
	})

	t.Run("clear", func(t *testing.T) {
		pc.Set("tok-3", 0.1)
		pc.Wait()
		pc.Clear()
		_, found := pc.Get("tok-3")
		assert.False(t, found)
	})
}

func TestPriceCache_TTLExpiration(t *testing.T) {
	pc := newTestPriceCache(t, 100*time.Millisecond)

	pc.Set("tok", 0.5)
	pc.Wait()

	assert.Eventually(t, func() bool {
		_, found := pc.Get("tok")
		return !found
	}, 3*time.Second, 50*time.Millisecond)
}
