package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// PriceCache holds recent per-token prices from the CLOB midpoint endpoint
// and the live price feed.
type PriceCache struct {
	cache  *ristretto.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// PriceCacheConfig holds configuration for the Ristretto-backed price cache.
type PriceCacheConfig struct {
	NumCounters int64 // Number of keys to track frequency (10x max items)
	MaxCost     int64 // Maximum number of prices held
	BufferItems int64 // Number of keys per Get buffer
	TTL         time.Duration
	Logger      *zap.Logger
}

// NewPriceCache creates a new Ristretto-backed price cache.
func NewPriceCache(cfg *PriceCacheConfig) (*PriceCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &PriceCache{
		cache:  cache,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

func priceKey(tokenID string) string {
	return "price:" + tokenID
}

// Get returns the cached price of a token.
func (p *PriceCache) Get(tokenID string) (float64, bool) {
	value, found := p.cache.Get(priceKey(tokenID))
	if !found {
		PriceCacheMissesTotal.Inc()
		return 0, false
	}

	price, ok := value.(float64)
	if !ok {
		PriceCacheMissesTotal.Inc()
		p.logger.Warn("invalid-price-type-in-cache", zap.String("token-id", tokenID))
		return 0, false
	}

	PriceCacheHitsTotal.Inc()
	return price, true
}

// Set stores a token price with the configured TTL.
func (p *PriceCache) Set(tokenID string, price float64) bool {
	// Cost = 1 (we're counting items, not bytes)
	success := p.cache.SetWithTTL(priceKey(tokenID), price, 1, p.ttl)
	if success {
		PriceCacheSetsTotal.Inc()
	}
	return success
}

// StorePrice implements pricefeed.Sink.
func (p *PriceCache) StorePrice(tokenID string, price float64) {
	if !p.Set(tokenID, price) {
		p.logger.Debug("price-cache-set-dropped", zap.String("token-id", tokenID))
	}
}

// Delete removes a token price.
func (p *PriceCache) Delete(tokenID string) {
	p.cache.Del(priceKey(tokenID))
}

// Clear removes all prices.
func (p *PriceCache) Clear() {
	p.cache.Clear()
	p.logger.Info("price-cache-cleared")
}

// Close closes the cache and releases resources.
func (p *PriceCache) Close() {
	p.cache.Close()
}

// Wait blocks until all pending writes have been applied.
func (p *PriceCache) Wait() {
	p.cache.Wait()
}
