package markets

import (
	"context"
	"fmt"

	"github.com/mselser95/polymarket-lens/pkg/cache"
	"github.com/mselser95/polymarket-lens/pkg/types"
)

// PriceSource resolves the current price of a token for enrichment.
type PriceSource interface {
	Price(ctx context.Context, tokenID string) (price float64, source string, err error)
}

// MidpointFetcher is the CLOB call behind CachedPriceSource.
type MidpointFetcher interface {
	Midpoint(ctx context.Context, tokenID string) (float64, error)
}

// CachedPriceSource serves prices from the price cache, which the live feed
// also writes to, and falls back to the CLOB midpoint on a miss.
type CachedPriceSource struct {
	client MidpointFetcher
	cache  *cache.PriceCache
}

// NewCachedPriceSource creates a new cached price source. cache may be nil.
func NewCachedPriceSource(client MidpointFetcher, priceCache *cache.PriceCache) *CachedPriceSource {
	return &CachedPriceSource{client: client, cache: priceCache}
}

// Price returns the cached price or fetches and caches the midpoint.
func (c *CachedPriceSource) Price(ctx context.Context, tokenID string) (float64, string, error) {
	if c.cache != nil {
		if price, ok := c.cache.Get(tokenID); ok {
			return price, types.SourceCache, nil
		}
	}

	price, err := c.client.Midpoint(ctx, tokenID)
	if err != nil {
		return 0, "", fmt.Errorf("price for %s: %w", tokenID, err)
	}

	if c.cache != nil {
		c.cache.Set(tokenID, price)
	}
	return price, types.SourceCLOB, nil
}

// Clear drops every cached price.
func (c *CachedPriceSource) Clear() {
	if c.cache != nil {
		c.cache.Clear()
	}
}
