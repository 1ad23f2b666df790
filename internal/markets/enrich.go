package markets

import (
	"context"
	"sync"

	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// enrich overwrites each market's lead outcome price with a fresher quote
// from the price source. Lookups pass through the limiter in list order.
// Per-market failures keep the upstream price. Pages larger than
// EnrichMaxMarkets are left untouched.
func (e *Engine) enrich(ctx context.Context, markets []types.Market, meta *types.FetchMeta) {
	if e.prices == nil || len(markets) == 0 || len(markets) > e.cfg.EnrichMaxMarkets {
		return
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := range markets {
		m := &markets[i]
		lead := m.LeadOutcome()
		if lead == nil || lead.TokenID == "" {
			continue
		}
		tokenID := lead.TokenID

		wg.Add(1)
		err := e.limiter.Go(ctx, func(ctx context.Context) {
			defer wg.Done()

			price, source, err := e.prices.Price(ctx, tokenID)
			if err != nil || !types.ValidPrice(price) {
				EnrichmentsTotal.WithLabelValues("failure").Inc()
				e.logger.Debug("enrichment-failed",
					zap.String("market-id", m.ID),
					zap.String("token-id", tokenID),
					zap.Error(err))
				return
			}

			applyLeadPrice(m, price)
			EnrichmentsTotal.WithLabelValues("success").Inc()

			mu.Lock()
			meta.AddSource(source)
			mu.Unlock()
		})
		if err != nil {
			// ctx is done; the rest keep their upstream prices
			wg.Done()
			EnrichmentsTotal.WithLabelValues("failure").Inc()
			e.logger.Debug("enrichment-cancelled",
				zap.String("market-id", m.ID),
				zap.Error(err))
			break
		}
	}

	wg.Wait()
}

// applyLeadPrice sets the lead outcome price. In a binary market the other
// outcome is set to the complement.
func applyLeadPrice(m *types.Market, price float64) {
	m.Outcomes[0].Price = price
	if len(m.Outcomes) == 2 {
		m.Outcomes[1].Price = 1 - price
	}
}
