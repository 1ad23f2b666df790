package markets

import (
	"context"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/cache"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

type historyStep struct {
	name   string
	source string
	load   func(ctx context.Context) ([]types.PricePoint, error)
}

// FetchMarketHistory returns the price history of a market. Upstream
// endpoints are tried in order (token-scoped CLOB, market-scoped Gamma,
// alternate Gamma path), then the archive; when all are empty a synthetic
// series anchored at the current price is returned with Synthetic set.
func (e *Engine) FetchMarketHistory(ctx context.Context, id string, r types.HistoryRange) (*types.HistoryResult, error) {
	start := time.Now()
	if r == "" {
		r = types.Range1D
	}

	market, _, err := e.resolveMarket(ctx, id)
	if err != nil {
		QueryErrorsTotal.WithLabelValues("history").Inc()
		return nil, err
	}

	res, err := e.history.Resolve(ctx, cache.Key("history", market.ID, string(r)), func(ctx context.Context) (historyEntry, error) {
		return e.loadHistory(ctx, market, r), nil
	}, e.cfg.HistoryTTL)
	if err != nil {
		QueryErrorsTotal.WithLabelValues("history").Inc()
		return nil, upstreamError("fetch market history", err)
	}

	meta := newMeta(res.Status, res.FetchedAt, res.Data.Source)
	meta.DurationMs = time.Since(start).Milliseconds()
	QueryDurationSeconds.WithLabelValues("history", string(meta.CacheStatus)).Observe(time.Since(start).Seconds())

	return &types.HistoryResult{
		MarketID:  market.ID,
		Range:     r,
		Points:    append([]types.PricePoint{}, res.Data.Points...),
		Synthetic: res.Data.Synthetic,
		Source:    res.Data.Source,
		Meta:      meta,
	}, nil
}

// loadHistory walks the fallback chain. It never fails.
func (e *Engine) loadHistory(ctx context.Context, market types.Market, r types.HistoryRange) historyEntry {
	var steps []historyStep
	if lead := market.LeadOutcome(); lead != nil && lead.TokenID != "" {
		steps = append(steps, historyStep{"clob", types.SourceCLOB, func(ctx context.Context) ([]types.PricePoint, error) {
			return e.clob.PriceHistory(ctx, lead.TokenID, r)
		}})
	}
	steps = append(steps,
		historyStep{"gamma", types.SourceGamma, func(ctx context.Context) ([]types.PricePoint, error) {
			return e.gamma.MarketHistory(ctx, market.ID, r)
		}},
		historyStep{"gamma-alt", types.SourceGamma, func(ctx context.Context) ([]types.PricePoint, error) {
			return e.gamma.MarketHistoryAlt(ctx, market.ID, r)
		}},
	)

	for _, step := range steps {
		points, err := step.load(ctx)
		if err != nil {
			e.logger.Debug("history-endpoint-failed",
				zap.String("market-id", market.ID),
				zap.String("endpoint", step.name),
				zap.Error(err))
			continue
		}
		points = validPoints(points)
		if len(points) == 0 {
			continue
		}

		HistorySourceTotal.WithLabelValues(step.name).Inc()
		e.archivePoints(ctx, market.ID, points)
		return historyEntry{Points: points, Source: step.source}
	}

	if e.archive != nil {
		points, err := e.archive.LoadPoints(ctx, market.ID, e.now().Add(-r.Span()))
		if err != nil {
			e.logger.Warn("history-archive-read-failed",
				zap.String("market-id", market.ID),
				zap.Error(err))
		} else if points = validPoints(points); len(points) > 0 {
			HistorySourceTotal.WithLabelValues(types.SourceArchive).Inc()
			return historyEntry{Points: points, Source: types.SourceArchive}
		}
	}

	HistorySourceTotal.WithLabelValues(types.SourceSynthetic).Inc()
	SyntheticHistoryTotal.Inc()
	e.logger.Info("history-synthesized",
		zap.String("market-id", market.ID),
		zap.String("range", string(r)))

	return historyEntry{
		Points:    SyntheticHistory(market.ID, r, market.CurrentPrice(), market.OneDayPriceChange, e.now()),
		Synthetic: true,
		Source:    types.SourceSynthetic,
	}
}

// archivePoints saves genuine history. Failures are logged.
func (e *Engine) archivePoints(ctx context.Context, marketID string, points []types.PricePoint) {
	if e.archive == nil {
		return
	}
	if err := e.archive.SavePoints(ctx, marketID, points); err != nil {
		e.logger.Warn("history-archive-write-failed",
			zap.String("market-id", marketID),
			zap.Error(err))
	}
}

func validPoints(points []types.PricePoint) []types.PricePoint {
	out := points[:0:0]
	for _, p := range points {
		if p.Timestamp.IsZero() || !types.ValidPrice(p.Price) {
			continue
		}
		out = append(out, p)
	}
	return out
}
