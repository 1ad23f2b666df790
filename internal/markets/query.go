package markets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mselser95/polymarket-lens/internal/discovery"
	"github.com/mselser95/polymarket-lens/pkg/cache"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// FetchMarkets returns a page of markets matching q. Without a category one
// upstream window is read; with a category, upstream pages are scanned and
// filtered until enough matches are found, the upstream runs out, or the page
// cap is reached.
func (e *Engine) FetchMarkets(ctx context.Context, q types.MarketQuery) (*types.MarketsResult, error) {
	start := time.Now()
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	res, err := e.listings.Resolve(ctx, listingKey(q), func(ctx context.Context) (listing, error) {
		if q.Category != "" {
			return e.scanCategory(ctx, q)
		}
		return e.fetchWindow(ctx, q)
	}, e.cfg.MarketsTTL)
	if err != nil {
		QueryErrorsTotal.WithLabelValues("markets").Inc()
		return nil, upstreamError("fetch markets", err)
	}

	markets := make([]types.Market, len(res.Data.Markets))
	for i := range res.Data.Markets {
		markets[i] = res.Data.Markets[i].Clone()
	}

	meta := newMeta(res.Status, res.FetchedAt, types.SourceGamma)
	if q.Enrich {
		e.enrich(ctx, markets, &meta)
	}

	meta.DurationMs = time.Since(start).Milliseconds()
	QueryDurationSeconds.WithLabelValues("markets", string(meta.CacheStatus)).Observe(time.Since(start).Seconds())

	return &types.MarketsResult{
		Markets:    markets,
		Total:      res.Data.Total,
		TotalExact: res.Data.TotalExact,
		HasMore:    res.Data.HasMore,
		Meta:       meta,
	}, nil
}

// listingKey encodes every field that changes the cached listing. Enrich is
// applied after the cache and is not part of the key.
func listingKey(q types.MarketQuery) string {
	return cache.Key(
		"markets",
		"active="+strconv.FormatBool(q.Active),
		"closed="+strconv.FormatBool(q.Closed),
		"limit="+strconv.Itoa(q.Limit),
		"offset="+strconv.Itoa(q.Offset),
		"sort="+q.SortBy,
		"dir="+q.SortDirection,
		"category="+q.Category,
		"q="+q.Query,
	)
}

func (e *Engine) listParams(q types.MarketQuery, offset, limit int, includeTag bool) discovery.ListParams {
	return discovery.ListParams{
		Limit:      limit,
		Offset:     offset,
		Order:      q.SortBy,
		Ascending:  q.SortDirection == "asc",
		Active:     q.Active,
		Closed:     q.Closed,
		IncludeTag: includeTag,
	}
}

// fetchWindow reads upstream rows [offset, offset+limit) in page-size chunks
// (a single request unless limit exceeds the page size) and applies the text
// filter. hasMore is inferred from the last page being full.
func (e *Engine) fetchWindow(ctx context.Context, q types.MarketQuery) (listing, error) {
	var rows []types.Market
	full := false

	for fetched := 0; fetched < q.Limit; {
		size := min(e.cfg.PageSize, q.Limit-fetched)
		page, err := e.gamma.ListMarkets(ctx, e.listParams(q, q.Offset+fetched, size, false))
		if err != nil {
			return listing{}, fmt.Errorf("fetch page at offset %d: %w", q.Offset+fetched, err)
		}
		PagesScannedTotal.WithLabelValues("window").Inc()

		rows = append(rows, page...)
		fetched += len(page)
		full = len(page) == size
		if !full {
			break
		}
	}

	matched := filterMarkets(rows, "", q.Query)
	total := q.Offset + len(matched)
	if full {
		total++
	}

	return listing{
		Markets:    emptyIfNil(matched),
		Total:      total,
		TotalExact: !full && q.Query == "",
		HasMore:    full,
	}, nil
}

// scanCategory scans upstream pages from the start, keeping rows that match
// the category and text filters, then slices [offset, offset+limit) out of
// the matches.
func (e *Engine) scanCategory(ctx context.Context, q types.MarketQuery) (listing, error) {
	var matched []types.Market
	want := q.Offset + q.Limit
	exhausted := false
	pages := 0

	for pages < e.cfg.PageCap {
		page, err := e.gamma.ListMarkets(ctx, e.listParams(q, pages*e.cfg.PageSize, e.cfg.PageSize, true))
		if err != nil {
			if pages == 0 {
				return listing{}, fmt.Errorf("fetch page 0: %w", err)
			}
			e.logger.Warn("category-scan-truncated",
				zap.String("category", q.Category),
				zap.Int("pages", pages),
				zap.Error(err))
			break
		}
		pages++
		PagesScannedTotal.WithLabelValues("category").Inc()

		matched = append(matched, filterMarkets(page, q.Category, q.Query)...)

		if len(page) < e.cfg.PageSize {
			exhausted = true
			break
		}
		if len(matched) >= want {
			break
		}
	}

	total := len(matched)
	if !exhausted {
		total++
	}

	e.logger.Debug("category-scan-complete",
		zap.String("category", q.Category),
		zap.Int("pages", pages),
		zap.Int("matched", len(matched)),
		zap.Bool("exhausted", exhausted))

	return listing{
		Markets:    emptyIfNil(window(matched, q.Offset, q.Limit)),
		Total:      total,
		TotalExact: exhausted,
		HasMore:    want < total,
	}, nil
}

func filterMarkets(markets []types.Market, category, query string) []types.Market {
	var out []types.Market
	for i := range markets {
		if markets[i].HasCategory(category) && markets[i].MatchesQuery(query) {
			out = append(out, markets[i])
		}
	}
	return out
}

func window(markets []types.Market, offset, limit int) []types.Market {
	if offset >= len(markets) {
		return nil
	}
	end := min(offset+limit, len(markets))
	return markets[offset:end]
}

func emptyIfNil(markets []types.Market) []types.Market {
	if markets == nil {
		return []types.Market{}
	}
	return markets
}
