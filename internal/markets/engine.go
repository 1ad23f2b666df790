// Package markets answers market listing, detail, history and order book
// queries from stale-while-revalidate caches over the Gamma and CLOB APIs.
package markets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mselser95/polymarket-lens/internal/discovery"
	"github.com/mselser95/polymarket-lens/internal/fetch"
	"github.com/mselser95/polymarket-lens/internal/storage"
	"github.com/mselser95/polymarket-lens/pkg/cache"
	"github.com/mselser95/polymarket-lens/pkg/limiter"
	"github.com/mselser95/polymarket-lens/pkg/swr"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// Defaults for Config fields left zero.
const (
	DefaultMarketsTTL       = 30 * time.Second
	DefaultDetailTTL        = 60 * time.Second
	DefaultHistoryTTL       = 5 * time.Minute
	DefaultTagsTTL          = 10 * time.Minute
	DefaultOrderBookTTL     = 5 * time.Second
	DefaultPageSize         = 100
	DefaultPageCap          = 10
	DefaultEnrichMaxMarkets = 50
	DefaultEnrichLimit      = 5
)

// GammaAPI is the primary listing and detail API.
type GammaAPI interface {
	ListMarkets(ctx context.Context, p discovery.ListParams) ([]types.Market, error)
	MarketByID(ctx context.Context, id string) (*types.Market, error)
	MarketBySlug(ctx context.Context, slug string) (*types.Market, error)
	ListTags(ctx context.Context) ([]types.Tag, error)
	MarketHistory(ctx context.Context, id string, r types.HistoryRange) ([]types.PricePoint, error)
	MarketHistoryAlt(ctx context.Context, id string, r types.HistoryRange) ([]types.PricePoint, error)
}

// CLOBAPI is the secondary per-token API.
type CLOBAPI interface {
	Book(ctx context.Context, tokenID string) (*types.BookResponse, error)
	PriceHistory(ctx context.Context, tokenID string, r types.HistoryRange) ([]types.PricePoint, error)
}

// Config holds Engine configuration.
type Config struct {
	Gamma      GammaAPI
	CLOB       CLOBAPI
	Prices     PriceSource            // optional; enrichment is skipped without it
	Archive    storage.HistoryArchive // optional
	Limiter    *limiter.Limiter       // enrichment ceiling; DefaultEnrichLimit when nil
	Supervisor *swr.Supervisor
	Logger     *zap.Logger
	Clock      func() time.Time

	MaxEntries       int
	MarketsTTL       time.Duration
	DetailTTL        time.Duration
	HistoryTTL       time.Duration
	TagsTTL          time.Duration
	OrderBookTTL     time.Duration
	PageSize         int
	PageCap          int
	EnrichMaxMarkets int
}

// listing is the cached, pre-enrichment result of a listing query.
type listing struct {
	Markets    []types.Market
	Total      int
	TotalExact bool
	HasMore    bool
}

// historyEntry is a cached history series and where it came from.
type historyEntry struct {
	Points    []types.PricePoint
	Synthetic bool
	Source    string
}

// Engine is the market query engine.
type Engine struct {
	cfg     Config
	gamma   GammaAPI
	clob    CLOBAPI
	prices  PriceSource
	archive storage.HistoryArchive
	limiter *limiter.Limiter
	logger  *zap.Logger
	now     func() time.Time

	listings *swr.Orchestrator[listing]
	details  *swr.Orchestrator[types.Market]
	history  *swr.Orchestrator[historyEntry]
	tags     *swr.Orchestrator[[]types.Tag]
	books    *swr.Orchestrator[types.OrderBook]
}

// NewEngine creates a new Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Gamma == nil {
		return nil, errors.New("gamma client is required")
	}
	if cfg.CLOB == nil {
		return nil, errors.New("clob client is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Supervisor == nil {
		cfg.Supervisor = swr.NewSupervisor(cfg.Logger)
	}
	if cfg.Limiter == nil {
		l, err := limiter.New("enrichment", DefaultEnrichLimit)
		if err != nil {
			return nil, err
		}
		cfg.Limiter = l
	}
	setDefault(&cfg.MarketsTTL, DefaultMarketsTTL)
	setDefault(&cfg.DetailTTL, DefaultDetailTTL)
	setDefault(&cfg.HistoryTTL, DefaultHistoryTTL)
	setDefault(&cfg.TagsTTL, DefaultTagsTTL)
	setDefault(&cfg.OrderBookTTL, DefaultOrderBookTTL)
	setDefault(&cfg.PageSize, DefaultPageSize)
	// Gamma caps a page at MaxBatchSize; a larger size would read every
	// page as short and end category scans early.
	if cfg.PageSize > discovery.MaxBatchSize {
		cfg.PageSize = discovery.MaxBatchSize
	}
	setDefault(&cfg.PageCap, DefaultPageCap)
	setDefault(&cfg.EnrichMaxMarkets, DefaultEnrichMaxMarkets)

	e := &Engine{
		cfg:     cfg,
		gamma:   cfg.Gamma,
		clob:    cfg.CLOB,
		prices:  cfg.Prices,
		archive: cfg.Archive,
		limiter: cfg.Limiter,
		logger:  cfg.Logger,
		now:     cfg.Clock,
	}

	e.listings = newOrchestrator[listing](cfg, "markets")
	e.details = newOrchestrator[types.Market](cfg, "detail")
	e.history = newOrchestrator[historyEntry](cfg, "history")
	e.tags = newOrchestrator[[]types.Tag](cfg, "tags")
	e.books = newOrchestrator[types.OrderBook](cfg, "orderbook")

	return e, nil
}

func newOrchestrator[T any](cfg Config, name string) *swr.Orchestrator[T] {
	store := cache.NewStore[T](cache.StoreConfig{
		Name:       name,
		MaxEntries: cfg.MaxEntries,
		Clock:      cfg.Clock,
		Logger:     cfg.Logger,
	})
	return swr.New(swr.Config[T]{
		Name:       name,
		Store:      store,
		Supervisor: cfg.Supervisor,
		Logger:     cfg.Logger,
		Clock:      cfg.Clock,
	})
}

func setDefault[T int | time.Duration](v *T, def T) {
	if *v <= 0 {
		*v = def
	}
}

// FetchMarketDetail returns one market by id, falling back to a slug lookup
// when the id is unknown upstream.
func (e *Engine) FetchMarketDetail(ctx context.Context, id string) (*types.MarketDetail, error) {
	start := time.Now()
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: market id is required", types.ErrInvalidQuery)
	}

	market, meta, err := e.resolveMarket(ctx, id)
	if err != nil {
		QueryErrorsTotal.WithLabelValues("detail").Inc()
		return nil, err
	}

	markets := []types.Market{market}
	e.enrich(ctx, markets, &meta)

	meta.DurationMs = time.Since(start).Milliseconds()
	QueryDurationSeconds.WithLabelValues("detail", string(meta.CacheStatus)).Observe(time.Since(start).Seconds())
	return &types.MarketDetail{Market: markets[0], Meta: meta}, nil
}

// resolveMarket reads a market through the detail cache. The returned market
// is a copy the caller may modify.
func (e *Engine) resolveMarket(ctx context.Context, id string) (types.Market, types.FetchMeta, error) {
	res, err := e.details.Resolve(ctx, cache.Key("market", id), func(ctx context.Context) (types.Market, error) {
		return e.loadDetail(ctx, id)
	}, e.cfg.DetailTTL)
	if err != nil {
		return types.Market{}, types.FetchMeta{}, upstreamError("fetch market detail", err)
	}
	return res.Data.Clone(), newMeta(res.Status, res.FetchedAt, types.SourceGamma), nil
}

func (e *Engine) loadDetail(ctx context.Context, id string) (types.Market, error) {
	market, err := e.gamma.MarketByID(ctx, id)
	if err == nil {
		return *market, nil
	}

	// An empty 200 body surfaces as ErrNotFound without a status.
	var statusErr *fetch.StatusError
	if !errors.Is(err, fetch.ErrNotFound) && !errors.As(err, &statusErr) {
		return types.Market{}, err
	}

	e.logger.Debug("market-id-lookup-failed-trying-slug",
		zap.String("id", id),
		zap.Error(err))

	market, err = e.gamma.MarketBySlug(ctx, id)
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) || errors.Is(err, fetch.ErrInvalidRequest) {
			return types.Market{}, &types.MarketNotFoundError{ID: id}
		}
		return types.Market{}, err
	}
	return *market, nil
}

// FetchOrderBook returns the normalized order book of a token.
func (e *Engine) FetchOrderBook(ctx context.Context, tokenID string) (*types.OrderBookResult, error) {
	start := time.Now()
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, fmt.Errorf("%w: token id is required", types.ErrInvalidQuery)
	}

	res, err := e.books.Resolve(ctx, cache.Key("book", tokenID), func(ctx context.Context) (types.OrderBook, error) {
		resp, err := e.clob.Book(ctx, tokenID)
		if err != nil {
			if errors.Is(err, fetch.ErrNotFound) {
				return types.OrderBook{}, &types.MarketNotFoundError{ID: tokenID}
			}
			return types.OrderBook{}, err
		}
		return types.NormalizeBook(tokenID, resp, e.now()), nil
	}, e.cfg.OrderBookTTL)
	if err != nil {
		QueryErrorsTotal.WithLabelValues("orderbook").Inc()
		return nil, upstreamError("fetch order book", err)
	}

	meta := newMeta(res.Status, res.FetchedAt, types.SourceCLOB)
	meta.DurationMs = time.Since(start).Milliseconds()
	QueryDurationSeconds.WithLabelValues("orderbook", string(meta.CacheStatus)).Observe(time.Since(start).Seconds())
	return &types.OrderBookResult{Book: res.Data, Meta: meta}, nil
}

// FetchCategories lists category tags. Failures are logged and yield an
// empty list.
func (e *Engine) FetchCategories(ctx context.Context) *types.CategoriesResult {
	start := time.Now()

	res, err := e.tags.Resolve(ctx, cache.Key("tags"), e.gamma.ListTags, e.cfg.TagsTTL)
	if err != nil {
		TagFetchErrorsTotal.Inc()
		e.logger.Warn("tag-fetch-failed", zap.Error(err))
		meta := newMeta(types.CacheMiss, e.now())
		meta.DurationMs = time.Since(start).Milliseconds()
		return &types.CategoriesResult{Categories: []types.Tag{}, Meta: meta}
	}

	tags := append([]types.Tag{}, res.Data...)
	meta := newMeta(res.Status, res.FetchedAt, types.SourceGamma)
	meta.DurationMs = time.Since(start).Milliseconds()
	QueryDurationSeconds.WithLabelValues("categories", string(meta.CacheStatus)).Observe(time.Since(start).Seconds())
	return &types.CategoriesResult{Categories: tags, Meta: meta}
}

// ClearCache drops every cached entry, including enrichment prices.
func (e *Engine) ClearCache() {
	e.listings.Store().Clear()
	e.details.Store().Clear()
	e.history.Store().Clear()
	e.tags.Store().Clear()
	e.books.Store().Clear()
	if c, ok := e.prices.(interface{ Clear() }); ok {
		c.Clear()
	}
	e.logger.Info("engine-cache-cleared")
}

// Invalidate drops every cached entry whose key contains pattern and
// returns how many were removed.
func (e *Engine) Invalidate(pattern string) int {
	if strings.TrimSpace(pattern) == "" {
		return 0
	}
	removed := e.listings.Store().ClearPattern(pattern) +
		e.details.Store().ClearPattern(pattern) +
		e.history.Store().ClearPattern(pattern) +
		e.tags.Store().ClearPattern(pattern) +
		e.books.Store().ClearPattern(pattern)

	e.logger.Info("engine-cache-invalidated",
		zap.String("pattern", pattern),
		zap.Int("removed", removed))
	return removed
}

// newMeta builds the envelope for a resolved read. Cached reads also report
// the cache as a source.
func newMeta(status types.CacheStatus, fetchedAt time.Time, sources ...string) types.FetchMeta {
	meta := types.FetchMeta{
		FetchedAt:   fetchedAt,
		CacheStatus: status,
		Sources:     []string{},
	}
	for _, s := range sources {
		meta.AddSource(s)
	}
	if status != types.CacheMiss {
		meta.AddSource(types.SourceCache)
	}
	return meta
}

// upstreamError maps an origin failure to the domain taxonomy: not-found and
// invalid-query pass through, an origin not-found becomes market-not-found,
// other client errors become invalid-query, and everything else is a
// retryable unavailability.
func upstreamError(op string, err error) error {
	switch {
	case errors.Is(err, types.ErrMarketNotFound), errors.Is(err, types.ErrInvalidQuery):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, fetch.ErrNotFound):
		return fmt.Errorf("%s: %w: %v", op, types.ErrMarketNotFound, err)
	case errors.Is(err, fetch.ErrInvalidRequest):
		return fmt.Errorf("%s: %w: %v", op, types.ErrInvalidQuery, err)
	default:
		return &types.UnavailableError{Op: op, Err: err}
	}
}
