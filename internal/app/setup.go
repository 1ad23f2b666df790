package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/mselser95/polymarket-lens/internal/discovery"
	"github.com/mselser95/polymarket-lens/internal/fetch"
	"github.com/mselser95/polymarket-lens/internal/markets"
	"github.com/mselser95/polymarket-lens/internal/storage"
	"github.com/mselser95/polymarket-lens/pkg/cache"
	"github.com/mselser95/polymarket-lens/pkg/config"
	"github.com/mselser95/polymarket-lens/pkg/healthprobe"
	"github.com/mselser95/polymarket-lens/pkg/httpserver"
	"github.com/mselser95/polymarket-lens/pkg/limiter"
	"github.com/mselser95/polymarket-lens/pkg/pricefeed"
	"github.com/mselser95/polymarket-lens/pkg/swr"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := setupHealthChecker()
	fetchClient := setupFetchClient(cfg, logger)

	priceCache, err := setupPriceCache(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup price cache: %w", err)
	}

	archive, err := setupArchive(ctx, cfg, logger)
	if err != nil {
		priceCache.Close()
		cancel()
		return nil, fmt.Errorf("setup archive: %w", err)
	}

	supervisor := swr.NewSupervisor(logger)

	engine, err := setupEngine(cfg, logger, fetchClient, priceCache, archive, supervisor)
	if err != nil {
		supervisor.Close()
		closeArchive(archive, logger)
		priceCache.Close()
		cancel()
		return nil, fmt.Errorf("setup engine: %w", err)
	}

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		engine:        engine,
		priceCache:    priceCache,
		supervisor:    supervisor,
		archive:       archive,
		ctx:           ctx,
		cancel:        cancel,
	}

	if !opts.OneShot {
		if cfg.PriceFeedEnabled {
			a.priceFeed = setupPriceFeed(cfg, logger, priceCache)
			healthChecker.AddCheck("price-feed", func() error {
				if !a.priceFeed.Connected() {
					return errors.New("disconnected")
				}
				return nil
			})
		}
		a.discoveryService = setupDiscoveryService(cfg, logger, engine, a.priceFeed)
	}

	a.httpServer = setupHTTPServer(cfg, logger, healthChecker, engine)

	return a, nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New()
}

func setupFetchClient(cfg *config.Config, logger *zap.Logger) *fetch.Client {
	return fetch.NewClient(fetch.Config{
		Timeout:     cfg.FetchTimeout,
		MaxAttempts: cfg.FetchMaxAttempts,
		Logger:      logger,
	})
}

func setupPriceCache(cfg *config.Config, logger *zap.Logger) (*cache.PriceCache, error) {
	return cache.NewPriceCache(&cache.PriceCacheConfig{
		NumCounters: 100000, // 10x expected max tokens
		MaxCost:     10000,  // Maximum 10000 token prices
		BufferItems: 64,     // Buffer size for Get operations
		TTL:         cfg.PriceCacheTTL,
		Logger:      logger,
	})
}

// setupArchive returns nil when archiving is disabled.
func setupArchive(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.HistoryArchive, error) {
	switch cfg.StorageMode {
	case storage.ModePostgres:
		archive, err := storage.NewPostgresArchive(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres archive: %w", err)
		}
		return archive, nil

	case storage.ModeMemory:
		return storage.NewMemoryArchive(logger), nil

	case storage.ModeNone, "":
		return nil, nil
	}

	return nil, storage.ValidateMode(cfg.StorageMode)
}

func setupEngine(
	cfg *config.Config,
	logger *zap.Logger,
	fetchClient *fetch.Client,
	priceCache *cache.PriceCache,
	archive storage.HistoryArchive,
	supervisor *swr.Supervisor,
) (*markets.Engine, error) {
	enrichLimiter, err := limiter.New("enrichment", cfg.EnrichConcurrency)
	if err != nil {
		return nil, fmt.Errorf("create enrichment limiter: %w", err)
	}

	clobClient := markets.NewCLOBClient(cfg.PolymarketCLOBURL, fetchClient, logger)

	return markets.NewEngine(markets.Config{
		Gamma:            discovery.NewClient(cfg.PolymarketGammaURL, fetchClient, logger),
		CLOB:             clobClient,
		Prices:           markets.NewCachedPriceSource(clobClient, priceCache),
		Archive:          archive,
		Limiter:          enrichLimiter,
		Supervisor:       supervisor,
		Logger:           logger,
		MaxEntries:       cfg.CacheMaxEntries,
		MarketsTTL:       cfg.MarketsStaleTTL,
		DetailTTL:        cfg.DetailStaleTTL,
		HistoryTTL:       cfg.HistoryStaleTTL,
		TagsTTL:          cfg.TagsStaleTTL,
		OrderBookTTL:     cfg.OrderBookStaleTTL,
		PageSize:         cfg.QueryPageSize,
		PageCap:          cfg.QueryPageCap,
		EnrichMaxMarkets: cfg.EnrichMaxMarkets,
	})
}

func setupPriceFeed(cfg *config.Config, logger *zap.Logger, sink pricefeed.Sink) *pricefeed.Feed {
	return pricefeed.New(pricefeed.Config{
		URL:                   cfg.PolymarketWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		Sink:                  sink,
		Logger:                logger,
	})
}

func setupDiscoveryService(cfg *config.Config, logger *zap.Logger, engine *markets.Engine, feed *pricefeed.Feed) *discovery.Service {
	dcfg := &discovery.Config{
		Source:       engine,
		PollInterval: cfg.DiscoveryPollInterval,
		MarketLimit:  cfg.DiscoveryMarketLimit,
		Logger:       logger,
	}
	if feed != nil {
		dcfg.Subscriber = feed
	}
	return discovery.New(dcfg)
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	engine *markets.Engine,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Markets:       engine,
	})
}
