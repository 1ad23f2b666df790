package app

import (
	"context"
	"net/http"
	"sync"

	"github.com/mselser95/polymarket-lens/internal/discovery"
	"github.com/mselser95/polymarket-lens/internal/markets"
	"github.com/mselser95/polymarket-lens/internal/storage"
	"github.com/mselser95/polymarket-lens/pkg/cache"
	"github.com/mselser95/polymarket-lens/pkg/config"
	"github.com/mselser95/polymarket-lens/pkg/healthprobe"
	"github.com/mselser95/polymarket-lens/pkg/httpserver"
	"github.com/mselser95/polymarket-lens/pkg/pricefeed"
	"github.com/mselser95/polymarket-lens/pkg/swr"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg              *config.Config
	logger           *zap.Logger
	healthChecker    *healthprobe.HealthChecker
	httpServer       *httpserver.Server
	engine           *markets.Engine
	discoveryService *discovery.Service
	priceFeed        *pricefeed.Feed
	priceCache       *cache.PriceCache
	supervisor       *swr.Supervisor
	archive          storage.HistoryArchive
	ctx              context.Context
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	shutdownOnce     sync.Once
}

// Options holds application options.
type Options struct {
	// OneShot builds only the query engine path: no price feed and no warmer.
	// Used by the CLI lookup commands.
	OneShot bool
}

// Engine returns the market query engine.
func (a *App) Engine() *markets.Engine {
	return a.engine
}

// Handler returns the HTTP handler serving the market API, metrics and probes.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler()
}
