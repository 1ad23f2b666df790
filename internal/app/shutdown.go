package app

import (
	"context"
	"time"

	"github.com/mselser95/polymarket-lens/internal/storage"
	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application. It is safe to call more
// than once and without a prior Run.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(a.shutdown)
	return nil
}

func (a *App) shutdown() {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop serving before tearing down what the handlers read from
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Cancel context to stop the warmer
	a.cancel()

	if a.priceFeed != nil {
		err = a.priceFeed.Close()
		if err != nil {
			a.logger.Error("price-feed-close-error", zap.Error(err))
		}
	}

	// Background refreshes are abandoned
	a.supervisor.Close()

	a.priceCache.Close()

	closeArchive(a.archive, a.logger)

	// Wait for all goroutines
	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")
}

func closeArchive(archive storage.HistoryArchive, logger *zap.Logger) {
	if archive == nil {
		return
	}
	err := archive.Close()
	if err != nil {
		logger.Error("storage-close-error", zap.Error(err))
	}
}
