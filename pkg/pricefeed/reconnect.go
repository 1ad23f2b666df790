package pricefeed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig holds the configuration for exponential backoff reconnection.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64 // 0.2 = 20%
}

// Reconnector retries a connect function with exponential backoff and jitter.
type Reconnector struct {
	config         ReconnectConfig
	logger         *zap.Logger
	currentBackoff time.Duration
	mu             sync.Mutex
}

// NewReconnector creates a new Reconnector.
func NewReconnector(cfg ReconnectConfig, logger *zap.Logger) *Reconnector {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 2
	}
	return &Reconnector{
		config:         cfg,
		logger:         logger,
		currentBackoff: cfg.InitialDelay,
	}
}

// Reconnect calls connect until it succeeds or ctx is done.
func (r *Reconnector) Reconnect(ctx context.Context, connect func(context.Context) error) error {
	for {
		backoff := r.nextBackoff()

		r.logger.Info("feed-reconnect-attempt", zap.Duration("backoff", backoff))
		ReconnectAttemptsTotal.Inc()

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}

		err := connect(ctx)
		if err == nil {
			r.Reset()
			r.logger.Info("feed-reconnect-successful")
			return nil
		}

		r.logger.Warn("feed-reconnect-failed", zap.Error(err))
		ReconnectFailuresTotal.Inc()
		r.incrementBackoff()
	}
}

// Reset resets the backoff to the initial delay.
func (r *Reconnector) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentBackoff = r.config.InitialDelay
}

// nextBackoff returns the current backoff with up to JitterPercent added.
func (r *Reconnector) nextBackoff() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	jitter := rand.Float64() * r.config.JitterPercent
	return time.Duration(float64(r.currentBackoff) * (1.0 + jitter))
}

func (r *Reconnector) incrementBackoff() {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := time.Duration(float64(r.currentBackoff) * r.config.BackoffMultiplier)
	if next > r.config.MaxDelay {
		next = r.config.MaxDelay
	}
	r.currentBackoff = next
}
