// Package swr serves cached values while refreshing them in the background.
package swr

import (
	"context"
	"time"

	"github.com/mselser95/polymarket-lens/pkg/cache"
	"github.com/mselser95/polymarket-lens/pkg/flight"
	"github.com/mselser95/polymarket-lens/pkg/types"
	"go.uber.org/zap"
)

// DefaultRefreshTimeout bounds a background refresh.
const DefaultRefreshTimeout = 30 * time.Second

// Fetcher loads a fresh value from the origin.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Result is a resolved value with the way it was served.
type Result[T any] struct {
	Data      T
	Status    types.CacheStatus
	FetchedAt time.Time
}

// Config holds Orchestrator configuration.
type Config[T any] struct {
	Name           string
	Store          *cache.Store[T]
	Supervisor     *Supervisor
	Logger         *zap.Logger
	Clock          func() time.Time
	RefreshTimeout time.Duration
}

// Orchestrator composes a Store and a flight Group into a
// stale-while-revalidate read.
type Orchestrator[T any] struct {
	name           string
	store          *cache.Store[T]
	flight         *flight.Group[T]
	supervisor     *Supervisor
	logger         *zap.Logger
	now            func() time.Time
	refreshTimeout time.Duration
}

// New creates an Orchestrator. A nil Store or Supervisor gets a private one.
func New[T any](cfg Config[T]) *Orchestrator[T] {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Store == nil {
		cfg.Store = cache.NewStore[T](cache.StoreConfig{Name: cfg.Name, Clock: cfg.Clock, Logger: cfg.Logger})
	}
	if cfg.Supervisor == nil {
		cfg.Supervisor = NewSupervisor(cfg.Logger)
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultRefreshTimeout
	}

	return &Orchestrator[T]{
		name:           cfg.Name,
		store:          cfg.Store,
		flight:         flight.New[T](cfg.Name, cfg.Logger),
		supervisor:     cfg.Supervisor,
		logger:         cfg.Logger,
		now:            cfg.Clock,
		refreshTimeout: cfg.RefreshTimeout,
	}
}

// Store returns the underlying cache store.
func (o *Orchestrator[T]) Store() *cache.Store[T] {
	return o.store
}

// Resolve returns a fresh cached value, a stale cached value while a
// background refresh runs, or blocks on the origin when nothing is cached.
// Only the last case can return an error.
func (o *Orchestrator[T]) Resolve(ctx context.Context, key string, fetch Fetcher[T], staleTTL time.Duration) (Result[T], error) {
	lookup := o.store.Get(key)

	switch lookup.Status {
	case types.CacheHit:
		ResolvesTotal.WithLabelValues(o.name, string(types.CacheHit)).Inc()
		return Result[T]{Data: lookup.Data, Status: types.CacheHit, FetchedAt: lookup.FetchedAt}, nil

	case types.CacheStale:
		ResolvesTotal.WithLabelValues(o.name, string(types.CacheStale)).Inc()
		o.refresh(key, fetch, staleTTL)
		return Result[T]{Data: lookup.Data, Status: types.CacheStale, FetchedAt: lookup.FetchedAt}, nil
	}

	ResolvesTotal.WithLabelValues(o.name, string(types.CacheMiss)).Inc()
	data, _, err := o.flight.Run(ctx, key, o.fetchAndStore(key, fetch, staleTTL))
	if err != nil {
		return Result[T]{Status: types.CacheMiss}, err
	}

	return Result[T]{Data: data, Status: types.CacheMiss, FetchedAt: o.now()}, nil
}

func (o *Orchestrator[T]) fetchAndStore(key string, fetch Fetcher[T], staleTTL time.Duration) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		data, err := fetch(ctx)
		if err != nil {
			return data, err
		}
		o.store.Set(key, data, staleTTL)
		return data, nil
	}
}

func (o *Orchestrator[T]) refresh(key string, fetch Fetcher[T], staleTTL time.Duration) {
	store := o.fetchAndStore(key, fetch, staleTTL)
	bounded := func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeout(ctx, o.refreshTimeout)
		defer cancel()
		return store(ctx)
	}

	o.supervisor.Spawn("swr-refresh-"+o.name, key, func(ctx context.Context) error {
		_, _, err := o.flight.Run(ctx, key, bounded)
		if err != nil {
			RefreshesTotal.WithLabelValues(o.name, "failure").Inc()
			o.logger.Warn("swr-background-refresh-failed",
				zap.String("name", o.name),
				zap.String("key", key),
				zap.Error(err))
			return nil
		}
		RefreshesTotal.WithLabelValues(o.name, "success").Inc()
		return nil
	})
}
