package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_cache_lookups_total",
		Help: "Total number of cache lookups by store and status",
	}, []string{"store", "status"})

	EvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_cache_evictions_total",
		Help: "Total number of entries removed by the capacity sweep",
	}, []string{"store", "reason"})

	EntriesGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polymarket_lens_cache_entries",
		Help: "Number of entries currently held by each store",
	}, []string{"store"})

	PriceCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_price_cache_hits_total",
		Help: "Total number of price cache hits",
	})

	PriceCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_price_cache_misses_total",
		Help: "Total number of price cache misses",
	})

	PriceCacheSetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_price_cache_sets_total",
		Help: "Total number of price cache sets",
	})
)
