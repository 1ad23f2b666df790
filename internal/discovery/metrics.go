package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MarketsDiscoveredTotal tracks total markets seen by the warmer.
	MarketsDiscoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_discovery_markets_total",
		Help: "Total number of markets returned to the cache warmer",
	})

	// NewMarketsTotal tracks markets seen for the first time.
	NewMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_discovery_new_markets_total",
		Help: "Total number of new markets discovered",
	})

	// WarmupsTotal tracks warm-up reads by cache status.
	WarmupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_discovery_warmups_total",
		Help: "Total number of warm-up listing reads by cache status",
	}, []string{"status"})

	// PollDurationSeconds tracks poll latency.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_lens_discovery_poll_duration_seconds",
		Help:    "Duration of cache warmer polls",
		Buckets: prometheus.DefBuckets,
	})

	// PollErrorsTotal tracks poll failures.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_discovery_poll_errors_total",
		Help: "Total number of cache warmer poll failures",
	})

	// SubscribeErrorsTotal tracks failed token subscriptions.
	SubscribeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_discovery_subscribe_errors_total",
		Help: "Total number of failed price feed subscriptions",
	})
)
