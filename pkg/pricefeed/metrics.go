package pricefeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks active feed connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_lens_feed_active_connections",
		Help: "Number of active price feed connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_feed_reconnect_attempts_total",
		Help: "Total number of price feed reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_feed_reconnect_failures_total",
		Help: "Total number of price feed reconnection failures",
	})

	// MessagesReceivedTotal tracks events received by type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_lens_feed_messages_received_total",
			Help: "Total number of price feed events received",
		},
		[]string{"event_type"},
	)

	// MessagesDroppedTotal tracks frames or events that could not be used.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_lens_feed_messages_dropped_total",
			Help: "Total number of price feed messages dropped",
		},
		[]string{"reason"},
	)

	// PricesStoredTotal tracks prices written to the sink.
	PricesStoredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_lens_feed_prices_stored_total",
			Help: "Total number of token prices written from the feed",
		},
		[]string{"event_type"},
	)

	// SubscriptionCount tracks subscribed tokens.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polymarket_lens_feed_subscription_count",
		Help: "Number of tokens subscribed on the price feed",
	})

	// ConnectionDuration tracks connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polymarket_lens_feed_connection_duration_seconds",
		Help:    "Duration of price feed connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})
)
