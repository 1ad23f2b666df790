package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts attempts by outcome ("ok" or an error class).
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_lens_fetch_requests_total",
			Help: "Total upstream request attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RequestDuration tracks single attempt latency.
	RequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "polymarket_lens_fetch_request_duration_seconds",
			Help:    "Upstream request attempt duration",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RetriesTotal counts retries by error class.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_lens_fetch_retries_total",
			Help: "Total number of retries by error class",
		},
		[]string{"error_class"},
	)

	// BackoffSeconds tracks the wait before each retry.
	BackoffSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polymarket_lens_fetch_backoff_seconds",
			Help:    "Backoff duration before a retry by error class",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30},
		},
		[]string{"error_class"},
	)

	// ExhaustedTotal counts requests that ran out of attempts.
	ExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_lens_fetch_retry_exhausted_total",
			Help: "Total number of requests that exhausted their attempts by error class",
		},
		[]string{"error_class"},
	)
)
