package limiter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	ActiveGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polymarket_lens_limiter_active",
		Help: "Number of tasks currently holding a limiter permit",
	}, []string{"limiter"})

	QueuedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polymarket_lens_limiter_queued",
		Help: "Number of tasks waiting for a limiter permit",
	}, []string{"limiter"})

	AdmittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_limiter_admitted_total",
		Help: "Total number of tasks admitted by the limiter",
	}, []string{"limiter"})

	RejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_limiter_rejected_total",
		Help: "Total number of tasks abandoned before admission",
	}, []string{"limiter"})
)
