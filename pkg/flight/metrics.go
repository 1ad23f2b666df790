package flight

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ExecutionsTotal counts computations actually started.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_flight_executions_total",
		Help: "Total number of single-flight executions started",
	}, []string{"group"})

	// SharedTotal counts results delivered to more than one caller.
	SharedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_flight_shared_total",
		Help: "Total number of single-flight results shared between callers",
	}, []string{"group"})

	// InFlight tracks executions currently running.
	InFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polymarket_lens_flight_in_flight",
		Help: "Number of single-flight executions currently running",
	}, []string{"group"})
)
