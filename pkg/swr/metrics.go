package swr

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolvesTotal counts resolves by orchestrator and cache status.
	ResolvesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_lens_swr_resolves_total",
			Help: "Total SWR resolves by status",
		},
		[]string{"name", "status"},
	)

	// RefreshesTotal counts background refreshes by outcome.
	RefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_lens_swr_background_refreshes_total",
			Help: "Total background refreshes by outcome",
		},
		[]string{"name", "outcome"},
	)

	// TasksTotal counts supervised tasks by outcome.
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polymarket_lens_supervisor_tasks_total",
			Help: "Total supervised background tasks by outcome",
		},
		[]string{"task", "outcome"},
	)

	// TasksActive tracks running supervised tasks.
	TasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polymarket_lens_supervisor_tasks_active",
			Help: "Number of running supervised background tasks",
		},
	)
)
