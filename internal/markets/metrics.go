package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryDurationSeconds tracks engine operation latency.
	QueryDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polymarket_lens_engine_query_duration_seconds",
		Help:    "Duration of engine operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "cache_status"})

	// QueryErrorsTotal tracks engine operations that returned an error.
	QueryErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_engine_query_errors_total",
		Help: "Total number of failed engine operations",
	}, []string{"op"})

	// PagesScannedTotal tracks upstream listing pages fetched.
	PagesScannedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_engine_pages_scanned_total",
		Help: "Total number of upstream listing pages fetched",
	}, []string{"mode"})

	// EnrichmentsTotal tracks per-market enrichment outcomes.
	EnrichmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_engine_enrichments_total",
		Help: "Total number of per-market price enrichments by outcome",
	}, []string{"outcome"})

	// HistorySourceTotal tracks which step of the history chain answered.
	HistorySourceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_engine_history_source_total",
		Help: "Total number of history loads by answering source",
	}, []string{"source"})

	// SyntheticHistoryTotal tracks synthesized history series.
	SyntheticHistoryTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_engine_synthetic_history_total",
		Help: "Total number of synthetic history series generated",
	})

	// TagFetchErrorsTotal tracks swallowed category fetch failures.
	TagFetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polymarket_lens_engine_tag_fetch_errors_total",
		Help: "Total number of swallowed category fetch failures",
	})
)
