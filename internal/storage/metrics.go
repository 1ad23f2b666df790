package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ArchiveWritesTotal counts archive writes by backend and outcome.
	ArchiveWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_archive_writes_total",
		Help: "Total number of history archive writes by backend and outcome",
	}, []string{"backend", "outcome"})

	// ArchiveReadsTotal counts archive reads by backend and result.
	ArchiveReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polymarket_lens_archive_reads_total",
		Help: "Total number of history archive reads by backend and result",
	}, []string{"backend", "result"})
)
