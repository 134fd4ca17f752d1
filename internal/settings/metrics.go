package settings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	changesTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "settings_changes_total",
		Help: "Number of committed setting changes, differentiated by action.",
	}, []string{"action"})

	batchSize = promauto.NewHistogram(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "settings_batch_entries",
		Help:    "Number of entries per batch update.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8), //nolint:mnd
	})

	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "settings_rejected_writes_total",
		Help: "Number of rejected writes, differentiated by error kind.",
	}, []string{"kind"})
)
