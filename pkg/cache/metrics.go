package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settings_cache_hits_total",
		Help: "Reads answered from a fresh snapshot.",
	}, []string{"cache"})

	missesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settings_cache_misses_total",
		Help: "Reads that fetched synchronously.",
	}, []string{"cache"})

	refreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settings_cache_refresh_failures_total",
		Help: "Background refreshes that failed.",
	}, []string{"cache"})
)
