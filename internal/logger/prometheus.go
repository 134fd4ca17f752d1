package logger

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// mainComponent labels statements of the global logger.
const mainComponent = "main"

var (
	statements    *prometheus.CounterVec //nolint:gochecknoglobals
	writeFailures prometheus.Counter     //nolint:gochecknoglobals
	metricsOnce   sync.Once              //nolint:gochecknoglobals
)

// StatementHook counts log statements per level and component.
type StatementHook struct {
	component string
}

// Run implements zerolog.Hook.
func (h StatementHook) Run(_ *zerolog.Event, level zerolog.Level, _ string) {
	if level == zerolog.NoLevel || statements == nil {
		return
	}

	statements.WithLabelValues(level.String(), h.component).Inc()
}

// registerMetrics registers the logger metrics once per process. The service
// label is fixed by the first call.
func registerMetrics(service string) {
	metricsOnce.Do(func() {
		statements = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "log_statements_total",
				Help:        "Number of log statements by level and component.",
				ConstLabels: prometheus.Labels{"service": service},
			},
			[]string{"level", "component"},
		)

		writeFailures = promauto.NewCounter(prometheus.CounterOpts{
			Name:        "log_write_failures_total",
			Help:        "Number of log events that could not be written.",
			ConstLabels: prometheus.Labels{"service": service},
		})
	})
}
