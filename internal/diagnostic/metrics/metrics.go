package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the diagnostic log.
type Metrics struct {
	Appended       prometheus.Counter
	AppendFailed   prometheus.Counter
	AppendDuration prometheus.Histogram
}

// New creates the diagnostic log metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Appended: factory.NewCounter(prometheus.CounterOpts{
			Name: "execledger_diagnostic_logs_appended_total",
			Help: "Total diagnostic log entries appended",
		}),
		AppendFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "execledger_diagnostic_log_append_failures_total",
			Help: "Diagnostic log appends that failed without changing state",
		}),
		AppendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "execledger_diagnostic_log_append_duration_seconds",
			Help:    "Time spent appending a diagnostic log entry, including event dispatch",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
	}
}

func (m *Metrics) IncAppended() {
	if m == nil {
		return
	}
	m.Appended.Inc()
}

func (m *Metrics) IncFailed() {
	if m == nil {
		return
	}
	m.AppendFailed.Inc()
}

func (m *Metrics) ObserveAppend(start time.Time) {
	if m == nil {
		return
	}
	m.AppendDuration.Observe(time.Since(start).Seconds())
}
