package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Allowed prometheus.Counter
	Denied  prometheus.Counter
	Errors  prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Allowed: f.NewCounter(prometheus.CounterOpts{
			Name: "execledger_ratelimit_allowed_total",
			Help: "Total number of write requests admitted by the rate limiter",
		}),
		Denied: f.NewCounter(prometheus.CounterOpts{
			Name: "execledger_ratelimit_denied_total",
			Help: "Total number of write requests rejected with 429",
		}),
		Errors: f.NewCounter(prometheus.CounterOpts{
			Name: "execledger_ratelimit_errors_total",
			Help: "Total number of limiter lookups that failed and were let through",
		}),
	}
}

func (m *Metrics) IncAllowed() {
	if m != nil {
		m.Allowed.Inc()
	}
}

func (m *Metrics) IncDenied() {
	if m != nil {
		m.Denied.Inc()
	}
}

func (m *Metrics) IncErrors() {
	if m != nil {
		m.Errors.Inc()
	}
}
