package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the policy registry.
type Metrics struct {
	PoliciesCreated prometheus.Counter
	CreateRejected  *prometheus.CounterVec
	CreateDuration  prometheus.Histogram
	PoliciesTotal   prometheus.Gauge
}

// New creates the policy metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PoliciesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "execledger_policies_created_total",
			Help: "Total number of policies created",
		}),
		CreateRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "execledger_policy_create_rejected_total",
			Help: "Policy creations that did not change state, by reason",
		}, []string{"reason"}),
		CreateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "execledger_policy_create_duration_seconds",
			Help:    "Time spent creating a policy, including event dispatch",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		PoliciesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "execledger_policies",
			Help: "Number of policies in the registry",
		}),
	}
}

func (m *Metrics) IncCreated(total uint64) {
	if m == nil {
		return
	}
	m.PoliciesCreated.Inc()
	m.PoliciesTotal.Set(float64(total))
}

func (m *Metrics) IncRejected(reason string) {
	if m == nil {
		return
	}
	m.CreateRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveCreate(start time.Time) {
	if m == nil {
		return
	}
	m.CreateDuration.Observe(time.Since(start).Seconds())
}
