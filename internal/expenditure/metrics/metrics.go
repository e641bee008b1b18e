package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for expenditure notices.
type Metrics struct {
	Recorded prometheus.Counter
}

// New creates the expenditure metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Recorded: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "execledger_expenditures_recorded_total",
			Help: "Total expenditure notices broadcast",
		}),
	}
}

func (m *Metrics) IncRecorded() {
	if m == nil {
		return
	}
	m.Recorded.Inc()
}
