package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the change notifier and its sinks.
type Metrics struct {
	EventsEmitted  *prometheus.CounterVec
	SinkPublished  *prometheus.CounterVec
	SinkFailures   *prometheus.CounterVec
	SinkDropped    *prometheus.CounterVec
	SinkQueueDepth *prometheus.GaugeVec
	FeedClients    prometheus.Gauge
}

// New creates the event metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "execledger_events_emitted_total",
			Help: "Total change events emitted by type",
		}, []string{"type"}),

		SinkPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "execledger_event_sink_published_total",
			Help: "Events successfully handed to an external sink",
		}, []string{"sink"}),

		SinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "execledger_event_sink_failures_total",
			Help: "Failed attempts to publish an event to an external sink",
		}, []string{"sink"}),

		SinkDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "execledger_event_sink_dropped_total",
			Help: "Events dropped by a sink because its queue was full or its circuit open",
		}, []string{"sink", "reason"}),

		SinkQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "execledger_event_sink_queue_depth",
			Help: "Events waiting in a sink queue",
		}, []string{"sink"}),

		FeedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "execledger_event_feed_clients",
			Help: "Connected websocket event feed clients",
		}),
	}
}

func (m *Metrics) IncEmitted(eventType string) {
	if m != nil {
		m.EventsEmitted.WithLabelValues(eventType).Inc()
	}
}

func (m *Metrics) IncPublished(sink string) {
	if m != nil {
		m.SinkPublished.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncFailure(sink string) {
	if m != nil {
		m.SinkFailures.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncDropped(sink, reason string) {
	if m != nil {
		m.SinkDropped.WithLabelValues(sink, reason).Inc()
	}
}

func (m *Metrics) SetQueueDepth(sink string, depth int) {
	if m != nil {
		m.SinkQueueDepth.WithLabelValues(sink).Set(float64(depth))
	}
}

func (m *Metrics) SetFeedClients(n int) {
	if m != nil {
		m.FeedClients.Set(float64(n))
	}
}
