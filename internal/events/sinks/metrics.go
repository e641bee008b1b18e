package sinks

import (
	"context"

	"execledger/internal/events"
	"execledger/internal/events/metrics"
)

// MetricsSink counts emitted events by type.
type MetricsSink struct {
	metrics *metrics.Metrics
}

func NewMetricsSink(m *metrics.Metrics) *MetricsSink {
	return &MetricsSink{metrics: m}
}

func (s *MetricsSink) OnEvent(_ context.Context, event events.Event) {
	s.metrics.IncEmitted(string(event.Type))
}
