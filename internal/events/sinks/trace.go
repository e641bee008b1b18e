package sinks

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"execledger/internal/events"
)

const instrumentationName = "execledger/internal/events"

// TraceSink records each event as a producer span so the stream shows up next
// to the request traces that caused it.
type TraceSink struct {
	tracer trace.Tracer
}

// NewTraceSink creates a sink using tp. A nil tp yields a noop tracer.
func NewTraceSink(tp trace.TracerProvider) *TraceSink {
	if tp == nil {
		tp = noop.NewTracerProvider()
	}
	return &TraceSink{tracer: tp.Tracer(instrumentationName)}
}

func (s *TraceSink) OnEvent(ctx context.Context, event events.Event) {
	_, span := s.tracer.Start(ctx, "ledger.event."+string(event.Type),
		trace.WithTimestamp(event.OccurredAt),
		trace.WithSpanKind(trace.SpanKindProducer),
	)
	span.SetAttributes(
		attribute.String("ledger.event.id", event.ID.String()),
		attribute.String("ledger.event.type", string(event.Type)),
		attribute.Int64("ledger.event.sequence", int64(event.Sequence)),
		attribute.String("ledger.policy_id", event.Payload.Policy().String()),
	)
	span.End()
}
