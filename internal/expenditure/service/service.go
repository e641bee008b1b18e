// Package service broadcasts expenditure notices. Notices are not stored;
// the emitted event is the only record, so observers that need history must
// persist the event stream themselves.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"execledger/internal/events"
	"execledger/internal/expenditure/metrics"
	id "execledger/pkg/domain"
	"execledger/pkg/requestcontext"
)

// Notice is an expenditure report against a policy id.
type Notice struct {
	PolicyID    id.PolicyID
	Recipient   id.Principal
	Amount      id.Amount
	Description string
}

type Service struct {
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(emitter events.Emitter, opts ...Option) *Service {
	s := &Service{emitter: emitter}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("execledger/expenditure")
	}
	return s
}

// Record emits exactly one ExpenditureRecorded event carrying notice as
// given. Nothing about the notice is checked and the call cannot fail.
func (s *Service) Record(ctx context.Context, caller id.Principal, notice Notice) events.Event {
	ctx, span := s.tracer.Start(ctx, "expenditure.record",
		trace.WithAttributes(attribute.Int64("policy.id", int64(notice.PolicyID))))
	defer span.End()

	event := s.emitter.Notify(ctx, events.ExpenditureRecorded{
		PolicyID:    notice.PolicyID,
		Recipient:   notice.Recipient,
		Amount:      notice.Amount,
		Description: notice.Description,
		RecordedBy:  caller,
	})

	s.metrics.IncRecorded()
	span.SetAttributes(attribute.Int64("event.sequence", int64(event.Sequence)))
	s.logger.InfoContext(ctx, "expenditure recorded",
		"policy_id", notice.PolicyID.String(),
		"recipient", notice.Recipient.String(),
		"amount", notice.Amount.String(),
		"caller", caller.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return event
}
