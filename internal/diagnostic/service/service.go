package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"execledger/internal/diagnostic/metrics"
	"execledger/internal/diagnostic/models"
	"execledger/internal/events"
	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
	"execledger/pkg/platform/sentinel"
	"execledger/pkg/requestcontext"
)

// Store persists diagnostic entries. Append must set e.LogIndex to the number
// of entries already stored for e.PolicyID, atomically with the write.
type Store interface {
	Append(ctx context.Context, e *models.Entry) error
	Find(ctx context.Context, policyID id.PolicyID, index id.LogIndex) (*models.Entry, error)
	Count(ctx context.Context, policyID id.PolicyID) (uint64, error)
}

// Service is the per-policy diagnostic log. Anyone may append, to any policy
// id, including ids the registry never issued.
type Service struct {
	store   Store
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	locks shardedLock
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

func New(store Store, emitter events.Emitter, opts ...Option) *Service {
	s := &Service{store: store, emitter: emitter}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("execledger/diagnostic")
	}
	return s
}

// Append records message against policyID and returns its index.
func (s *Service) Append(ctx context.Context, policyID id.PolicyID, message string) (id.LogIndex, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "diagnostic.append",
		trace.WithAttributes(attribute.Int64("policy.id", int64(policyID))))
	defer span.End()

	entry := &models.Entry{
		PolicyID:  policyID,
		Message:   message,
		CreatedAt: requestcontext.Now(ctx).UTC().Truncate(time.Second),
	}

	err := s.locks.run(ctx, policyID, func() error {
		if err := s.store.Append(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append diagnostic log")
		}
		s.emitter.Notify(ctx, events.DiagnosticLogged{
			PolicyID: entry.PolicyID,
			LogIndex: entry.LogIndex,
			Message:  entry.Message,
		})
		return nil
	})
	if err != nil {
		s.metrics.IncFailed()
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		s.logger.ErrorContext(ctx, "failed to append diagnostic log",
			"policy_id", policyID.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		return 0, err
	}

	s.metrics.IncAppended()
	s.metrics.ObserveAppend(start)
	span.SetAttributes(attribute.Int64("log.index", int64(entry.LogIndex)))
	s.logger.InfoContext(ctx, "diagnostic log appended",
		"policy_id", policyID.String(),
		"log_index", entry.LogIndex.String(),
		"caller", requestcontext.Caller(ctx).String(),
	)
	return entry.LogIndex, nil
}

// Get returns the message at index for policyID, or a not found error.
func (s *Service) Get(ctx context.Context, policyID id.PolicyID, index id.LogIndex) (*models.Entry, error) {
	entry, err := s.store.Find(ctx, policyID, index)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "diagnostic log not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load diagnostic log")
	}
	return entry, nil
}

// Count returns how many entries policyID has.
func (s *Service) Count(ctx context.Context, policyID id.PolicyID) (uint64, error) {
	n, err := s.store.Count(ctx, policyID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count diagnostic logs")
	}
	return n, nil
}
