package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"execledger/internal/events"
	"execledger/internal/policy/metrics"
	"execledger/internal/policy/models"
	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
	"execledger/pkg/platform/sentinel"
	"execledger/pkg/requestcontext"
)

// Store persists policies. Append must assign p.ID as the number of policies
// stored before it, atomically with the write.
type Store interface {
	Append(ctx context.Context, p *models.Policy) error
	FindByID(ctx context.Context, policyID id.PolicyID) (*models.Policy, error)
	Count(ctx context.Context) (uint64, error)
	List(ctx context.Context, offset, limit uint64) ([]*models.Policy, error)
}

// Authorizer decides whether a caller may create policies.
type Authorizer interface {
	Authorize(ctx context.Context, caller id.Principal) error
}

// MaxListLimit caps a single List page.
const MaxListLimit = 100

// Service is the policy registry. Creations are serialized so that id
// assignment, persistence and the PolicyCreated event happen as one step.
type Service struct {
	store   Store
	gate    Authorizer
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	writeMu sync.Mutex
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

func New(store Store, gate Authorizer, emitter events.Emitter, opts ...Option) *Service {
	s := &Service{
		store:   store,
		gate:    gate,
		emitter: emitter,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("execledger/policy")
	}
	return s
}

// Create registers a policy committed to merkleRoot on behalf of caller.
// Only the oracle may create policies; any other caller gets an unauthorized
// error and the registry is left untouched.
func (s *Service) Create(ctx context.Context, caller id.Principal, merkleRoot id.MerkleRoot) (*models.Policy, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "policy.create")
	defer span.End()

	if err := s.gate.Authorize(ctx, caller); err != nil {
		s.metrics.IncRejected("unauthorized")
		s.logger.WarnContext(ctx, "policy creation rejected",
			"caller", caller.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		span.SetStatus(codes.Error, "unauthorized")
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	policy := &models.Policy{
		MerkleRoot: merkleRoot,
		Initiator:  caller,
		Timestamp:  requestcontext.Now(ctx).UTC().Truncate(time.Second),
	}
	if err := s.store.Append(ctx, policy); err != nil {
		s.metrics.IncRejected("store_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "store append failed")
		s.logger.ErrorContext(ctx, "failed to persist policy",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create policy")
	}

	event := s.emitter.Notify(ctx, events.PolicyCreated{
		PolicyID:   policy.ID,
		MerkleRoot: policy.MerkleRoot,
		Initiator:  policy.Initiator,
		Timestamp:  policy.Timestamp,
	})

	s.metrics.IncCreated(uint64(policy.ID) + 1)
	s.metrics.ObserveCreate(start)
	span.SetAttributes(
		attribute.Int64("policy.id", int64(policy.ID)),
		attribute.Int64("event.sequence", int64(event.Sequence)),
	)
	s.logger.InfoContext(ctx, "policy created",
		"policy_id", policy.ID.String(),
		"merkle_root", policy.MerkleRoot.String(),
		"initiator", policy.Initiator.String(),
		"sequence", event.Sequence,
	)
	return policy, nil
}

// Get returns the policy with policyID, or a not found error.
func (s *Service) Get(ctx context.Context, policyID id.PolicyID) (*models.Policy, error) {
	policy, err := s.store.FindByID(ctx, policyID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "policy not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	return policy, nil
}

// Count returns the number of policies ever created.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count policies")
	}
	return n, nil
}

// List returns a page of policies in id order together with the total count.
func (s *Service) List(ctx context.Context, offset, limit uint64) ([]*models.Policy, uint64, error) {
	if limit == 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	total, err := s.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	policies, err := s.store.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return policies, total, nil
}
