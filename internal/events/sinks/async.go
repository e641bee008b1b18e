package sinks

import (
	"context"
	"log/slog"
	"time"

	"execledger/internal/events"
	"execledger/internal/events/metrics"
	"execledger/pkg/platform/circuit"
)

const (
	defaultQueueSize    = 1024
	defaultDrainTimeout = 5 * time.Second
)

// Publisher delivers one event to an external system.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event events.Event) error
}

// Async is a listener that queues events for a Publisher and delivers them
// from Run. When the queue is full or the circuit is open the event is
// dropped and counted; the ledger write is never affected.
type Async struct {
	publisher    Publisher
	queue        chan events.Event
	breaker      *circuit.Breaker
	logger       *slog.Logger
	metrics      *metrics.Metrics
	drainTimeout time.Duration
}

type AsyncOption func(*Async)

func WithQueueSize(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.queue = make(chan events.Event, n)
		}
	}
}

func WithBreaker(b *circuit.Breaker) AsyncOption {
	return func(a *Async) {
		a.breaker = b
	}
}

func WithLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) AsyncOption {
	return func(a *Async) {
		a.metrics = m
	}
}

func WithDrainTimeout(d time.Duration) AsyncOption {
	return func(a *Async) {
		if d > 0 {
			a.drainTimeout = d
		}
	}
}

// NewAsync wraps publisher in a bounded queue.
func NewAsync(publisher Publisher, opts ...AsyncOption) *Async {
	a := &Async{
		publisher:    publisher,
		queue:        make(chan events.Event, defaultQueueSize),
		breaker:      circuit.New(5, 30*time.Second),
		logger:       slog.Default(),
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// OnEvent implements events.Listener. It never blocks.
func (a *Async) OnEvent(ctx context.Context, event events.Event) {
	if !a.breaker.Allow() {
		a.metrics.IncDropped(a.publisher.Name(), "circuit_open")
		return
	}
	select {
	case a.queue <- event:
		a.metrics.SetQueueDepth(a.publisher.Name(), len(a.queue))
	default:
		a.metrics.IncDropped(a.publisher.Name(), "queue_full")
		a.logger.WarnContext(ctx, "event sink queue full, dropping event",
			"sink", a.publisher.Name(),
			"sequence", event.Sequence,
		)
	}
}

// Run publishes queued events until ctx is cancelled, then drains what is
// left within the drain timeout.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain(ctx)
			return ctx.Err()
		case event := <-a.queue:
			a.publish(ctx, event)
		}
	}
}

// Pending returns the number of queued events.
func (a *Async) Pending() int {
	return len(a.queue)
}

// drain keeps the values of parent but not its cancellation.
func (a *Async) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.drainTimeout)
	defer cancel()
	for {
		select {
		case event := <-a.queue:
			a.publish(ctx, event)
		default:
			return
		}
		if ctx.Err() != nil {
			a.logger.WarnContext(ctx, "event sink drain timed out",
				"sink", a.publisher.Name(),
				"remaining", len(a.queue),
			)
			return
		}
	}
}

func (a *Async) publish(ctx context.Context, event events.Event) {
	name := a.publisher.Name()
	defer a.metrics.SetQueueDepth(name, len(a.queue))

	if !a.breaker.Allow() {
		a.metrics.IncDropped(name, "circuit_open")
		return
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		a.metrics.IncFailure(name)
		opened := a.breaker.RecordFailure()
		a.logger.ErrorContext(ctx, "failed to publish event",
			"sink", name,
			"sequence", event.Sequence,
			"event_type", string(event.Type),
			"circuit_opened", opened,
			"error", err,
		)
		return
	}
	a.breaker.RecordSuccess()
	a.metrics.IncPublished(name)
}
