package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"execledger/pkg/requestcontext"
)

// Listener receives events synchronously, in emission order. OnEvent runs on
// the writer's goroutine before the write returns, so implementations that do
// I/O must hand the event off and return promptly. A listener must not call
// back into the Notifier that invoked it.
type Listener interface {
	OnEvent(ctx context.Context, event Event)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, event Event)

func (f ListenerFunc) OnEvent(ctx context.Context, event Event) { f(ctx, event) }

// Emitter is what the ledger services depend on.
type Emitter interface {
	Notify(ctx context.Context, payload Payload) Event
}

type subscription struct {
	id       uint64
	listener Listener
}

// Notifier fans events out to subscribed listeners. Dispatch is serialized so
// every listener sees every event in one global order, and sequence numbers
// are dense from 1.
type Notifier struct {
	dispatchMu sync.Mutex
	sequence   uint64

	subsMu sync.RWMutex
	subs   []subscription
	nextID uint64

	logger *slog.Logger
}

type Option func(*Notifier)

// WithLogger sets a logger for listener failures.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// NewNotifier creates a notifier with no listeners.
func NewNotifier(opts ...Option) *Notifier {
	n := &Notifier{logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Subscribe registers l and returns a function that removes it again.
func (n *Notifier) Subscribe(l Listener) (unsubscribe func()) {
	n.subsMu.Lock()
	n.nextID++
	subID := n.nextID
	n.subs = append(n.subs, subscription{id: subID, listener: l})
	n.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.subsMu.Lock()
			defer n.subsMu.Unlock()
			for i, s := range n.subs {
				if s.id == subID {
					n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Notify assigns the next sequence number to payload and delivers it to every
// listener before returning. Callers invoke it only after their state change
// is committed.
func (n *Notifier) Notify(ctx context.Context, payload Payload) Event {
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()

	n.sequence++
	event := Event{
		ID:         uuid.New(),
		Sequence:   n.sequence,
		Type:       payload.EventType(),
		OccurredAt: requestcontext.Now(ctx).UTC(),
		Payload:    payload,
	}

	n.subsMu.RLock()
	subs := make([]subscription, len(n.subs))
	copy(subs, n.subs)
	n.subsMu.RUnlock()

	for _, s := range subs {
		n.deliver(ctx, s.listener, event)
	}
	return event
}

// Sequence returns the sequence number of the last emitted event.
func (n *Notifier) Sequence() uint64 {
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()
	return n.sequence
}

func (n *Notifier) deliver(ctx context.Context, l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.ErrorContext(ctx, "event listener panicked",
				"event_type", event.Type,
				"sequence", event.Sequence,
				"panic", r,
			)
		}
	}()
	l.OnEvent(ctx, event)
}
