package events

import (
	"context"
	"sync"
)

// Recorder is a listener that keeps the most recent events in a bounded ring.
// When full, the oldest events are dropped to make room for new ones.
type Recorder struct {
	mu       sync.RWMutex
	events   []Event
	head     int // next write position
	count    int
	capacity int

	dropped int64
}

// NewRecorder creates a recorder with the given capacity.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Recorder{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// OnEvent implements Listener.
func (r *Recorder) OnEvent(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.count == r.capacity {
		r.dropped++
	} else {
		r.count++
	}
	r.events[r.head] = event
	r.head = (r.head + 1) % r.capacity
}

// All returns the retained events, oldest first.
func (r *Recorder) All() []Event {
	return r.Since(0)
}

// Since returns retained events with a sequence greater than after, oldest first.
func (r *Recorder) Since(after uint64) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Event, 0, r.count)
	start := (r.head - r.count + r.capacity) % r.capacity
	for i := 0; i < r.count; i++ {
		e := r.events[(start+i)%r.capacity]
		if e.Sequence > after {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of retained events.
func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Dropped returns how many events were evicted.
func (r *Recorder) Dropped() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dropped
}
