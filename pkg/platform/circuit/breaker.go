// Package circuit provides a consecutive-failure circuit breaker for sinks
// that talk to remote brokers.
package circuit

import (
	"sync"
	"time"
)

// Breaker opens after threshold consecutive failures and stays open for
// cooldown. After the cooldown it lets traffic through again (half-open) and
// closes on the first success.
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	openUntil time.Time
	isOpen    bool
}

// New creates a breaker. Non-positive arguments fall back to 5 failures and
// one minute.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isOpen {
		return true
	}
	if b.now().After(b.openUntil) {
		b.isOpen = false
		b.failures = 0
		return true
	}
	return false
}

// RecordSuccess closes the circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.isOpen = false
}

// RecordFailure counts a failure and opens the circuit at the threshold.
// It returns true when this failure opened the circuit.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if !b.isOpen && b.failures >= b.threshold {
		b.isOpen = true
		b.openUntil = b.now().Add(b.cooldown)
		return true
	}
	return false
}

// IsOpen reports whether the circuit is currently open.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isOpen
}
