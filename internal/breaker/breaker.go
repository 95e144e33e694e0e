// Package breaker implements the cloud circuit breaker: after a threshold of
// consecutive provider failures it opens a cooldown window during which all
// cloud routing is forced local. There is no timer goroutine: the first
// AllowRequest call after the cooldown elapses performs the Open→Closed
// transition, so every consumer participates in the reset.
package breaker

import (
	"sync"
	"time"

	"github.com/hearthware/concierge/pkg/models"
)

// CircuitBreaker tracks consecutive cloud-call failures. Safe for concurrent
// use by every in-flight request.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	cooldown         time.Duration
	failureCount     int
	openedUntil      time.Time
	now              func() time.Time
}

// New creates a breaker that opens after failureThreshold consecutive
// failures and stays open for cooldown.
func New(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		now:              time.Now,
	}
}

// NewWithClock creates a breaker with an injectable clock for tests.
func NewWithClock(failureThreshold int, cooldown time.Duration, now func() time.Time) *CircuitBreaker {
	b := New(failureThreshold, cooldown)
	b.now = now
	return b
}

// AllowRequest reports whether cloud requests may proceed. If the cooldown
// has elapsed it clears the open state and resets the failure count before
// returning true.
func (b *CircuitBreaker) AllowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowLocked()
}

func (b *CircuitBreaker) allowLocked() bool {
	if b.openedUntil.IsZero() {
		return true
	}
	if !b.now().Before(b.openedUntil) {
		b.openedUntil = time.Time{}
		b.failureCount = 0
		return true
	}
	return false
}

// RecordSuccess resets the failure count and forces the breaker closed.
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount = 0
	b.openedUntil = time.Time{}
}

// RecordFailure increments the failure count and opens the breaker once the
// threshold is reached.
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failureCount++
	if b.failureCount >= b.failureThreshold {
		b.openedUntil = b.now().Add(b.cooldown)
	}
}

// State returns a snapshot of the breaker. The read goes through the same
// auto-resetting path as AllowRequest, so a snapshot taken after the
// cooldown elapses already reflects the closed state.
func (b *CircuitBreaker) State() models.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	open := !b.allowLocked()
	st := models.CircuitState{
		IsOpen:       open,
		FailureCount: b.failureCount,
	}
	if !b.openedUntil.IsZero() {
		until := b.openedUntil
		st.OpenedUntil = &until
	}
	return st
}
