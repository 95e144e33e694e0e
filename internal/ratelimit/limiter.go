// Package ratelimit provides the sliding-window rate gates shared by every
// concurrent request: one limiter per tier (request, automation, plugin, cloud).
package ratelimit

import (
	"sync"
	"time"
)

// SlidingWindowLimiter counts events in a trailing time window. The check and
// the event insert are a single atomic operation, so concurrent callers can
// never both consume the last slot. Expired events are purged lazily on every
// call. State is in-memory only and resets on restart.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events []time.Time
	now    func() time.Time
}

// New creates a limiter allowing limit events per trailing window.
func New(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// NewWithClock creates a limiter with an injectable clock for tests.
func NewWithClock(limit int, window time.Duration, now func() time.Time) *SlidingWindowLimiter {
	l := New(limit, window)
	l.now = now
	return l
}

// Allow reports whether a new event fits in the current window, and records
// it if so. Returns false without recording when the budget is exhausted.
func (l *SlidingWindowLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.purge(now)
	if len(l.events) >= l.limit {
		return false
	}
	l.events = append(l.events, now)
	return true
}

// Remaining reports the unused budget in the current window without
// consuming any of it.
func (l *SlidingWindowLimiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.purge(l.now())
	if r := l.limit - len(l.events); r > 0 {
		return r
	}
	return 0
}

// purge drops events older than the window. Caller must hold mu.
func (l *SlidingWindowLimiter) purge(now time.Time) {
	cut := 0
	for cut < len(l.events) && now.Sub(l.events[cut]) > l.window {
		cut++
	}
	if cut > 0 {
		l.events = append(l.events[:0], l.events[cut:]...)
	}
}
