package ratelimit_test

import (
	"sync"
	"testing"
	"time"

	"github.com/hearthware/concierge/internal/ratelimit"
)

// fakeClock is a manually advanced clock for window tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAllowExhaustsBudget(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := ratelimit.NewWithClock(3, 10*time.Second, clock.Now)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("Allow() call %d = false, want true", i+1)
		}
	}
	if l.Allow() {
		t.Fatal("Allow() after budget exhausted = true, want false")
	}
}

func TestAllowRecoversAfterWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := ratelimit.NewWithClock(2, 10*time.Second, clock.Now)

	l.Allow()
	l.Allow()
	if l.Allow() {
		t.Fatal("Allow() with full window = true, want false")
	}

	clock.Advance(11 * time.Second)
	if !l.Allow() {
		t.Fatal("Allow() after window elapsed = false, want true")
	}
}

func TestRemainingDoesNotConsume(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := ratelimit.NewWithClock(5, time.Minute, clock.Now)

	if got := l.Remaining(); got != 5 {
		t.Fatalf("Remaining() = %d, want 5", got)
	}
	if got := l.Remaining(); got != 5 {
		t.Fatalf("Remaining() second call = %d, want 5 (must not consume)", got)
	}

	l.Allow()
	l.Allow()
	if got := l.Remaining(); got != 3 {
		t.Fatalf("Remaining() after 2 events = %d, want 3", got)
	}
}

// The check and the insert must be one atomic operation: under concurrent
// load exactly limit calls may succeed.
func TestAllowConcurrent(t *testing.T) {
	l := ratelimit.New(50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Fatalf("allowed = %d concurrent calls, want exactly 50", allowed)
	}
}
