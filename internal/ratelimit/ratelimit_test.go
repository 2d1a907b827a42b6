package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock drives the limiter deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept []time.Duration
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

func newTestLimiter(maxInFlight int, minInterval time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l := New(maxInFlight, minInterval)
	l.now = clock.now
	l.sleep = clock.sleep
	return l, clock
}

func TestAcquireImmediate(t *testing.T) {
	l, clock := newTestLimiter(2, time.Second)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(clock.slept) != 0 {
		t.Errorf("first acquire should not sleep, slept %v", clock.slept)
	}
	if l.InFlight() != 1 {
		t.Errorf("expected 1 in flight, got %d", l.InFlight())
	}
}

func TestAcquireEnforcesSpacing(t *testing.T) {
	l, clock := newTestLimiter(2, time.Second)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The second acquire had a free slot but started too soon, so it must
	// have waited out the full spacing window.
	if len(clock.slept) == 0 {
		t.Fatal("second acquire should have slept for the spacing window")
	}
	var total time.Duration
	for _, d := range clock.slept {
		total += d
	}
	if total < time.Second {
		t.Errorf("expected at least 1s of spacing sleep, got %v", total)
	}
	if l.InFlight() != 2 {
		t.Errorf("expected 2 in flight, got %d", l.InFlight())
	}
}

func TestAcquireWaitsForFreeSlot(t *testing.T) {
	l := New(1, 0)

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- l.Acquire(context.Background()) }()

	// Give the second acquire time to start polling, then free the slot.
	time.Sleep(20 * time.Millisecond)
	l.Release()

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.InFlight() != 1 {
		t.Errorf("expected 1 in flight after handoff, got %d", l.InFlight())
	}
}

func TestConcurrencyCap(t *testing.T) {
	l := New(2, 0)

	var inFlight, maxSeen atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Acquire(context.Background()); err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			n := inFlight.Add(1)
			for {
				seen := maxSeen.Load()
				if n <= seen || maxSeen.CompareAndSwap(seen, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			l.Release()
		}()
	}
	wg.Wait()

	if got := maxSeen.Load(); got > 2 {
		t.Errorf("concurrency cap exceeded: saw %d simultaneous holders", got)
	}
	if l.InFlight() != 0 {
		t.Errorf("expected 0 in flight after release, got %d", l.InFlight())
	}
}

func TestAcquireCanceled(t *testing.T) {
	l := New(1, 0)
	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Slot is taken and never released; a canceled context must unblock.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Acquire(ctx); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	l := New(2, 0)
	l.Release()
	if l.InFlight() != 0 {
		t.Errorf("expected 0 in flight, got %d", l.InFlight())
	}
}
