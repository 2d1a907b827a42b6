package ratelimit

import (
	"context"
	"sync"
	"time"
)

const pollInterval = 100 * time.Millisecond

// Limiter caps the number of concurrent calls and enforces a minimum spacing
// between call starts. It is shared process-wide by everything that talks to
// the text generation API.
type Limiter struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	minInterval time.Duration
	last        time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Limiter allowing maxInFlight concurrent calls with at least
// minInterval between call starts.
func New(maxInFlight int, minInterval time.Duration) *Limiter {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Limiter{
		maxInFlight: maxInFlight,
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Acquire blocks until a slot is free and the spacing window since the
// previous call start has elapsed, then claims a slot. The capacity check and
// the slot claim happen under one lock, so two callers can never take the
// same free slot.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.inFlight < l.maxInFlight {
			wait := l.minInterval - l.now().Sub(l.last)
			if l.last.IsZero() || wait <= 0 {
				l.inFlight++
				l.last = l.now()
				l.mu.Unlock()
				return nil
			}
			l.mu.Unlock()
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		l.mu.Unlock()
		if err := l.sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// Release frees a slot claimed by Acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	if l.inFlight > 0 {
		l.inFlight--
	}
	l.mu.Unlock()
}

// InFlight reports how many slots are currently held.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight
}
