// Package ratelimit bounds outbound calls to the market data provider.
// All network-reaching components share one Limiter so that parallel
// fetches never exceed the provider's call budget.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter admits at most maxCalls within any sliding window of the
// configured duration. Admission timestamps are kept in a bounded queue;
// Acquire blocks until the oldest recorded call falls out of the window.
type Limiter struct {
	mu       sync.Mutex
	maxCalls int
	window   time.Duration
	stamps   []time.Time // admission times, oldest first, len <= maxCalls
}

// New creates a Limiter. A zero or negative budget is a configuration
// error: the limiter must never silently permit unlimited calls.
func New(maxCalls int, window time.Duration) (*Limiter, error) {
	if maxCalls <= 0 {
		return nil, fmt.Errorf("ratelimit: max calls must be positive, got %d", maxCalls)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive, got %s", window)
	}
	return &Limiter{
		maxCalls: maxCalls,
		window:   window,
		stamps:   make([]time.Time, 0, maxCalls),
	}, nil
}

// Acquire blocks until a call slot is available under the budget, records
// the call, and returns nil. It returns the context error if the caller is
// cancelled while waiting. Safe for concurrent use.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		l.evict(now)
		if len(l.stamps) < l.maxCalls {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		// Oldest admission leaves the window first; wake up then and
		// re-contend, since another goroutine may take the freed slot.
		wait := l.stamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// InFlight returns how many admissions are currently inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(time.Now())
	return len(l.stamps)
}

func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
