package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is a sliding-window rate limiter: at most limit calls within any
// span-sized interval. It keeps the timestamps of recent calls and evicts the
// ones that have aged out, so the wait for the next slot is bounded by the
// oldest retained call plus the span. Exceeding the limit delays the caller,
// it never drops the request.
type Window struct {
	mu    sync.Mutex
	limit int
	span  time.Duration
	calls []time.Time
	now   func() time.Time
}

// NewWindow creates a limiter allowing limit calls per span.
func NewWindow(limit int, span time.Duration) *Window {
	return &Window{
		limit: limit,
		span:  span,
		now:   time.Now,
	}
}

// Allow records a call and returns true if it fits in the window, without
// blocking. A rejected call is not recorded.
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.evict(now)
	if len(w.calls) >= w.limit {
		return false
	}
	w.calls = append(w.calls, now)
	return true
}

// Wait blocks until the call fits in the window or the context is cancelled,
// then records it.
func (w *Window) Wait(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.now()
		w.evict(now)
		if len(w.calls) < w.limit {
			w.calls = append(w.calls, now)
			w.mu.Unlock()
			return nil
		}
		// The oldest retained call leaves the window first; that directly
		// bounds how long we sleep.
		delay := w.calls[0].Add(w.span).Sub(now)
		w.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// evict drops call timestamps older than the window. Callers must hold mu.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.span)
	i := 0
	for i < len(w.calls) && !w.calls[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}
