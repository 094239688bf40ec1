// Package ratelimit gates outbound provider calls: one call in flight at a
// time, process-wide, with a minimum wall-clock interval between permitted
// call starts.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Gate serializes provider call starts. The slot is held only for the
// interval wait itself: Acquire returns once this caller's start is
// permitted, so the interval paces call initiation, not call duration.
type Gate struct {
	enabled bool
	slot    chan struct{}
	limiter *rate.Limiter
}

// New builds a gate enforcing minInterval between permitted starts. A
// disabled gate permits every caller immediately.
func New(minInterval time.Duration, enabled bool) *Gate {
	g := &Gate{enabled: enabled}
	if !enabled {
		return g
	}
	g.slot = make(chan struct{}, 1)
	// Burst 1: the first caller proceeds immediately, each subsequent
	// start waits out the remainder of the interval.
	g.limiter = rate.NewLimiter(rate.Every(minInterval), 1)
	return g
}

// Acquire blocks until the caller is permitted to start a provider call.
// Callers queue on the slot channel, so permits are granted in arrival
// order. Returns the context error if ctx is cancelled while waiting.
func (g *Gate) Acquire(ctx context.Context) error {
	if !g.enabled {
		return nil
	}

	select {
	case g.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slot }()

	// Wait reserves the next start time; the limiter tracks the last
	// permitted start, so spacing is start-to-start.
	return g.limiter.Wait(ctx)
}
