// Package gate bounds the number of simultaneous inference calls.
//
// A single Gate is constructed at startup and injected into every inference
// client; the "one limiter for the whole process" semantic comes from sharing
// that instance, not from package-level state.
package gate

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const DefaultCapacity = 5

// Gate is a counting semaphore with live waiting/in-flight counters.
// It cannot fail, only block; Acquire returns an error only when the
// caller's context is canceled.
type Gate struct {
	capacity int64
	sem      *semaphore.Weighted

	waiting  atomic.Int64
	inFlight atomic.Int64
}

// New creates a gate admitting at most capacity concurrent holders.
// Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *Gate {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Gate{
		capacity: int64(capacity),
		sem:      semaphore.NewWeighted(int64(capacity)),
	}
}

// Acquire blocks until a slot is free. The waiting counter is incremented
// around the blocking section so QueueDepth reflects callers still parked.
func (g *Gate) Acquire(ctx context.Context) error {
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		return err
	}
	g.inFlight.Add(1)
	return nil
}

// Release returns a slot. Never blocks. Call exactly once per successful
// Acquire.
func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

// QueueDepth reports how many callers are currently blocked in Acquire.
// The value is stale the instant it is read; use it for logging and
// metrics only, never for control flow.
func (g *Gate) QueueDepth() int64 {
	return g.waiting.Load()
}

// InFlight reports how many callers currently hold a slot.
func (g *Gate) InFlight() int64 {
	return g.inFlight.Load()
}

// Capacity reports the fixed slot count the gate was built with.
func (g *Gate) Capacity() int64 {
	return g.capacity
}
