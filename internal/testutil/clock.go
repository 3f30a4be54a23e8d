// Package testutil provides deterministic fixtures — clocks and envelope
// ID generators — so engine and harness scenario tests produce
// byte-identical output across runs, enabling golden-file comparison.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a resettable, mutex-guarded logical clock
// satisfying engine.Clock (func() time.Time). Each call advances by one
// tick from a fixed epoch rather than reading the wall clock, so two
// engines constructed with the same DeterministicClock produce
// identical recorded_at-style timestamps regardless of when the test
// actually runs.
type DeterministicClock struct {
	mu    sync.Mutex
	epoch time.Time
	tick  time.Duration
	seq   int64
}

// NewDeterministicClock creates a clock starting at epoch, advancing by
// tick on every call to Now.
func NewDeterministicClock(epoch time.Time, tick time.Duration) *DeterministicClock {
	return &DeterministicClock{epoch: epoch, tick: tick}
}

// Now returns the next deterministic timestamp and satisfies
// engine.Clock's func() time.Time shape.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.epoch.Add(time.Duration(c.seq) * c.tick)
}

// Reset returns the clock to its starting state. Used to re-run the same
// scenario and expect byte-identical golden output.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
