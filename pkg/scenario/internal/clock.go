// Package internal provides internal utilities for the scenario package.
package internal

import (
	"sync"
	"time"
)

// Clock reports the time used to measure step and scenario durations.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now, which carries a monotonic reading.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FakeClock is a manually advanced Clock for tests. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewFakeClock returns a FakeClock at t that advances by step on every Now.
// A zero t starts at a fixed instant.
func NewFakeClock(t time.Time, step time.Duration) *FakeClock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0)
	}
	return &FakeClock{current: t, step: step}
}

// Now returns the current fake time and then advances it by the step.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// Advance moves the clock forward by d.
// Panics if d is negative to maintain monotonicity.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		panic("FakeClock.Advance: duration must be non-negative")
	}
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}
