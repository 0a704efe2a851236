// Package testutil provides shared test helpers.
package testutil

import "sync"

// Clock is a thread-safe deterministic timestamp source for tests. It
// stands in for the wall clock wherever a component accepts an injectable
// nanosecond timestamp function, so tests control ticket ordering and
// expiry exactly.
type Clock struct {
	mu  sync.Mutex
	now int64
}

// NewClock creates a clock frozen at start.
func NewClock(start int64) *Clock {
	return &Clock{now: start}
}

// Now returns the current timestamp without advancing.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Tick advances the clock by one and returns the new timestamp. Successive
// Ticks are strictly increasing even under concurrency.
func (c *Clock) Tick() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now++
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += d
}
