package testutil

import (
	"sync"
	"time"
)

// Clock is a settable wall clock for tests.
//
// Pass its Now method wherever production code takes a func() time.Time.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock reading start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current reading.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t. Moving backwards is allowed.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}
