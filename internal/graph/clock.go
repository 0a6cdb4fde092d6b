package graph

import "sync/atomic"

// Clock is the driver's logical cycle counter.
//
// Cycle numbers start at 1; cycle 0 means "no cycle" and is what contexts
// created outside a driver report. Cache vertices compare cycle stamps to
// tell one cycle from the next, so the clock must never go backwards.
//
// Thread-safety: safe for concurrent use.
type Clock struct {
	cycle atomic.Int64
}

// NewClock creates a clock whose first cycle is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after cycle start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.cycle.Store(start)
	return c
}

// Advance starts the next cycle and returns its number.
func (c *Clock) Advance() int64 {
	return c.cycle.Add(1)
}

// Current returns the current cycle without advancing.
func (c *Clock) Current() int64 {
	return c.cycle.Load()
}
