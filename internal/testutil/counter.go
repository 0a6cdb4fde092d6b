package testutil

import "sync"

// CallCounter counts calls, e.g. how often a vertex's compute function
// ran. Tests wrap the function under observation with Wrap.
//
// Thread-safety: All methods are safe for concurrent use.
type CallCounter struct {
	mu sync.Mutex
	n  int
}

// NewCallCounter creates a counter at 0.
func NewCallCounter() *CallCounter {
	return &CallCounter{}
}

// Inc records one call and returns the new total.
func (c *CallCounter) Inc() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// Count returns the number of calls so far.
func (c *CallCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// Reset sets the counter back to 0.
func (c *CallCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}

// Wrap returns fn instrumented to count its calls on c.
func Wrap[A, R any](c *CallCounter, fn func(A) R) func(A) R {
	return func(a A) R {
		c.Inc()
		return fn(a)
	}
}
