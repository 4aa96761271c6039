package metrics

import "sync/atomic"

// Counter is a monotonic (or at least caller-controlled) 64-bit counter.
type Counter struct {
	count atomic.Int64
}

// NewCounter constructs a new, zeroed Counter.
func NewCounter() *Counter {
	return &Counter{}
}

// NewRegisteredCounter constructs and registers a new Counter, or returns the
// already-registered one for name if this is not the first call.
func NewRegisteredCounter(name string, r Registry) *Counter {
	return getOrRegister(name, NewCounter, r)
}

// Inc increments the counter by delta.
func (c *Counter) Inc(delta int64) {
	c.count.Add(delta)
}

// Clear resets the counter to zero.
func (c *Counter) Clear() {
	c.count.Store(0)
}

// Snapshot returns the current value of the counter.
func (c *Counter) Snapshot() int64 {
	return c.count.Load()
}
