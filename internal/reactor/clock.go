package reactor

import "sync/atomic"

// Clock is a monotonic logical clock.
//
// The reactor keeps two: one stamps commits (Snapshot.Seq) and one stamps
// dispatched actions for logs and observers. Sequence numbers are the only
// ordering signal the runtime exposes; wall-clock time is never used.
//
// Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
