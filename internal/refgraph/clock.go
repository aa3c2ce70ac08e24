package refgraph

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers for events.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock. Events are ordered by the seq it
// hands out, never by wall-clock time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
