package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps journal writes.
//
// Every entry and event written by a run carries a strictly increasing seq.
// A run resumes the clock from the journal's last seq, so seq keeps
// increasing across runs and List/Events order matches write order without
// relying on wall time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
