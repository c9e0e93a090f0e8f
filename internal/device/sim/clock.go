// Package sim implements the board's devices in software: a four channel
// system timer, a two bank interrupt controller and a UART with an input
// ring buffer. They are driven by the machine loop, not by goroutines.
package sim

import "sync/atomic"

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	now atomic.Uint64
}

// NewManualClock returns a clock reading start.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

// Now returns the current reading in microseconds.
func (c *ManualClock) Now() uint64 { return c.now.Load() }

// Advance moves the clock forward by d microseconds.
func (c *ManualClock) Advance(d uint64) { c.now.Add(d) }

// AdvanceTo moves the clock to t if t is in the future.
func (c *ManualClock) AdvanceTo(t uint64) {
	for {
		cur := c.now.Load()
		if t <= cur || c.now.CompareAndSwap(cur, t) {
			return
		}
	}
}
