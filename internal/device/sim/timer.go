package sim

import "github.com/practos/practos/internal/device"

// SysTimer is the free-running system timer. A channel matches once the
// counter reaches its compare value; the match raises the channel's line.
type SysTimer struct {
	clock device.Clock
	intc  *IntC

	compare [device.NumTimers]uint64
	reload  [device.NumTimers]uint32
	armed   [device.NumTimers]bool
	status  uint32
}

// NewSysTimer wires a timer to its clock and interrupt controller.
func NewSysTimer(clock device.Clock, intc *IntC) *SysTimer {
	return &SysTimer{clock: clock, intc: intc}
}

// Counter returns the clock split into high and low words.
func (t *SysTimer) Counter() (uint32, uint32) {
	now := t.clock.Now()
	return uint32(now >> 32), uint32(now)
}

// Arm programs channel ch to fire delta microseconds from now and enables its line.
func (t *SysTimer) Arm(ch int, delta uint32) {
	t.compare[ch] = t.clock.Now() + uint64(delta)
	t.reload[ch] = delta
	t.armed[ch] = true
	t.intc.Enable(uint32(device.IRQTimerBase+ch), false)
}

// Matched returns the lowest channel with its status bit set.
func (t *SysTimer) Matched() (int, bool) {
	for ch := 0; ch < device.NumTimers; ch++ {
		if t.status&(1<<ch) != 0 {
			return ch, true
		}
	}
	return -1, false
}

// Ack clears the status bit of ch and moves its compare value on by the reload interval.
func (t *SysTimer) Ack(ch int) {
	t.status &^= 1 << ch
	t.intc.Lower(uint32(device.IRQTimerBase + ch))
	t.compare[ch] += uint64(t.reload[ch])
}

// Poll latches every channel whose compare value has been reached.
func (t *SysTimer) Poll() {
	now := t.clock.Now()
	for ch := 0; ch < device.NumTimers; ch++ {
		if t.armed[ch] && now >= t.compare[ch] && t.status&(1<<ch) == 0 {
			t.status |= 1 << ch
			t.intc.Raise(uint32(device.IRQTimerBase + ch))
		}
	}
}

// NextDeadline returns the earliest compare value of an armed channel.
func (t *SysTimer) NextDeadline() (uint64, bool) {
	var (
		next  uint64
		found bool
	)
	for ch := 0; ch < device.NumTimers; ch++ {
		if t.armed[ch] && (!found || t.compare[ch] < next) {
			next, found = t.compare[ch], true
		}
	}
	return next, found
}
