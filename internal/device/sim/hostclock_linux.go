//go:build linux

package sim

import "golang.org/x/sys/unix"

// HostClock reads CLOCK_MONOTONIC and reports microseconds since it was created.
type HostClock struct {
	base uint64
}

// NewHostClock starts a host clock at zero.
func NewHostClock() *HostClock {
	c := &HostClock{}
	c.base = c.raw()
	return c
}

func (c *HostClock) raw() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return uint64(ts.Nano()) / 1000
}

// Now returns microseconds since NewHostClock.
func (c *HostClock) Now() uint64 {
	return c.raw() - c.base
}
