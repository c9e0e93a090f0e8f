//go:build !linux

package sim

import "time"

// HostClock reports microseconds since it was created.
type HostClock struct {
	start time.Time
}

// NewHostClock starts a host clock at zero.
func NewHostClock() *HostClock {
	return &HostClock{start: time.Now()}
}

// Now returns microseconds since NewHostClock.
func (c *HostClock) Now() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}
