package sim

import "github.com/practos/practos/internal/device"

// IntC is the interrupt controller: raw line state masked by enable bits.
type IntC struct {
	raw          [2]uint32
	enabled      [2]uint32
	basicEnabled uint32
}

// NewIntC returns a controller with every line masked.
func NewIntC() *IntC { return &IntC{} }

// Enable unmasks a line.
func (c *IntC) Enable(line uint32, basic bool) {
	if basic {
		c.basicEnabled |= 1 << line
		return
	}
	w, b := device.Line(line)
	c.enabled[w] |= 1 << b
}

// Disable masks a line.
func (c *IntC) Disable(line uint32, basic bool) {
	if basic {
		c.basicEnabled &^= 1 << line
		return
	}
	w, b := device.Line(line)
	c.enabled[w] &^= 1 << b
}

// Pending returns the enabled lines that are asserted.
func (c *IntC) Pending() [2]uint32 {
	return [2]uint32{c.raw[0] & c.enabled[0], c.raw[1] & c.enabled[1]}
}

// Raise asserts a line.
func (c *IntC) Raise(line uint32) {
	w, b := device.Line(line)
	c.raw[w] |= 1 << b
}

// Lower deasserts a line.
func (c *IntC) Lower(line uint32) {
	w, b := device.Line(line)
	c.raw[w] &^= 1 << b
}

// Asserted reports whether any enabled line is pending.
func (c *IntC) Asserted() bool {
	p := c.Pending()
	return p[0]|p[1] != 0
}
