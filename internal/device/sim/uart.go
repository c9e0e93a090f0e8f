package sim

import (
	"io"
	"sync"

	"github.com/practos/practos/internal/device"
)

// DefaultRingSize is the capacity of the UART input ring.
const DefaultRingSize = 64

// UART models the PL011 receive path and the kernel's input ring. Bytes
// arriving from the host are queued by Feed from any goroutine; the machine
// moves them onto the interrupt line with Poll.
type UART struct {
	intc *IntC
	tx   io.Writer

	mu     sync.Mutex
	rx     []byte
	notify chan struct{}

	ring       []byte
	head, tail int
	full       bool
	dropped    int
}

// NewUART creates a UART with an input ring of size bytes that transmits to tx.
func NewUART(intc *IntC, tx io.Writer, size int) *UART {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &UART{
		intc:   intc,
		tx:     tx,
		ring:   make([]byte, size),
		notify: make(chan struct{}, 1),
	}
}

// Feed queues bytes as if they arrived on the receive line.
func (u *UART) Feed(p []byte) {
	u.mu.Lock()
	u.rx = append(u.rx, p...)
	u.mu.Unlock()
	select {
	case u.notify <- struct{}{}:
	default:
	}
}

// Notify is signalled whenever Feed queues data.
func (u *UART) Notify() <-chan struct{} { return u.notify }

// Poll raises the UART line while received data is waiting.
func (u *UART) Poll() {
	u.mu.Lock()
	n := len(u.rx)
	u.mu.Unlock()
	if n > 0 {
		u.intc.Raise(device.IRQUART)
	}
}

// Enable unmasks the receive interrupt.
func (u *UART) Enable() {
	u.intc.Enable(device.IRQUART, false)
}

// Receive reads the data register.
func (u *UART) Receive() (byte, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.rx) == 0 {
		u.intc.Lower(device.IRQUART)
		return 0, false
	}
	b := u.rx[0]
	u.rx = u.rx[1:]
	if len(u.rx) == 0 {
		u.intc.Lower(device.IRQUART)
	}
	return b, true
}

// Buffer appends b to the input ring.
func (u *UART) Buffer(b byte) bool {
	if u.full {
		u.dropped++
		return false
	}
	u.ring[u.head] = b
	u.head = (u.head + 1) % len(u.ring)
	u.full = u.head == u.tail
	return true
}

// Available reports whether the ring holds data.
func (u *UART) Available() bool {
	return u.full || u.head != u.tail
}

// Next pops the oldest byte of the ring.
func (u *UART) Next() (byte, bool) {
	if !u.Available() {
		return 0, false
	}
	b := u.ring[u.tail]
	u.tail = (u.tail + 1) % len(u.ring)
	u.full = false
	return b, true
}

// Transmit writes b to the host side.
func (u *UART) Transmit(b byte) {
	if u.tx != nil {
		_, _ = u.tx.Write([]byte{b})
	}
}

// Dropped counts bytes lost to a full ring.
func (u *UART) Dropped() int { return u.dropped }
