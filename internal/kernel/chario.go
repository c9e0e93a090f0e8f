package kernel

import "github.com/practos/practos/internal/arm"

// Results of a blocking character read, as returned to user code in r0.
const (
	CharDelivered uint32 = 0
	CharBusy      uint32 = 1
)

// WaitForChar parks the current thread until a character arrives. Only one
// thread may wait; a second caller gets CharBusy and keeps running. On
// CharDelivered the caller's context was saved and f now belongs to
// another thread. The caller's r0 must already hold the destination
// address of the character.
func (k *Kernel) WaitForChar(f *arm.Frame) uint32 {
	cur := k.head
	if k.waiter != NoThread || cur == NoThread {
		return CharBusy
	}
	k.storeContext(f, cur)
	k.waiter = cur
	k.dequeue(cur)
	k.setState(cur, Waiting)
	k.log.Debug("thread %d waits for input", cur)
	k.Schedule(f)
	return CharDelivered
}

// Waiter returns the thread blocked on input, or NoThread.
func (k *Kernel) Waiter() int { return k.waiter }

// CharReceived hands b to the waiting thread and switches to it at once.
// Without a waiter b goes to the UART input ring. A waiter whose
// destination is no longer writable takes a data abort instead.
func (k *Kernel) CharReceived(f *arm.Frame, b byte) {
	w := k.waiter
	if w == NoThread {
		if !k.uart.Buffer(b) {
			k.log.Warn("Full UART buffer. The input (%q) wasn't saved!", b)
		}
		return
	}

	if k.head != NoThread && k.tcbs[k.head].state == Running {
		k.storeContext(f, k.head)
	}

	t := &k.tcbs[w]
	fault := k.mm.CopyToUser(t.table, t.ctx.R[0], []byte{b})
	if fault == nil {
		t.ctx.R[0] = CharDelivered
	}
	k.waiter = NoThread

	k.enqueue(w)
	k.head = w
	k.loadContext(f, w)
	if fault != nil {
		// The destination went away while the thread waited, e.g. with the
		// stack of a sibling thread. The byte stays for the next reader.
		k.log.Debug("thread %d: cannot deliver input to %#08x", w, fault.Addr)
		k.uart.Buffer(b)
		k.userAccessFault(f, fault)
		return
	}
	k.rearmTimer()
}
