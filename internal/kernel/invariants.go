package kernel

import (
	kerrors "github.com/practos/practos/internal/errors"
	"github.com/practos/practos/internal/mmu"
)

// CheckInvariants verifies the queue and pool bookkeeping and returns the
// first violation found.
func (k *Kernel) CheckInvariants() error {
	inQueue := make(map[int]bool)
	if k.head != NoThread {
		i := k.head
		for n := 0; ; n++ {
			if n > MaxThreads {
				return kerrors.InvariantViolated("run-queue does not return to its head %d", k.head)
			}
			t := &k.tcbs[i]
			if inQueue[i] {
				return kerrors.InvariantViolated("run-queue visits thread %d twice", i)
			}
			inQueue[i] = true
			if t.state != Ready && t.state != Running {
				return kerrors.InvariantViolated("thread %d is queued while %s", i, t.state)
			}
			if k.tcbs[t.next].prev != i {
				return kerrors.InvariantViolated("thread %d: next.prev is %d", i, k.tcbs[t.next].prev)
			}
			i = t.next
			if i == k.head {
				break
			}
		}
	}

	sleeping := make(map[int]bool)
	for i, n := k.sleepers, 0; i != NoThread; n++ {
		if n >= MaxThreads || sleeping[i] {
			return kerrors.InvariantViolated("sleep-queue contains a loop at thread %d", i)
		}
		sleeping[i] = true
		if t := &k.tcbs[i]; t.state != Waiting || t.wakeAt == 0 {
			return kerrors.InvariantViolated("sleeping thread %d is %s with wake time %d", i, t.state, t.wakeAt)
		}
		i = k.tcbs[i].nextSleeping
	}

	if k.waiter != NoThread {
		if k.tcbs[k.waiter].state != Waiting || sleeping[k.waiter] || inQueue[k.waiter] {
			return kerrors.InvariantViolated("input waiter %d is %s", k.waiter, k.tcbs[k.waiter].state)
		}
	}

	running := 0
	var users [mmu.MaxTables]uint32
	for i := range k.tcbs {
		t := &k.tcbs[i]
		switch t.state {
		case Terminated:
			if inQueue[i] || t.table != mmu.NoTable {
				return kerrors.InvariantViolated("terminated thread %d still holds resources", i)
			}
			continue
		case Running:
			running++
			if i != k.head {
				return kerrors.InvariantViolated("running thread %d is not the head %d", i, k.head)
			}
		case Ready:
			if !inQueue[i] {
				return kerrors.InvariantViolated("ready thread %d is not queued", i)
			}
		case Waiting:
			if !sleeping[i] && k.waiter != i {
				return kerrors.InvariantViolated("waiting thread %d is in no wait queue", i)
			}
		}
		users[t.table]++
	}
	if running > 1 {
		return kerrors.InvariantViolated("%d threads running", running)
	}
	if k.idle && running != 0 {
		return kerrors.InvariantViolated("idle while a thread is running")
	}

	for i := range users {
		if refs := k.mm.RefCount(i); refs != users[i] {
			return kerrors.InvariantViolated("table %d has %d references for %d threads", i, refs, users[i])
		}
	}
	return nil
}
