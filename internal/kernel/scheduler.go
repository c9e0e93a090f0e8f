package kernel

import (
	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/device"
)

// Schedule picks the thread to resume and rewrites f to resume it. Sleepers
// whose time has come are made ready first. A running thread keeps the CPU
// when it is the only ready one; otherwise it is saved and the next thread
// in the ring is loaded. With nothing to run, f is pointed at the idle loop.
func (k *Kernel) Schedule(f *arm.Frame) {
	k.wakeThreads()

	if k.head == NoThread {
		k.enterIdle(f)
	} else {
		cur := &k.tcbs[k.head]
		switch {
		case cur.state == Running && cur.next == k.head:
			// Alone in the queue: keep running.
		case cur.state == Running:
			k.storeContext(f, k.head)
			k.head = cur.next
			k.loadContext(f, k.head)
		default:
			k.loadContext(f, k.head)
		}
	}
	k.rearmTimer()
}

// wakeThreads moves every sleeper whose wake time has passed to the run-queue.
func (k *Kernel) wakeThreads() {
	if k.sleepers == NoThread {
		return
	}
	now := k.now()
	prev := NoThread
	for i := k.sleepers; i != NoThread; {
		t := &k.tcbs[i]
		next := t.nextSleeping
		if t.wakeAt > now {
			prev = i
			i = next
			continue
		}
		if prev == NoThread {
			k.sleepers = next
		} else {
			k.tcbs[prev].nextSleeping = next
		}
		t.nextSleeping = NoThread
		t.wakeAt = 0
		k.setState(i, Ready)
		k.enqueue(i)
		k.log.Debug("thread %d woke up", i)
		i = next
	}
}

// rearmTimer programs the scheduler timer. A full quantum is used when
// something is ready or nobody sleeps; otherwise the timer fires when the
// earliest sleeper is due.
func (k *Kernel) rearmTimer() {
	delta := k.cfg.Quantum
	if k.head == NoThread && k.sleepers != NoThread {
		soonest := k.tcbs[k.sleepers].wakeAt
		for i := k.tcbs[k.sleepers].nextSleeping; i != NoThread; i = k.tcbs[i].nextSleeping {
			soonest = min(soonest, k.tcbs[i].wakeAt)
		}
		delta = 1
		if now := k.now(); soonest > now {
			delta = uint32(min(soonest-now, 1<<32-1))
		}
	}
	k.timer.Arm(device.SchedulerTimer, delta)
}

// storeContext saves the user state in f into thread i and marks it ready.
func (k *Kernel) storeContext(f *arm.Frame, i int) {
	t := &k.tcbs[i]
	t.ctx.SP = f.USP
	t.ctx.LR = f.ULR
	t.ctx.PC = f.LR
	t.ctx.R = f.R
	t.ctx.CPSR = f.SPSR
	k.setState(i, Ready)
}

// loadContext writes the saved state of thread i into f, switches to its
// address space and marks it running.
func (k *Kernel) loadContext(f *arm.Frame, i int) {
	t := &k.tcbs[i]
	f.USP = t.ctx.SP
	f.ULR = t.ctx.LR
	f.LR = t.ctx.PC
	f.R = t.ctx.R
	f.SPSR = t.ctx.CPSR
	k.mm.Activate(t.table)
	k.idle = false
	k.stats.Switches++
	k.setState(i, Running)
	k.emit(Event{Kind: EventSwitch, Thread: i, State: Running})
	k.log.Debug("switch to thread %d (table %d, pc %#08x)", i, t.table, t.ctx.PC)
}

// enterIdle points f at the idle loop in user mode.
func (k *Kernel) enterIdle(f *arm.Frame) {
	f.LR = k.cfg.IdleAddr
	f.SPSR = arm.UserPSR
	if !k.idle {
		k.idle = true
		k.emit(Event{Kind: EventIdle, Thread: NoThread})
		k.log.Debug("idle")
	}
}

// Sleep suspends the current thread for at least millis milliseconds.
// Zero returns immediately.
func (k *Kernel) Sleep(f *arm.Frame, millis uint32) {
	cur := k.head
	if millis == 0 || cur == NoThread {
		return
	}
	k.storeContext(f, cur)
	t := &k.tcbs[cur]
	t.wakeAt = k.now() + uint64(millis)*1000
	k.dequeue(cur)
	k.setState(cur, Waiting)
	t.nextSleeping = k.sleepers
	k.sleepers = cur
	k.Schedule(f)
}

// Sleeping returns the sleep-queue in list order.
func (k *Kernel) Sleeping() []int {
	var out []int
	for i, n := k.sleepers, 0; i != NoThread && n < MaxThreads; n++ {
		out = append(out, i)
		i = k.tcbs[i].nextSleeping
	}
	return out
}
