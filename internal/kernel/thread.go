package kernel

import (
	"github.com/practos/practos/internal/arm"
	kerrors "github.com/practos/practos/internal/errors"
	"github.com/practos/practos/internal/mmu"
)

// MaxArgs is the largest argument block a new thread can be given. The
// block is copied to the top of the thread's stack page.
const MaxArgs = mmu.PageSize - arm.StackAlign

// CreateThread starts a thread at entry with a copy of args at the top of
// its stack and a pointer to that copy in r0. A process gets a fresh
// address space; a plain thread shares the one of the current thread.
//
// Failure leaves every pool as it was and is reported as a warning. On
// success the thread is queued and, when f is not nil, the scheduler runs.
func (k *Kernel) CreateThread(f *arm.Frame, entry uint32, args []byte, isProcess bool) error {
	if err := k.createThread(entry, args, isProcess); err != nil {
		k.log.Warn("%s", err.Message)
		return err
	}
	if f != nil {
		k.Schedule(f)
	}
	return nil
}

func (k *Kernel) createThread(entry uint32, args []byte, isProcess bool) *kerrors.StandardError {
	if len(args) > MaxArgs {
		return kerrors.ArgsTooLarge(uint32(len(args)), MaxArgs)
	}
	slot := k.freeSlot()
	if slot == NoThread {
		return kerrors.NoFreeThread(MaxThreads)
	}

	var table int
	if isProcess {
		i, err := k.mm.Acquire()
		if err != nil {
			return kerrors.NoFreeTable(mmu.MaxTables)
		}
		table = i
	} else {
		if k.head == NoThread {
			return kerrors.InvariantViolated("thread creation without a current process")
		}
		table = k.tcbs[k.head].table
		k.mm.Share(table)
	}

	stack, top, err := k.mm.AllocStack(table)
	if err != nil {
		if rerr := k.mm.Release(table); rerr != nil {
			k.log.Error("%v", rerr)
		}
		return kerrors.NoFreeStack(table)
	}

	argsPhys := top - uint32(len(args))
	k.mm.Memory().Write(argsPhys, args)
	argsVirt := k.mm.PhysToVirt(table, argsPhys)

	t := &k.tcbs[slot]
	t.reset()
	t.table = table
	t.stack = stack
	t.ctx = arm.Context{
		SP:   arm.AlignSP(argsVirt),
		CPSR: arm.UserPSR,
		PC:   entry,
		LR:   k.cfg.ExitAddr,
	}
	t.ctx.R[0] = argsVirt
	k.setState(slot, Ready)
	k.enqueue(slot)
	k.stats.Created++

	kind := "thread"
	if isProcess {
		kind = "process"
	}
	k.log.Debug("created %s %d at %#08x (table %d, stack slot %d)", kind, slot, entry, table, stack)
	return nil
}

// Exit terminates the current thread and schedules the next one.
func (k *Kernel) Exit(f *arm.Frame) {
	cur := k.head
	if cur == NoThread {
		return
	}
	k.terminate(cur)
	k.stats.Exited++
	k.Schedule(f)
}

// terminate releases the resources of thread i. Its stack page becomes a
// guard page again and the address space goes away with its last thread.
func (k *Kernel) terminate(i int) {
	t := &k.tcbs[i]
	k.dequeue(i)
	if k.waiter == i {
		k.waiter = NoThread
	}
	k.mm.FreeStack(t.table, t.stack)
	if err := k.mm.Release(t.table); err != nil {
		k.log.Error("%v", err)
	}
	k.log.Debug("thread %d terminated (table %d)", i, t.table)
	t.reset()
	k.emit(Event{Kind: EventExit, Thread: i, State: Terminated})
}
