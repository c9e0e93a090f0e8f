package kernel

import (
	"fmt"

	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/device"
	kerrors "github.com/practos/practos/internal/errors"
	"github.com/practos/practos/internal/mmu"
)

// Disposition tells the trap entry code what became of the trapping thread.
type Disposition int

const (
	// Resumed means f holds the context to return to, which may belong to
	// another thread if the trapping one was preempted or blocked.
	Resumed Disposition = iota
	// ThreadTerminated means the trapping thread is gone.
	ThreadTerminated
	// Halted means a kernel fault stopped the system.
	Halted
)

var dispositionNames = [...]string{"resumed", "terminated", "halted"}

func (d Disposition) String() string {
	if d < 0 || int(d) >= len(dispositionNames) {
		return fmt.Sprintf("disposition(%d)", int(d))
	}
	return dispositionNames[d]
}

// Syscall is a supervisor call number, taken from the low byte of the SVC
// instruction.
type Syscall uint8

const (
	// SysExit terminates the calling thread.
	SysExit Syscall = iota
	// SysCreateThread starts r0(r1, r2 bytes) as a thread, or as a process
	// when r3 is nonzero.
	SysCreateThread
	// SysSleep blocks for r0 milliseconds.
	SysSleep
	// SysReadChar stores one input byte at r0. r0 returns CharDelivered,
	// or CharBusy when another thread is already waiting.
	SysReadChar
	// SysWriteChar transmits the low byte of r0.
	SysWriteChar

	NumSyscalls
)

var syscallNames = [...]string{"exit", "create_thread", "sleep", "read_char", "write_char"}

func (s Syscall) String() string {
	if s >= NumSyscalls {
		return fmt.Sprintf("syscall(%d)", uint8(s))
	}
	return syscallNames[s]
}

// irqSources are the lines the dispatcher looks at, in scan order. When
// several are pending the last one wins.
var irqSources = []uint32{
	device.IRQTimerBase + 0,
	device.IRQTimerBase + 1,
	device.IRQTimerBase + 2,
	device.IRQTimerBase + 3,
	device.IRQUART,
}

// HandleTrap dispatches a trap of kind k taken with frame f. After a
// kernel fault every further trap is ignored.
func (k *Kernel) HandleTrap(kind arm.TrapKind, f *arm.Frame) Disposition {
	if k.halted {
		return Halted
	}
	switch kind {
	case arm.TrapSVC:
		return k.handleSVC(f)
	case arm.TrapUndefined, arm.TrapPrefetchAbort, arm.TrapDataAbort:
		k.stats.Faults++
		k.report(kind, f)
		return k.faultPolicy(f)
	case arm.TrapIRQ:
		k.stats.IRQs++
		return k.handleIRQ(f)
	case arm.TrapFIQ:
		if k.cfg.IRQRegDump {
			k.report(kind, f)
		}
	case arm.TrapReset:
		fmt.Fprintln(k.console, "Reset handler called")
	default:
		fmt.Fprintln(k.console, "UNUSED handler called")
	}
	return Resumed
}

func (k *Kernel) handleSVC(f *arm.Frame) Disposition {
	if arm.ClassifyTrapContext(f.SPSR) == arm.Unprivileged && !k.idle {
		pc := arm.FaultPC(arm.TrapSVC, f.LR)
		if phys, fault := k.mm.Walk(pc, mmu.Read, false); fault == nil {
			if sc := Syscall(arm.SVCNumber(k.mm.Memory().Load32(phys))); sc < NumSyscalls {
				k.stats.Syscalls++
				return k.syscall(sc, f)
			}
		}
	}
	k.stats.Faults++
	k.report(arm.TrapSVC, f)
	return k.faultPolicy(f)
}

func (k *Kernel) syscall(sc Syscall, f *arm.Frame) Disposition {
	k.log.Debug("thread %d: %s(%#x, %#x, %#x, %#x)", k.head, sc, f.R[0], f.R[1], f.R[2], f.R[3])
	switch sc {
	case SysExit:
		k.Exit(f)
		return ThreadTerminated
	case SysCreateThread:
		return k.sysCreateThread(f)
	case SysSleep:
		k.Sleep(f, f.R[0])
	case SysReadChar:
		return k.sysReadChar(f)
	case SysWriteChar:
		k.uart.Transmit(byte(f.R[0]))
	}
	return Resumed
}

func (k *Kernel) sysCreateThread(f *arm.Frame) Disposition {
	entry, argsPtr, size, isProcess := f.R[0], f.R[1], f.R[2], f.R[3] != 0
	if size > MaxArgs {
		k.log.Warn("%s", kerrors.ArgsTooLarge(size, MaxArgs).Message)
		return Resumed
	}
	args, fault := k.mm.CopyFromUser(k.tcbs[k.head].table, argsPtr, size)
	if fault != nil {
		return k.userAccessFault(f, fault)
	}
	k.CreateThread(f, entry, args, isProcess)
	return Resumed
}

func (k *Kernel) sysReadChar(f *arm.Frame) Disposition {
	cur := k.head
	dest := f.R[0]
	if _, fault := k.mm.Translate(k.tcbs[cur].table, dest, mmu.Write); fault != nil {
		return k.userAccessFault(f, fault)
	}
	if k.uart.Available() {
		b, _ := k.uart.Next()
		k.mm.CopyToUser(k.tcbs[cur].table, dest, []byte{b})
		f.R[0] = CharDelivered
		return Resumed
	}
	if k.WaitForChar(f) == CharBusy {
		f.R[0] = CharBusy
	}
	return Resumed
}

// userAccessFault reports a syscall argument that points at memory the
// caller may not touch. It is handled as a data abort of the caller.
func (k *Kernel) userAccessFault(f *arm.Frame, fault *mmu.Fault) Disposition {
	k.stats.Faults++
	k.cpu.RecordFault(arm.TrapDataAbort, fault.FSR(), fault.Addr)
	k.report(arm.TrapDataAbort, f)
	return k.faultPolicy(f)
}

// faultPolicy terminates the current thread for a fault taken from user
// mode and halts the system for anything else.
func (k *Kernel) faultPolicy(f *arm.Frame) Disposition {
	if arm.ClassifyTrapContext(f.SPSR) == arm.Unprivileged && k.head != NoThread && !k.idle {
		fmt.Fprintln(k.console, "\nFault occurred in current thread. Thread is terminated.")
		k.Exit(f)
		return ThreadTerminated
	}
	fmt.Fprintln(k.console, "\nFault occurred in kernel. System is halted.")
	k.halted = true
	k.intc.Disable(device.IRQTimerBase+device.SchedulerTimer, false)
	k.intc.Disable(device.IRQUART, false)
	k.emit(Event{Kind: EventHalt, Thread: k.head})
	k.log.Error("system halted")
	return Halted
}

func (k *Kernel) handleIRQ(f *arm.Frame) Disposition {
	if k.cfg.IRQRegDump {
		k.report(arm.TrapIRQ, f)
	}

	src := -1
	pending := k.intc.Pending()
	for _, line := range irqSources {
		w, b := device.Line(line)
		if pending[w]>>b&1 != 0 {
			src = int(line)
		}
	}

	switch {
	case src >= device.IRQTimerBase && src < device.IRQTimerBase+device.NumTimers:
		k.timerIRQ(f)
	case src == device.IRQUART:
		return k.uartIRQ(f)
	}
	return Resumed
}

func (k *Kernel) timerIRQ(f *arm.Frame) {
	ch, ok := k.timer.Matched()
	if !ok {
		return
	}
	k.timer.Ack(ch)
	if ch != device.SchedulerTimer {
		k.log.Debug("timer channel %d matched without a handler", ch)
		return
	}
	k.stats.TimerTicks++
	k.Schedule(f)
}

func (k *Kernel) uartIRQ(f *arm.Frame) Disposition {
	b, ok := k.uart.Receive()
	if !ok {
		return Resumed
	}
	if k.cfg.FaultKeys {
		if d, faulted := k.faultKey(b, f); faulted {
			return d
		}
	}
	k.CharReceived(f, b)
	return Resumed
}
