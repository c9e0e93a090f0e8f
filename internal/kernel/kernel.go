// Package kernel implements the thread scheduler, the sleep and character
// wait queues, thread and process creation, and the trap dispatcher of the
// practos kernel.
//
// A Kernel is driven entirely from trap context: every entry point takes
// the register frame of the interrupted code and may rewrite it so that a
// different thread resumes. It is not safe for concurrent use.
package kernel

import (
	"io"

	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/cli"
	"github.com/practos/practos/internal/device"
	"github.com/practos/practos/internal/mmu"
)

// MaxThreads is the size of the thread control block pool.
const MaxThreads = 32

// NoThread marks an empty queue link or slot.
const NoThread = -1

// State is the lifecycle state of a thread control block.
type State int

const (
	Terminated State = iota
	Ready
	Running
	Waiting
)

var stateNames = [...]string{"terminated", "ready", "running", "waiting"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "invalid"
	}
	return stateNames[s]
}

// TCB is a thread control block. A zero TCB is a free, terminated slot.
type TCB struct {
	state State
	ctx   arm.Context

	prev, next   int
	nextSleeping int
	wakeAt       uint64

	table int
	stack int
}

func (t *TCB) reset() {
	*t = TCB{
		prev:         NoThread,
		next:         NoThread,
		nextSleeping: NoThread,
		table:        mmu.NoTable,
		stack:        -1,
	}
}

// Config holds the kernel tunables.
type Config struct {
	// Quantum is the time slice in microseconds.
	Quantum uint32
	// IRQRegDump prints the register dump on every IRQ.
	IRQRegDump bool
	// FaultKeys enables the UART keys that provoke kernel faults.
	FaultKeys bool
	// IdleAddr is the user address of the idle loop.
	IdleAddr uint32
	// ExitAddr is the user address threads return to when their entry
	// function returns. It must issue the exit syscall.
	ExitAddr uint32
}

// DefaultQuantum is the time slice used when Config.Quantum is zero.
const DefaultQuantum = 20000

// Devices bundles the hardware the kernel drives.
type Devices struct {
	Timer device.Timer
	IntC  device.InterruptController
	UART  device.UART
	CPU   device.CPU
}

// Stats counts kernel activity since boot.
type Stats struct {
	Switches   uint64
	Syscalls   uint64
	IRQs       uint64
	TimerTicks uint64
	Faults     uint64
	Created    uint64
	Exited     uint64
}

// Kernel is the scheduler and trap dispatcher.
type Kernel struct {
	cfg     Config
	log     *cli.Logger
	console io.Writer

	mm    *mmu.Manager
	timer device.Timer
	intc  device.InterruptController
	uart  device.UART
	cpu   device.CPU

	tcbs [MaxThreads]TCB

	// head is the current thread and the entry point of the run-queue ring.
	head     int
	sleepers int
	waiter   int

	idle   bool
	halted bool

	observer Observer
	stats    Stats
}

// New creates a kernel with every thread slot free. Diagnostics are written
// to console.
func New(cfg Config, mm *mmu.Manager, dev Devices, console io.Writer, log *cli.Logger) *Kernel {
	if cfg.Quantum == 0 {
		cfg.Quantum = DefaultQuantum
	}
	if log == nil {
		log = cli.Discard()
	}
	if console == nil {
		console = io.Discard
	}
	k := &Kernel{
		cfg:      cfg,
		log:      log,
		console:  console,
		mm:       mm,
		timer:    dev.Timer,
		intc:     dev.IntC,
		uart:     dev.UART,
		cpu:      dev.CPU,
		head:     NoThread,
		sleepers: NoThread,
		waiter:   NoThread,
	}
	for i := range k.tcbs {
		k.tcbs[i].reset()
	}
	return k
}

// Boot creates the init process running entry with args and prepares f to
// enter the idle loop. The first scheduler tick switches to init.
func (k *Kernel) Boot(f *arm.Frame, entry uint32, args []byte) error {
	k.intc.Enable(device.IRQUART, false)
	if err := k.CreateThread(nil, entry, args, true); err != nil {
		return err
	}
	k.enterIdle(f)
	k.rearmTimer()
	k.log.Info("Scheduling started, quantum %dus", k.cfg.Quantum)
	return nil
}

// MemoryManager returns the address-space manager.
func (k *Kernel) MemoryManager() *mmu.Manager { return k.mm }

// Current returns the thread at the head of the run-queue, or NoThread.
func (k *Kernel) Current() int { return k.head }

// Idle reports whether the idle loop is running.
func (k *Kernel) Idle() bool { return k.idle }

// Halted reports whether a kernel fault stopped the system.
func (k *Kernel) Halted() bool { return k.halted }

// Stats returns the activity counters.
func (k *Kernel) Stats() Stats { return k.stats }

// Table returns the address space of thread i.
func (k *Kernel) Table(i int) int { return k.tcbs[i].table }

// State returns the state of thread i.
func (k *Kernel) State(i int) State { return k.tcbs[i].state }

// Context returns the saved user context of thread i. It is stale while
// the thread is running.
func (k *Kernel) Context(i int) arm.Context { return k.tcbs[i].ctx }

// SetObserver installs o to receive scheduling events. nil removes it.
func (k *Kernel) SetObserver(o Observer) { k.observer = o }

// SetLogLevel changes the kernel log level at run time.
func (k *Kernel) SetLogLevel(l cli.Level) { k.log.SetLevel(l) }

func (k *Kernel) now() uint64 {
	hi, lo := k.timer.Counter()
	return uint64(hi)<<32 | uint64(lo)
}

func (k *Kernel) setState(i int, s State) {
	t := &k.tcbs[i]
	if t.state == s {
		return
	}
	t.state = s
	k.emit(Event{Kind: EventState, Thread: i, State: s})
}
