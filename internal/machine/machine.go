// Package machine runs user programs written in Go on the simulated board.
//
// Every kernel thread is backed by a goroutine, but only one of them holds
// the CPU at a time. A program runs until it traps (a syscall, a fault or a
// preemption point), hands its request to the machine loop and parks on its
// own resume channel. The loop takes the trap into the kernel and resumes
// whichever thread the kernel left in the register frame, identified by the
// active address space and the user stack pointer.
package machine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/cli"
	"github.com/practos/practos/internal/device"
	"github.com/practos/practos/internal/device/sim"
	"github.com/practos/practos/internal/kernel"
	"github.com/practos/practos/internal/mmu"
)

var (
	// ErrHalted is returned by Run after a kernel fault.
	ErrHalted = errors.New("machine: kernel halted")
	// ErrStalled is returned by Run on a manual clock when the CPU idles
	// and neither a sleeper nor pending input can wake it.
	ErrStalled = errors.New("machine: idle with nothing to wake")
)

// User text layout, relative to Layout.UserTextStart.
const (
	idleOffset    = 0x0
	exitOffset    = 0x4
	stubOffset    = 0x100
	numStubs      = 8
	udfOffset     = 0x200
	programOffset = 0x1000
	programSize   = 0x100
)

// undefinedInsn is the permanently undefined "udf #0" encoding.
const undefinedInsn uint32 = 0xE7F000F0

// Program is user code. It runs on its own goroutine and talks to the
// kernel only through t.
type Program func(t *Thread)

// Options configure a Machine.
type Options struct {
	Kernel kernel.Config
	// Clock drives the system timer. A nil clock selects a manual clock
	// starting at zero, which the machine advances itself.
	Clock device.Clock
	// Output receives UART transmissions and kernel diagnostics.
	Output io.Writer
	// RingSize is the UART input ring capacity.
	RingSize int
	// Globals is the initial image of user globals every process starts with.
	Globals []byte
	// AwaitInput makes a manual-clock machine that has nothing left to do
	// wait for console input instead of failing with ErrStalled, until
	// CloseInput is called.
	AwaitInput bool
	Log        *cli.Logger
}

type threadKey struct {
	table int
	sp    uint32
}

type request struct {
	t    *Thread
	kind arm.TrapKind
	// poll marks a preemption point rather than a trap.
	poll bool
}

// Machine is the simulated CPU together with its devices and kernel.
type Machine struct {
	log    *cli.Logger
	layout mmu.Layout

	clock  device.Clock
	manual *sim.ManualClock
	mem    *mmu.Memory
	mm     *mmu.Manager
	intc   *sim.IntC
	timer  *sim.SysTimer
	uart   *sim.UART
	kernel *kernel.Kernel

	// mu is held by whoever executes: the loop while in trap context, a
	// program while it touches registers or memory, and Inspect callers.
	mu     sync.Mutex
	frame  arm.Frame
	cpu    cpuState
	tlb    map[tlbKey]uint32
	counts Counters

	programs map[uint32]Program
	names    map[string]uint32
	threads  map[threadKey]*Thread
	running  *Thread
	req      chan request
	booted   bool

	awaitInput atomic.Bool
}

// Counters are machine level statistics.
type Counters struct {
	Traps      uint64
	Polls      uint64
	TLBHits    uint64
	TLBMisses  uint64
	TLBFlushes uint64
	IdleWaits  uint64
}

// New builds the board: memory with the user text image, the MMU, the
// devices and a kernel bound to them.
func New(opts Options) *Machine {
	log := opts.Log
	if log == nil {
		log = cli.Discard()
	}
	out := opts.Output
	if out == nil {
		out = io.Discard
	}

	m := &Machine{
		log:      log,
		layout:   mmu.DefaultLayout(),
		clock:    opts.Clock,
		mem:      mmu.NewMemory(),
		intc:     sim.NewIntC(),
		tlb:      make(map[tlbKey]uint32),
		programs: make(map[uint32]Program),
		names:    make(map[string]uint32),
		threads:  make(map[threadKey]*Thread),
		req:      make(chan request, 1),
	}
	if m.clock == nil {
		m.manual = sim.NewManualClock(0)
		m.clock = m.manual
	} else if mc, ok := m.clock.(*sim.ManualClock); ok {
		m.manual = mc
	}
	m.awaitInput.Store(opts.AwaitInput)
	m.cpu.reset()
	m.mm = mmu.NewManager(m.layout, m.mem, m)
	m.timer = sim.NewSysTimer(m.clock, m.intc)
	m.uart = sim.NewUART(m.intc, out, opts.RingSize)
	m.writeUserText()
	if len(opts.Globals) > 0 {
		m.mem.Write(m.layout.GlobalsPhys, opts.Globals[:min(len(opts.Globals), int(m.layout.GlobalsSize))])
	}

	cfg := opts.Kernel
	cfg.IdleAddr = m.layout.UserTextStart + idleOffset
	cfg.ExitAddr = m.layout.UserTextStart + exitOffset
	m.kernel = kernel.New(cfg, m.mm, kernel.Devices{
		Timer: m.timer,
		IntC:  m.intc,
		UART:  m.uart,
		CPU:   m,
	}, out, log.With("kernel"))
	return m
}

func (m *Machine) writeUserText() {
	base := m.layout.UserTextStart
	m.mem.Store32(base+idleOffset, arm.BranchSelf)
	m.mem.Store32(base+exitOffset, arm.EncodeSVC(uint8(kernel.SysExit)))
	for n := 0; n < numStubs; n++ {
		m.mem.Store32(m.stubAddr(uint8(n)), arm.EncodeSVC(uint8(n)))
	}
	m.mem.Store32(base+udfOffset, undefinedInsn)
}

func (m *Machine) stubAddr(code uint8) uint32 {
	return m.layout.UserTextStart + stubOffset + 4*uint32(code)
}

// Load places p in user text under name and returns its entry address.
// Loading a name twice replaces the program.
func (m *Machine) Load(name string, p Program) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.names[name]
	if !ok {
		entry = m.layout.UserTextStart + programOffset + programSize*uint32(len(m.names))
		m.names[name] = entry
		m.mem.Store32(entry, arm.BranchSelf)
	}
	m.programs[entry] = p
	return entry
}

// Entry returns the entry address of a loaded program.
func (m *Machine) Entry(name string) (uint32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.names[name]
	return e, ok
}

// Boot starts the program called init as the first process.
func (m *Machine) Boot(init string, args []byte) error {
	entry, ok := m.Entry(init)
	if !ok {
		return fmt.Errorf("machine: no program %q", init)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.booted {
		return errors.New("machine: already booted")
	}
	if err := m.kernel.Boot(&m.frame, entry, args); err != nil {
		return fmt.Errorf("machine: boot: %w", err)
	}
	m.booted = true
	return nil
}

// Kernel returns the kernel. Use Inspect to read it while Run is active.
func (m *Machine) Kernel() *kernel.Kernel { return m.kernel }

// UART returns the serial port, whose Feed method is safe to call at any time.
func (m *Machine) UART() *sim.UART { return m.uart }

// Clock returns the clock driving the system timer.
func (m *Machine) Clock() device.Clock { return m.clock }

// Feed queues console input.
func (m *Machine) Feed(p []byte) { m.uart.Feed(p) }

// CloseInput reports that no more console input will arrive.
func (m *Machine) CloseInput() {
	m.awaitInput.Store(false)
	m.uart.Feed(nil)
}

// Inspect calls fn with the kernel while no trap or program step is in
// progress.
func (m *Machine) Inspect(fn func(k *kernel.Kernel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.kernel)
}

// InspectCPU is Inspect with a copy of the register frame, which holds the
// live user registers of the thread on the CPU.
func (m *Machine) InspectCPU(fn func(k *kernel.Kernel, f arm.Frame)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.kernel, m.frame)
}

// Counters returns the machine statistics.
func (m *Machine) Counters() Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts
}

// Run executes until every thread has exited, the kernel halts, the
// machine stalls or ctx is done. A stalled machine can be fed more input
// and run again.
func (m *Machine) Run(ctx context.Context) error {
	if !m.booted {
		return errors.New("machine: not booted")
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if m.running != nil {
			select {
			case r := <-m.req:
				m.running = nil
				m.handle(r)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		m.mu.Lock()
		halted, idle := m.kernel.Halted(), m.kernel.Idle()
		st := m.kernel.Stats()
		m.mu.Unlock()

		switch {
		case halted:
			m.stopThreads()
			return ErrHalted
		case st.Created == st.Exited:
			m.log.Info("all threads exited")
			return nil
		case idle:
			if err := m.idle(ctx); err != nil {
				return err
			}
		default:
			m.dispatch()
		}
	}
}

// Close stops every program goroutine once it next traps. The machine
// cannot be run afterwards.
func (m *Machine) Close() {
	m.stopThreads()
}

func (m *Machine) stopThreads() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, t := range m.threads {
		close(t.resume)
		delete(m.threads, key)
	}
}

// handle takes the trap a program raised.
func (m *Machine) handle(r request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.poll {
		m.counts.Polls++
		return
	}
	m.trap(r.kind)
}

// trap enters the kernel with the current frame. The caller holds mu.
func (m *Machine) trap(kind arm.TrapKind) kernel.Disposition {
	m.counts.Traps++
	m.cpu.enter(kind, &m.frame)
	d := m.kernel.HandleTrap(kind, &m.frame)
	m.cpu.leave()
	if d != kernel.Resumed {
		m.log.Debug("%s trap: %s", kind, d)
	}
	m.reap()
	return d
}

// reap retires the program of every thread the kernel has terminated. That
// is usually the trapping one, but a waiter can also go away while parked.
// Programs never move their stack pointer, so (table, SP) names a live
// thread for as long as it exists.
func (m *Machine) reap() {
	if len(m.threads) == 0 {
		return
	}
	live := make(map[threadKey]bool, kernel.MaxThreads)
	for i := 0; i < kernel.MaxThreads; i++ {
		if m.kernel.State(i) != kernel.Terminated {
			live[threadKey{table: m.kernel.Table(i), sp: m.kernel.Context(i).SP}] = true
		}
	}
	for key, t := range m.threads {
		if !live[key] {
			m.retire(t)
		}
	}
}

// retire closes the resume channel of t, which unwinds its goroutine.
func (m *Machine) retire(t *Thread) {
	delete(m.threads, t.key)
	close(t.resume)
}

// dispatch hands the CPU to the thread the frame belongs to, starting its
// goroutine on first use. Pending interrupts are taken first.
func (m *Machine) dispatch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timer.Poll()
	m.uart.Poll()
	if m.intc.Asserted() {
		m.trap(arm.TrapIRQ)
		return
	}

	key := threadKey{table: m.mm.Active(), sp: m.frame.USP}
	if t, ok := m.threads[key]; ok {
		m.running = t
		t.resume <- struct{}{}
		return
	}

	entry := m.frame.LR
	p, ok := m.programs[entry]
	if !ok {
		m.badEntry(entry)
		return
	}
	t := &Thread{
		m:      m,
		key:    key,
		entry:  entry,
		pc:     entry,
		arg:    m.frame.R[0],
		resume: make(chan struct{}, 1),
	}
	m.threads[key] = t
	m.running = t
	go t.start(p)
}

// badEntry executes a thread whose entry holds no program: the fetch
// either faults or decodes an undefined instruction.
func (m *Machine) badEntry(pc uint32) {
	m.log.Debug("no program at %#08x", pc)
	if _, fault := m.translate(pc, mmu.Execute); fault != nil {
		m.RecordFault(arm.TrapPrefetchAbort, fault.FSR(), fault.Addr)
		m.frame.LR = arm.TrapLR(arm.TrapPrefetchAbort, pc)
		m.trap(arm.TrapPrefetchAbort)
		return
	}
	m.frame.LR = arm.TrapLR(arm.TrapUndefined, pc)
	m.trap(arm.TrapUndefined)
}

// idle waits in the idle loop until an interrupt is pending and takes it.
func (m *Machine) idle(ctx context.Context) error {
	for {
		m.mu.Lock()
		m.timer.Poll()
		m.uart.Poll()
		if m.intc.Asserted() {
			m.trap(arm.TrapIRQ)
			m.mu.Unlock()
			return nil
		}
		m.counts.IdleWaits++
		deadline, armed := m.timer.NextDeadline()
		waking := m.kernel.Current() != kernel.NoThread || len(m.kernel.Sleeping()) > 0
		m.mu.Unlock()

		if m.manual != nil {
			if !armed || !waking {
				if !m.awaitInput.Load() {
					return ErrStalled
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-m.uart.Notify():
				}
				continue
			}
			m.manual.AdvanceTo(deadline)
			continue
		}

		wait := time.Hour
		if armed {
			if now := m.clock.Now(); deadline > now {
				wait = time.Duration(deadline-now) * time.Microsecond
			} else {
				wait = 0
			}
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.uart.Notify():
		case <-timer.C:
		}
		timer.Stop()
	}
}
