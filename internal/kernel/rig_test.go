package kernel

import (
	"bytes"
	"testing"

	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/device/sim"
	"github.com/practos/practos/internal/mmu"
	"github.com/practos/practos/internal/testrunner/assert"
)

const testQuantum = 10000

// fakeCPU latches fault registers and reports fixed banked registers.
type fakeCPU struct {
	cpsr   uint32
	status [arm.TrapFIQ + 1]uint32
	addr   [arm.TrapFIQ + 1]uint32
}

func (c *fakeCPU) CPSR() uint32 { return c.cpsr }

func (c *fakeCPU) Banked(m arm.Mode) arm.ModeRegisters {
	if m == arm.ModeUSR {
		return arm.ModeRegisters{SP: 0x006FF000, LR: 0x00500010, SPSR: arm.NoSPSR}
	}
	return arm.ModeRegisters{SP: 0x00300000, LR: 0x00100100, SPSR: arm.UserPSR}
}

func (c *fakeCPU) FaultRegisters(k arm.TrapKind) (uint32, uint32) { return c.status[k], c.addr[k] }

func (c *fakeCPU) RecordFault(k arm.TrapKind, status, addr uint32) {
	c.status[k], c.addr[k] = status, addr
}

// rig is a kernel on simulated devices with a manual clock. User text
// holds the idle loop, the exit stub and one SVC instruction per code.
type rig struct {
	t       *testing.T
	k       *Kernel
	clock   *sim.ManualClock
	intc    *sim.IntC
	timer   *sim.SysTimer
	uart    *sim.UART
	mm      *mmu.Manager
	cpu     *fakeCPU
	console *bytes.Buffer
	tx      *bytes.Buffer
	f       *arm.Frame
}

func newRig(t *testing.T, mutate ...func(*Config)) *rig {
	t.Helper()
	l := mmu.DefaultLayout()
	mem := mmu.NewMemory()
	mm := mmu.NewManager(l, mem, nil)

	r := &rig{
		t:       t,
		clock:   sim.NewManualClock(1000),
		intc:    sim.NewIntC(),
		mm:      mm,
		cpu:     &fakeCPU{cpsr: uint32(arm.ModeSVC)},
		console: &bytes.Buffer{},
		tx:      &bytes.Buffer{},
		f:       &arm.Frame{},
	}
	r.timer = sim.NewSysTimer(r.clock, r.intc)
	r.uart = sim.NewUART(r.intc, r.tx, 8)

	mem.Store32(r.idleAddr(), arm.BranchSelf)
	mem.Store32(r.exitAddr(), arm.EncodeSVC(uint8(SysExit)))
	for code := 0; code < 16; code++ {
		mem.Store32(r.svcAddr(uint8(code)), arm.EncodeSVC(uint8(code)))
	}

	cfg := Config{Quantum: testQuantum, IdleAddr: r.idleAddr(), ExitAddr: r.exitAddr()}
	for _, m := range mutate {
		m(&cfg)
	}
	r.k = New(cfg, mm, Devices{Timer: r.timer, IntC: r.intc, UART: r.uart, CPU: r.cpu}, r.console, nil)
	return r
}

func (r *rig) idleAddr() uint32 { return mmu.DefaultLayout().UserTextStart }

func (r *rig) exitAddr() uint32 { return r.idleAddr() + 4 }

func (r *rig) svcAddr(code uint8) uint32 { return r.idleAddr() + 0x100 + 4*uint32(code) }

// entry returns a distinct entry point for thread n.
func entry(n int) uint32 { return mmu.DefaultLayout().UserTextStart + 0x1000 + 0x100*uint32(n) }

func (r *rig) boot(args []byte) {
	r.t.Helper()
	assert.NoError(r.t, r.k.Boot(r.f, entry(0), args))
	r.check()
}

// tick lets a full quantum pass and takes the scheduler interrupt.
func (r *rig) tick() Disposition {
	r.t.Helper()
	next, ok := r.timer.NextDeadline()
	assert.True(r.t, ok, "scheduler timer not armed")
	r.clock.AdvanceTo(next)
	r.timer.Poll()
	d := r.k.HandleTrap(arm.TrapIRQ, r.f)
	r.check()
	return d
}

// svc issues supervisor call code from the thread that owns the frame.
func (r *rig) svc(code uint8, args ...uint32) Disposition {
	r.t.Helper()
	copy(r.f.R[:], args)
	r.f.LR = arm.TrapLR(arm.TrapSVC, r.svcAddr(code))
	d := r.k.HandleTrap(arm.TrapSVC, r.f)
	r.check()
	return d
}

// input delivers b through the UART receive interrupt.
func (r *rig) input(b byte) Disposition {
	r.t.Helper()
	r.uart.Feed([]byte{b})
	r.uart.Poll()
	d := r.k.HandleTrap(arm.TrapIRQ, r.f)
	r.check()
	return d
}

func (r *rig) check() {
	r.t.Helper()
	if !r.k.Halted() {
		assert.NoError(r.t, r.k.CheckInvariants())
	}
}

// running returns the entry address the frame resumes at, which identifies
// freshly created threads.
func (r *rig) running() uint32 { return r.f.LR }

// scratch returns a user address in the current thread's stack below its SP.
func (r *rig) scratch() uint32 { return r.f.USP - 16 }

func (r *rig) readUser(table int, virt, n uint32) []byte {
	r.t.Helper()
	b, fault := r.mm.CopyFromUser(table, virt, n)
	assert.Nil(r.t, fault)
	return b
}
