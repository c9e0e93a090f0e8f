package machine

import (
	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/mmu"
)

// Exception stack tops in kernel RAM, one per privileged mode.
var stackTops = map[arm.Mode]uint32{
	arm.ModeSVC: 0x00300000,
	arm.ModeIRQ: 0x002F0000,
	arm.ModeFIQ: 0x002E0000,
	arm.ModeABT: 0x002D0000,
	arm.ModeUND: 0x002C0000,
}

var trapModes = [...]arm.Mode{
	arm.TrapReset:         arm.ModeSVC,
	arm.TrapUndefined:     arm.ModeUND,
	arm.TrapSVC:           arm.ModeSVC,
	arm.TrapPrefetchAbort: arm.ModeABT,
	arm.TrapDataAbort:     arm.ModeABT,
	arm.TrapUnused:        arm.ModeSVC,
	arm.TrapIRQ:           arm.ModeIRQ,
	arm.TrapFIQ:           arm.ModeFIQ,
}

// cpuState is the processor state outside the trap frame: the mode the
// CPU runs in, the banked registers of the exception modes and the fault
// status registers.
type cpuState struct {
	cpsr   uint32
	banked map[arm.Mode]arm.ModeRegisters
	status [arm.TrapFIQ + 1]uint32
	addr   [arm.TrapFIQ + 1]uint32
}

func (c *cpuState) reset() {
	c.cpsr = uint32(arm.ModeSVC) | 1<<arm.BitI | 1<<arm.BitF
	c.banked = make(map[arm.Mode]arm.ModeRegisters, len(stackTops))
	for mode, sp := range stackTops {
		c.banked[mode] = arm.ModeRegisters{SP: sp, SPSR: arm.UserPSR}
	}
}

// enter switches to the exception mode of kind, banking the return address
// and the interrupted status word.
func (c *cpuState) enter(kind arm.TrapKind, f *arm.Frame) {
	mode := arm.ModeSVC
	if kind >= 0 && int(kind) < len(trapModes) {
		mode = trapModes[kind]
	}
	r := c.banked[mode]
	r.LR, r.SPSR = f.LR, f.SPSR
	c.banked[mode] = r
	c.cpsr = uint32(mode) | 1<<arm.BitI
}

// leave returns to user mode.
func (c *cpuState) leave() {
	c.cpsr = arm.UserPSR
}

// CPSR returns the status word of the mode the CPU is in.
func (m *Machine) CPSR() uint32 { return m.cpu.cpsr }

// Banked returns the registers of mode. The user registers come from the
// trap frame.
func (m *Machine) Banked(mode arm.Mode) arm.ModeRegisters {
	if mode == arm.ModeUSR || mode == arm.ModeSYS {
		return arm.ModeRegisters{SP: m.frame.USP, LR: m.frame.ULR, SPSR: arm.NoSPSR}
	}
	return m.cpu.banked[mode]
}

// FaultRegisters returns the latched DFSR/DFAR or IFSR/IFAR.
func (m *Machine) FaultRegisters(k arm.TrapKind) (uint32, uint32) {
	return m.cpu.status[k], m.cpu.addr[k]
}

// RecordFault latches a fault status and address.
func (m *Machine) RecordFault(k arm.TrapKind, status, addr uint32) {
	m.cpu.status[k], m.cpu.addr[k] = status, addr
}

// ============================================================================
// Translation lookaside buffer
// ============================================================================

type tlbKey struct {
	page uint32
	kind mmu.AccessKind
}

// Maintain executes a barrier or TLB operation. Every invalidate empties
// the whole TLB.
func (m *Machine) Maintain(op mmu.MaintenanceOp) {
	switch op {
	case mmu.OpTLBIALL, mmu.OpTLBIALLIS, mmu.OpITLBIALL, mmu.OpDTLBIALL:
		if len(m.tlb) > 0 {
			clear(m.tlb)
		}
		if op == mmu.OpTLBIALL {
			m.counts.TLBFlushes++
		}
	}
}

// translate resolves a user access through the TLB, walking the tables on
// a miss. Only successful walks are cached. The caller holds mu.
func (m *Machine) translate(virt uint32, kind mmu.AccessKind) (uint32, *mmu.Fault) {
	key := tlbKey{page: virt &^ (mmu.PageSize - 1), kind: kind}
	if phys, ok := m.tlb[key]; ok {
		m.counts.TLBHits++
		return phys | virt&(mmu.PageSize-1), nil
	}
	m.counts.TLBMisses++
	phys, fault := m.mm.Walk(virt, kind, true)
	if fault != nil {
		return 0, fault
	}
	m.tlb[key] = phys &^ (mmu.PageSize - 1)
	return phys, nil
}
