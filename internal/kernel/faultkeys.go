package kernel

import (
	"github.com/practos/practos/internal/arm"
	"github.com/practos/practos/internal/mmu"
)

// uartHandlerOffset is where the UART interrupt handler sits in kernel text.
const uartHandlerOffset = 0x2000

// faultKey performs the memory access bound to key b from the UART
// interrupt handler:
//
//	N  read address 0
//	P  jump to address 0
//	C  write to kernel text
//	U  read just below user RAM
//	X  jump into user text
//
// An access the MMU refuses raises an abort from IRQ mode, which halts the
// system. faulted is false when b is not a fault key or the access succeeded.
func (k *Kernel) faultKey(b byte, f *arm.Frame) (d Disposition, faulted bool) {
	l := k.mm.Layout()
	var (
		kind   arm.TrapKind
		addr   uint32
		access mmu.AccessKind
	)
	switch b {
	case 'N':
		kind, addr, access = arm.TrapDataAbort, 0, mmu.Read
	case 'P':
		kind, addr, access = arm.TrapPrefetchAbort, 0, mmu.Execute
	case 'C':
		kind, addr, access = arm.TrapDataAbort, l.KernelTextStart, mmu.Write
	case 'U':
		kind, addr, access = arm.TrapDataAbort, l.UserRAM-8, mmu.Read
	case 'X':
		kind, addr, access = arm.TrapPrefetchAbort, l.UserTextStart, mmu.Execute
	default:
		return Resumed, false
	}

	_, fault := k.mm.Walk(addr, access, false)
	if fault == nil {
		k.log.Debug("fault key %q: access to %#08x permitted", b, addr)
		return Resumed, false
	}

	pc := l.KernelTextStart + uartHandlerOffset
	if kind == arm.TrapPrefetchAbort {
		pc = addr
	}
	abort := *f
	abort.LR = arm.TrapLR(kind, pc)
	abort.SPSR = uint32(arm.ModeIRQ) | 1<<arm.BitI
	k.cpu.RecordFault(kind, fault.FSR(), fault.Addr)
	return k.HandleTrap(kind, &abort), true
}
