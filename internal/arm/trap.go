package arm

import "fmt"

// ============================================================================
// Traps and register frames
// ============================================================================

// TrapKind identifies an exception vector.
type TrapKind int

const (
	TrapReset TrapKind = iota
	TrapUndefined
	TrapSVC
	TrapPrefetchAbort
	TrapDataAbort
	TrapUnused
	TrapIRQ
	TrapFIQ
)

var trapNames = [...]string{
	TrapReset:         "Reset",
	TrapUndefined:     "Undefined instruction",
	TrapSVC:           "Software interrupt",
	TrapPrefetchAbort: "Prefetch Abort",
	TrapDataAbort:     "Data Abort",
	TrapUnused:        "Unused",
	TrapIRQ:           "IRQ",
	TrapFIQ:           "FIQ",
}

func (k TrapKind) String() string {
	if k < 0 || int(k) >= len(trapNames) {
		return fmt.Sprintf("TrapKind(%d)", int(k))
	}
	return trapNames[k]
}

// lrAdjust holds the offset the hardware adds to the trapping instruction's
// address when it fills LR, and the correction applied when reporting it.
type lrAdjust struct{ offset, correction uint32 }

var lrAdjustments = [...]lrAdjust{
	TrapUndefined:     {4, 0},
	TrapSVC:           {4, 0},
	TrapPrefetchAbort: {4, 0},
	TrapDataAbort:     {8, 4},
	TrapIRQ:           {8, 4},
	TrapFIQ:           {8, 4},
}

func adjustment(k TrapKind) lrAdjust {
	if k < 0 || int(k) >= len(lrAdjustments) {
		return lrAdjust{}
	}
	return lrAdjustments[k]
}

// FaultPC computes the reported fault address from the exception link register.
func FaultPC(k TrapKind, lr uint32) uint32 {
	a := adjustment(k)
	return lr - a.offset + a.correction
}

// TrapLR is the link register value the hardware produces when an
// instruction at pc raises a trap of kind k.
func TrapLR(k TrapKind, pc uint32) uint32 {
	return pc + adjustment(k).offset
}

// NumRegisters is the number of general purpose registers saved in a frame (r0-r12).
const NumRegisters = 13

// Frame is the register state pushed by the trap entry code. LR is the
// address execution returns to; writing it redirects the return. USP and
// ULR are the banked user stack pointer and link register.
type Frame struct {
	R    [NumRegisters]uint32
	LR   uint32
	SPSR uint32
	USP  uint32
	ULR  uint32
}

// Context is the saved user context of a thread.
type Context struct {
	SP   uint32
	CPSR uint32
	PC   uint32
	R    [NumRegisters]uint32
	LR   uint32
}

// ModeRegisters is the banked state of one processor mode.
type ModeRegisters struct {
	SP   uint32
	LR   uint32
	SPSR uint32
}

// StackAlign is the stack pointer alignment required by the procedure call standard.
const StackAlign = 8

// AlignSP rounds sp down to StackAlign.
func AlignSP(sp uint32) uint32 {
	return sp &^ (StackAlign - 1)
}

// EncodeSVC returns the ARM encoding of "svc #n" with condition AL.
func EncodeSVC(n uint8) uint32 {
	return 0xEF000000 | uint32(n)
}

// SVCNumber extracts the syscall code from an SVC instruction word. Only the
// low byte is interpreted.
func SVCNumber(insn uint32) uint8 {
	return uint8(insn & 0xFF)
}

// BranchSelf is the encoding of "b ." used for the idle loop.
const BranchSelf uint32 = 0xEAFFFFFE
