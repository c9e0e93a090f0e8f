package kernel

import (
	"fmt"
	"io"
	"strings"

	"github.com/practos/practos/internal/arm"
)

const modeNameWidth = 12

// report prints the exception header, the fault details for aborts and
// the register dump for a trap of kind taken with f.
func (k *Kernel) report(kind arm.TrapKind, f *arm.Frame) {
	w := k.console
	pc := arm.FaultPC(kind, f.LR)
	fmt.Fprintln(w, strings.Repeat("#", 40))
	fmt.Fprintf(w, "%s at address 0x%08x\n", kind, pc)

	switch kind {
	case arm.TrapDataAbort:
		status, addr := k.cpu.FaultRegisters(kind)
		access := "read"
		if arm.IsWrite(status) {
			access = "write"
		}
		fmt.Fprintf(w, "Access: %s at address 0x%08x\n", access, addr)
		for _, c := range arm.DataFaultCauses(status) {
			fmt.Fprintf(w, "Cause: %s\n", c)
		}
	case arm.TrapPrefetchAbort:
		status, addr := k.cpu.FaultRegisters(kind)
		fmt.Fprintf(w, "Access: fault at address 0x%08x\n", addr)
		for _, c := range arm.InstructionFaultCauses(status) {
			fmt.Fprintf(w, "Cause: %s\n", c)
		}
	}

	k.dumpRegisters(w, f)
}

func (k *Kernel) dumpRegisters(w io.Writer, f *arm.Frame) {
	reg := func(i int) string {
		switch {
		case i < arm.NumRegisters:
			return fmt.Sprintf("R%d: 0x%08x", i, f.R[i])
		case i == 13:
			return fmt.Sprintf("SP: 0x%08x", f.USP)
		case i == 14:
			return fmt.Sprintf("LR: 0x%08x", f.ULR)
		default:
			return fmt.Sprintf("PC: 0x%08x", f.LR)
		}
	}

	fmt.Fprintln(w, "\n>>> Register snapshot (current mode) <<<")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(w, "%-15s    %s\n", reg(i), reg(i+8))
	}

	cpsr := k.cpu.CPSR()
	fmt.Fprintln(w, "\n>>> Status registers (SPSR of current mode) <<<")
	fmt.Fprintf(w, "CPSR: %s %s   (0x%08x)\n", arm.Flags(cpsr), arm.ModeOf(cpsr).Name(), cpsr)
	fmt.Fprintf(w, "SPSR: %s %s   (0x%08x)\n", arm.Flags(f.SPSR), arm.ModeOf(f.SPSR).Name(), f.SPSR)

	fmt.Fprintln(w, "\n>>> Mode specific registers <<<")
	fmt.Fprintln(w, "             LR         SP         SPSR")
	for _, m := range arm.BankedModes {
		r := k.cpu.Banked(m)
		fmt.Fprintf(w, "%-*s 0x%08x 0x%08x", modeNameWidth+1, m.Name()+":", r.LR, r.SP)
		if r.SPSR != arm.NoSPSR {
			fmt.Fprintf(w, " %s %-*s (0x%08x)", arm.Flags(r.SPSR), modeNameWidth, arm.ModeOf(r.SPSR).Name(), r.SPSR)
		}
		fmt.Fprintln(w)
	}
}
