// Package arm models the parts of the ARMv7-A processor the kernel reasons
// about: program status words, trap kinds, saved register frames and fault
// status decoding.
package arm

import "strings"

// ============================================================================
// Program status register
// ============================================================================

// Mode is the 5-bit processor mode field of a PSR.
type Mode uint32

const (
	ModeUSR Mode = 0x10
	ModeFIQ Mode = 0x11
	ModeIRQ Mode = 0x12
	ModeSVC Mode = 0x13
	ModeABT Mode = 0x17
	ModeUND Mode = 0x1B
	ModeSYS Mode = 0x1F

	// ModeMask selects the mode bits of a status word.
	ModeMask uint32 = 0x1F
)

// PSR flag bit positions.
const (
	BitN = 31
	BitZ = 30
	BitC = 29
	BitV = 28
	BitE = 9
	BitI = 7
	BitF = 6
	BitT = 5
)

// NoSPSR marks the SPSR slot of a mode that has none (user/system).
const NoSPSR uint32 = 0xDEADDA7A

// UserPSR is the status word a freshly created thread starts with.
const UserPSR = uint32(ModeUSR)

// ModeOf extracts the mode field from a status word.
func ModeOf(psr uint32) Mode {
	return Mode(psr & ModeMask)
}

// Name returns the diagnostic name of a mode. System mode shares the user
// register bank and is reported as such.
func (m Mode) Name() string {
	switch m {
	case ModeUSR, ModeSYS:
		return "User/System"
	case ModeFIQ:
		return "FIQ"
	case ModeIRQ:
		return "IRQ"
	case ModeSVC:
		return "Supervisor"
	case ModeUND:
		return "Undefined"
	case ModeABT:
		return "Abort"
	default:
		return ""
	}
}

func (m Mode) String() string {
	if n := m.Name(); n != "" {
		return n
	}
	return "Invalid"
}

// BankedModes lists the register banks in the order the fault dump prints them.
var BankedModes = []Mode{ModeUSR, ModeSVC, ModeABT, ModeFIQ, ModeIRQ, ModeUND}

// Flags renders the condition and control flags of psr as "NCZV E IFT",
// replacing clear flags with '_'.
func Flags(psr uint32) string {
	const letters = "NCZV E IFT"
	bits := [...]int{BitN, BitC, BitZ, BitV, -1, BitE, -1, BitI, BitF, BitT}
	var b strings.Builder
	for i, bit := range bits {
		switch {
		case bit < 0:
			b.WriteByte(' ')
		case psr&(1<<uint(bit)) != 0:
			b.WriteByte(letters[i])
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Privilege classifies the context a trap was taken from.
type Privilege int

const (
	Unprivileged Privilege = iota
	Privileged
)

func (p Privilege) String() string {
	if p == Privileged {
		return "privileged"
	}
	return "unprivileged"
}

// ClassifyTrapContext reports whether the saved status word of a trap belongs
// to user mode. Every other mode, system mode included, is privileged.
func ClassifyTrapContext(spsr uint32) Privilege {
	if ModeOf(spsr) == ModeUSR {
		return Unprivileged
	}
	return Privileged
}
