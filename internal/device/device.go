// Package device declares the hardware collaborators the kernel drives.
// Register-level implementations for the simulated board live in
// device/sim; gomock doubles live in device/mock_device.
package device

//go:generate mockgen -destination=mock_device/mock_device.go -package=mock_device github.com/practos/practos/internal/device Clock,Timer,InterruptController,UART,CPU

import "github.com/practos/practos/internal/arm"

// Interrupt lines of the board.
const (
	IRQTimerBase = 0
	NumTimers    = 4
	IRQUART      = 57

	// SchedulerTimer is the timer channel that drives preemption.
	SchedulerTimer = 3
)

// Clock is a monotonic microsecond counter.
type Clock interface {
	Now() uint64
}

// Timer is a free-running system timer with compare channels.
type Timer interface {
	// Counter returns the 64-bit microsecond counter split in two words.
	Counter() (hi, lo uint32)
	// Arm fires channel ch after delta microseconds and re-enables its line.
	Arm(ch int, delta uint32)
	// Matched returns the lowest channel whose match flag is set.
	Matched() (int, bool)
	// Ack clears the match flag of ch and advances its compare value by the
	// interval it was last armed with.
	Ack(ch int)
}

// InterruptController masks and reports interrupt lines.
type InterruptController interface {
	Enable(line uint32, basic bool)
	Disable(line uint32, basic bool)
	// Pending returns the pending bits of lines 0-31 and 32-63.
	Pending() [2]uint32
}

// UART is the serial port together with its input ring buffer.
type UART interface {
	// Receive reads the data register. ok is false when no byte arrived.
	Receive() (b byte, ok bool)
	// Buffer stores b in the input ring. It reports false when the ring is
	// full and the byte was dropped.
	Buffer(b byte) bool
	// Available reports whether the ring holds a byte.
	Available() bool
	// Next pops the oldest buffered byte.
	Next() (b byte, ok bool)
	// Transmit sends b.
	Transmit(b byte)
}

// CPU exposes the processor state the fault diagnostics print.
type CPU interface {
	// CPSR is the status word of the mode the trap handler runs in.
	CPSR() uint32
	// Banked returns the SP, LR and SPSR of a mode.
	Banked(mode arm.Mode) arm.ModeRegisters
	// FaultRegisters returns the fault status and address of the last abort of kind k.
	FaultRegisters(k arm.TrapKind) (status, addr uint32)
	// RecordFault latches a fault status and address, as the MMU does on an abort.
	RecordFault(k arm.TrapKind, status, addr uint32)
}

// Line splits an interrupt number into its pending word and bit.
func Line(line uint32) (word int, bit uint32) {
	return int(line / 32), line % 32
}
