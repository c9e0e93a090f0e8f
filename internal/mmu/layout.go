package mmu

// Layout describes the static memory map of the board. All region bounds are
// section aligned; End values are inclusive.
type Layout struct {
	KernelTextStart uint32
	KernelTextEnd   uint32
	KernelRAMStart  uint32
	KernelRAMEnd    uint32

	// L2Base is the physical address of the second-level table pool.
	L2Base uint32

	UserTextStart uint32
	UserTextEnd   uint32

	// UserRAM is the virtual window every process sees its memory through.
	UserRAM uint32

	// GlobalsPhys holds the golden image of the initial user globals.
	// GlobalsAlias is the kernel's read-only view of it.
	GlobalsPhys  uint32
	GlobalsAlias uint32
	GlobalsSize  uint32

	// PhysUserRAM is where the per-process windows live, one section each.
	PhysUserRAM uint32

	Peripherals []uint32
}

// Board peripheral bases.
const (
	TimerBase = 0x3F003000
	IntCBase  = 0x3F00B000
	UARTBase  = 0x3F201000
)

// DefaultLayout is the map of the simulated board. Section 0 stays unmapped
// so that null accesses fault.
func DefaultLayout() Layout {
	return Layout{
		KernelTextStart: 0x00100000,
		KernelTextEnd:   0x001FFFFF,
		KernelRAMStart:  0x00200000,
		KernelRAMEnd:    0x004FFFFF,
		L2Base:          0x00400000,
		UserTextStart:   0x00500000,
		UserTextEnd:     0x005FFFFF,
		UserRAM:         0x00600000,
		GlobalsPhys:     0x00600000,
		GlobalsAlias:    0x00700000,
		GlobalsSize:     0x1800,
		PhysUserRAM:     0x00800000,
		Peripherals:     []uint32{TimerBase, IntCBase, UARTBase},
	}
}

// PhysUserRAMEnd is the last byte of the per-process windows.
func (l Layout) PhysUserRAMEnd() uint32 {
	return l.PhysUserRAM + MaxTables*SectionSize - 1
}

// GlobalsPages is the number of pages the globals image occupies at the
// bottom of every process window.
func (l Layout) GlobalsPages() int {
	return int((l.GlobalsSize + PageSize - 1) / PageSize)
}

// UserRAMEnd is the last byte of the virtual user window.
func (l Layout) UserRAMEnd() uint32 {
	return l.UserRAM + SectionSize - 1
}

func inRange(addr, start, end uint32) bool {
	return addr >= start && addr <= end
}
