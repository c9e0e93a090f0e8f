package mmu

// FirstLevel is the singleton L1 translation table.
type FirstLevel struct {
	entries [L1Entries]uint32
}

// NewFirstLevel builds the kernel's static map: every section defaults to no
// access and execute-never, then the regions of l are opened up. The user RAM
// window stays unmapped until a process table is activated.
func NewFirstLevel(l Layout) *FirstLevel {
	f := &FirstLevel{}
	for i := uint32(0); i < L1Entries; i++ {
		virt := i << sectionShift
		phys := virt
		ap := NoAccess
		xn, pxn := true, true

		switch {
		case inRange(virt, l.KernelTextStart, l.KernelTextEnd):
			ap, xn, pxn = SysReadOnly, false, false
		case inRange(virt, l.KernelRAMStart, l.KernelRAMEnd):
			ap = SysOnly
		case inRange(virt, l.GlobalsAlias, l.GlobalsAlias+SectionSize-1):
			ap = SysReadOnly
			phys = l.GlobalsPhys
		case inRange(virt, l.PhysUserRAM, l.PhysUserRAMEnd()):
			ap = SysOnly
		case inRange(virt, l.UserTextStart, l.UserTextEnd):
			ap, xn = BothReadOnly, false
		case isPeripheral(l, virt):
			ap = SysOnly
		}
		f.entries[i] = Section(phys, ap, xn, pxn)
	}
	return f
}

func isPeripheral(l Layout, virt uint32) bool {
	for _, p := range l.Peripherals {
		if p&sectionMask == virt {
			return true
		}
	}
	return false
}

// Entry returns the descriptor covering virt.
func (f *FirstLevel) Entry(virt uint32) uint32 {
	return f.entries[L1Index(virt)]
}

// Set installs d as the descriptor covering virt.
func (f *FirstLevel) Set(virt, d uint32) {
	f.entries[L1Index(virt)] = d
}
