// Package mmu builds ARMv7 short-descriptor page tables and manages the
// per-process second-level tables the kernel hands out.
package mmu

// ============================================================================
// Descriptor encoding
// ============================================================================

// Access is the 3-bit AP[2:0] access permission field.
type Access uint32

const (
	NoAccess     Access = 0
	SysOnly      Access = 1
	ReadOnly     Access = 2 // privileged may write
	FullAccess   Access = 3
	SysReadOnly  Access = 5
	BothReadOnly Access = 7
)

var accessNames = map[Access]string{
	NoAccess:     "none",
	SysOnly:      "sys",
	ReadOnly:     "ro",
	FullAccess:   "rw",
	SysReadOnly:  "sys-ro",
	BothReadOnly: "both-ro",
}

func (a Access) String() string {
	if n, ok := accessNames[a]; ok {
		return n
	}
	return "reserved"
}

// Permits reports whether an access of the given privilege and direction is allowed.
func (a Access) Permits(user, write bool) bool {
	switch a {
	case SysOnly:
		return !user
	case ReadOnly:
		return !user || !write
	case FullAccess:
		return true
	case SysReadOnly:
		return !user && !write
	case BothReadOnly, 6:
		return !write
	default:
		return false
	}
}

// Descriptor field layout.
const (
	sectionShift   = 20
	pageShift      = 12
	sectionMask    = 0xFFF00000
	tableMask      = 0xFFFFFC00
	smallPageMask  = 0xFFFFF000
	l1APLowShift   = 10
	l1APHighShift  = 15
	l2APLowShift   = 4
	l2APHighShift  = 9
	l1SectionXN    = 4
	l1SectionPXN   = 0
	l1TablePXN     = 2
	l2PageXN       = 0
	l1TypeMask     = 0x3
	l1TypeFault    = 0
	l1TypeTable    = 1
	l1TypeSection  = 2
	l2SmallPageBit = 1
)

// Table geometry.
const (
	L1Entries    = 4096
	L2Entries    = 256
	SectionSize  = 1 << sectionShift
	PageSize     = 1 << pageShift
	// L2TableBytes is the size and alignment of one second-level table.
	L2TableBytes = L2Entries * 4
)

// Guard is the descriptor of an unmapped page.
const Guard uint32 = 0

// Section returns a first-level section descriptor mapping the 1MB section containing phys.
func Section(phys uint32, ap Access, xn, pxn bool) uint32 {
	d := uint32(l1TypeSection) | phys&sectionMask
	d |= uint32(ap&0b11) << l1APLowShift
	d |= uint32(ap>>2) << l1APHighShift
	d |= bit(xn) << l1SectionXN
	d |= bit(pxn) << l1SectionPXN
	return d
}

// PageTableRef returns a first-level descriptor pointing at the second-level table at phys.
func PageTableRef(phys uint32, pxn bool) uint32 {
	return uint32(l1TypeTable) | phys&tableMask | bit(pxn)<<l1TablePXN
}

// Page returns a second-level small page descriptor for the page containing phys.
func Page(phys uint32, ap Access, xn bool) uint32 {
	d := uint32(1<<l2SmallPageBit) | phys&smallPageMask
	d |= uint32(ap&0b11) << l2APLowShift
	d |= uint32(ap>>2) << l2APHighShift
	d |= bit(xn) << l2PageXN
	return d
}

func bit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// L1Index is the first-level slot covering virt.
func L1Index(virt uint32) uint32 { return virt >> sectionShift }

// L2Index is the second-level slot covering virt.
func L2Index(virt uint32) uint32 { return (virt >> pageShift) & (L2Entries - 1) }

// sectionAccess decodes AP[2:0] from a section descriptor.
func sectionAccess(d uint32) Access {
	return Access((d>>l1APLowShift)&0b11 | ((d>>l1APHighShift)&1)<<2)
}

// pageAccess decodes AP[2:0] from a small page descriptor.
func pageAccess(d uint32) Access {
	return Access((d>>l2APLowShift)&0b11 | ((d>>l2APHighShift)&1)<<2)
}

func isSmallPage(d uint32) bool { return d&(1<<l2SmallPageBit) != 0 }
