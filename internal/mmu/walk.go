package mmu

import "github.com/practos/practos/internal/arm"

// AccessKind is the type of memory access being translated.
type AccessKind int

const (
	Read AccessKind = iota
	Write
	Execute
)

// Fault describes a failed translation in fault-status-register terms.
type Fault struct {
	Status uint32
	Addr   uint32
	Write  bool
}

// FSR returns the DFSR/IFSR encoding of the fault.
func (f Fault) FSR() uint32 {
	s := f.Status & 0xF
	if f.Status&0x10 != 0 {
		s |= 1 << arm.FSRStatus4Bit
	}
	if f.Write {
		s |= 1 << arm.FSRWriteBit
	}
	return s
}

// Walk translates virt through the current L1 table and the active
// second-level table, checking permissions for the given privilege.
func (m *Manager) Walk(virt uint32, kind AccessKind, user bool) (uint32, *Fault) {
	write := kind == Write
	fault := func(status uint32) (uint32, *Fault) {
		return 0, &Fault{Status: status, Addr: virt, Write: write}
	}

	d := m.l1.Entry(virt)
	switch {
	case d&l1TypeSection != 0:
		// Bit 0 of a section is PXN, so 0b10 and 0b11 are both sections.
		if !sectionAccess(d).Permits(user, write) {
			return fault(arm.StatusPermissionSection)
		}
		if kind == Execute && (d&(1<<l1SectionXN) != 0 || !user && d&(1<<l1SectionPXN) != 0) {
			return fault(arm.StatusPermissionSection)
		}
		return d&sectionMask | virt&^sectionMask, nil

	case d&l1TypeMask == l1TypeTable:
		if kind == Execute && !user && d&(1<<l1TablePXN) != 0 {
			return fault(arm.StatusPermissionSection)
		}
		ti, ok := m.tableAt(d & tableMask)
		if !ok {
			return fault(arm.StatusTranslationSection)
		}
		pd := m.tables[ti][L2Index(virt)]
		if !isSmallPage(pd) {
			return fault(arm.StatusTranslationPage)
		}
		if !pageAccess(pd).Permits(user, write) {
			return fault(arm.StatusPermissionPage)
		}
		if kind == Execute && pd&(1<<l2PageXN) != 0 {
			return fault(arm.StatusPermissionPage)
		}
		return pd&smallPageMask | virt&(PageSize-1), nil

	default:
		return fault(arm.StatusTranslationSection)
	}
}
