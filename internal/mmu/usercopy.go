package mmu

import "github.com/practos/practos/internal/arm"

// Translate resolves a user address of process i with user permissions.
// Addresses in the user RAM window go through table i whether or not it is
// active; everything else goes through the static L1 sections.
func (m *Manager) Translate(i int, virt uint32, kind AccessKind) (uint32, *Fault) {
	if !inRange(virt, m.layout.UserRAM, m.layout.UserRAMEnd()) {
		return m.Walk(virt, kind, true)
	}
	pd := m.tables[i][L2Index(virt)]
	if !isSmallPage(pd) {
		return 0, &Fault{Status: arm.StatusTranslationPage, Addr: virt, Write: kind == Write}
	}
	if !pageAccess(pd).Permits(true, kind == Write) || kind == Execute && pd&(1<<l2PageXN) != 0 {
		return 0, &Fault{Status: arm.StatusPermissionPage, Addr: virt, Write: kind == Write}
	}
	return pd&smallPageMask | virt&(PageSize-1), nil
}

// CopyFromUser reads n bytes at virt in process i.
func (m *Manager) CopyFromUser(i int, virt, n uint32) ([]byte, *Fault) {
	out := make([]byte, n)
	for off := uint32(0); off < n; {
		phys, f := m.Translate(i, virt+off, Read)
		if f != nil {
			return nil, f
		}
		chunk := min(PageSize-(phys&(PageSize-1)), n-off)
		m.mem.Read(phys, out[off:off+chunk])
		off += chunk
	}
	return out, nil
}

// CopyToUser writes data at virt in process i.
func (m *Manager) CopyToUser(i int, virt uint32, data []byte) *Fault {
	n := uint32(len(data))
	for off := uint32(0); off < n; {
		phys, f := m.Translate(i, virt+off, Write)
		if f != nil {
			return f
		}
		chunk := min(PageSize-(phys&(PageSize-1)), n-off)
		m.mem.Write(phys, data[off:off+chunk])
		off += chunk
	}
	return nil
}
