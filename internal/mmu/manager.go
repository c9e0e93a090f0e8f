package mmu

import (
	"fmt"
	"io"

	kerrors "github.com/practos/practos/internal/errors"
)

// MaxTables is the size of the second-level table pool, one per process.
const MaxTables = 32

// NoTable marks a TCB that holds no table.
const NoTable = -1

// SecondLevel is one process's page table for the user RAM window.
type SecondLevel [L2Entries]uint32

// ============================================================================
// Cache and TLB maintenance
// ============================================================================

// MaintenanceOp is one barrier or invalidate operation.
type MaintenanceOp int

const (
	OpDSB MaintenanceOp = iota
	OpISB
	OpTLBIALLIS
	OpITLBIALL
	OpDTLBIALL
	OpTLBIALL
)

var opNames = [...]string{"DSB", "ISB", "TLBIALLIS", "ITLBIALL", "DTLBIALL", "TLBIALL"}

func (o MaintenanceOp) String() string { return opNames[o] }

// SwitchSequence is issued after the user window is pointed at another table.
var SwitchSequence = []MaintenanceOp{OpDSB, OpTLBIALLIS, OpITLBIALL, OpDTLBIALL, OpTLBIALL, OpDSB, OpISB}

// Maintainer executes maintenance operations on the CPU.
type Maintainer interface {
	Maintain(op MaintenanceOp)
}

type nopMaintainer struct{}

func (nopMaintainer) Maintain(MaintenanceOp) {}

// ============================================================================
// Address-space manager
// ============================================================================

// Manager owns the L1 table, the second-level table pool and their
// reference counts. It is not safe for concurrent use; the kernel only
// calls it from trap context.
type Manager struct {
	layout Layout
	mem    *Memory
	l1     *FirstLevel
	maint  Maintainer

	tables [MaxTables]SecondLevel
	refs   [MaxTables]uint32
	active int

	activations int
}

// NewManager builds the static L1 map. maint may be nil.
func NewManager(l Layout, mem *Memory, maint Maintainer) *Manager {
	if maint == nil {
		maint = nopMaintainer{}
	}
	return &Manager{
		layout: l,
		mem:    mem,
		l1:     NewFirstLevel(l),
		maint:  maint,
		active: NoTable,
	}
}

// Layout returns the static memory map.
func (m *Manager) Layout() Layout { return m.layout }

// Memory returns physical memory.
func (m *Manager) Memory() *Memory { return m.mem }

// FirstLevel returns the L1 table.
func (m *Manager) FirstLevel() *FirstLevel { return m.l1 }

// Acquire takes a free table for a new process: its reference count becomes
// one, every entry starts as a guard page and the globals image is copied
// into the process window and mapped.
func (m *Manager) Acquire() (int, error) {
	for i := range m.refs {
		if m.refs[i] != 0 {
			continue
		}
		m.refs[i] = 1
		m.tables[i] = SecondLevel{}
		m.copyGlobals(i)
		return i, nil
	}
	return NoTable, kerrors.NoFreeTable(MaxTables)
}

func (m *Manager) copyGlobals(i int) {
	size := m.layout.GlobalsSize
	buf := make([]byte, size)
	m.mem.Read(m.layout.GlobalsPhys, buf)
	dest := m.RAMStart(i)
	m.mem.Write(dest, buf)

	for p := 0; p < m.layout.GlobalsPages(); p++ {
		m.tables[i][p] = Page(dest+uint32(p)*PageSize, FullAccess, true)
	}
}

// Share adds a reference to table i for a thread joining its process.
func (m *Manager) Share(i int) {
	m.refs[i]++
}

// Release drops one reference. The table and its window are cleared when
// the last reference goes.
func (m *Manager) Release(i int) error {
	if i < 0 || i >= MaxTables || m.refs[i] == 0 {
		return kerrors.InvariantViolated("release of unreferenced L2 table %d", i)
	}
	m.refs[i]--
	if m.refs[i] == 0 {
		m.tables[i] = SecondLevel{}
		m.mem.Zero(m.RAMStart(i), SectionSize)
		if i == m.active {
			m.l1.Set(m.layout.UserRAM, Section(m.layout.UserRAM, NoAccess, true, true))
			m.active = NoTable
			m.flush()
		}
	}
	return nil
}

// RefCount returns the number of threads using table i.
func (m *Manager) RefCount(i int) uint32 { return m.refs[i] }

// Table returns a copy of table i.
func (m *Manager) Table(i int) SecondLevel { return m.tables[i] }

// RAMStart is the physical base of table i's window.
func (m *Manager) RAMStart(i int) uint32 {
	return m.layout.PhysUserRAM + uint32(i)*SectionSize
}

// VirtToPhys translates a user window address of process i to physical.
func (m *Manager) VirtToPhys(i int, virt uint32) uint32 {
	return m.RAMStart(i) - m.layout.UserRAM + virt
}

// PhysToVirt translates a physical address in process i's window to the user view.
func (m *Manager) PhysToVirt(i int, phys uint32) uint32 {
	return phys - m.RAMStart(i) + m.layout.UserRAM
}

// AllocStack reserves a stack page in table i. Only odd slots are used, so
// every stack has a guard page below it, and the scan stops above the
// globals. It returns the slot and the physical top of the stack.
func (m *Manager) AllocStack(i int) (int, uint32, error) {
	blocked := m.layout.GlobalsPages()
	t := &m.tables[i]
	for slot := L2Entries - 1; slot > blocked; slot -= 2 {
		if t[slot] != Guard {
			continue
		}
		top := m.RAMStart(i) + uint32(slot+1)*PageSize
		t[slot] = Page(top-1, FullAccess, true)
		return slot, top, nil
	}
	return -1, 0, kerrors.NoFreeStack(i)
}

// FreeStack turns a stack slot back into a guard page and clears it.
func (m *Manager) FreeStack(i, slot int) {
	if slot < 0 {
		return
	}
	m.tables[i][slot] = Guard
	m.mem.Zero(m.RAMStart(i)+uint32(slot)*PageSize, PageSize)
	if i == m.active {
		m.flush()
	}
}

// Active returns the table currently installed in the L1, or NoTable.
func (m *Manager) Active() int { return m.active }

// Activations counts table switches, for tests and statistics.
func (m *Manager) Activations() int { return m.activations }

// Activate points the user RAM window at table i and runs the TLB
// maintenance sequence. Nothing happens if i is already active.
func (m *Manager) Activate(i int) bool {
	if i == m.active {
		return false
	}
	m.l1.Set(m.layout.UserRAM, PageTableRef(m.tablePhys(i), true))
	m.flush()
	m.active = i
	m.activations++
	return true
}

func (m *Manager) flush() {
	for _, op := range SwitchSequence {
		m.maint.Maintain(op)
	}
}

func (m *Manager) tablePhys(i int) uint32 {
	return m.layout.L2Base + uint32(i)*L2TableBytes
}

func (m *Manager) tableAt(phys uint32) (int, bool) {
	if phys < m.layout.L2Base {
		return 0, false
	}
	i := int((phys - m.layout.L2Base) / L2TableBytes)
	return i, i < MaxTables
}

// Dump prints table i the way the boot console does, one entry per line.
func (m *Manager) Dump(w io.Writer, i int) {
	fmt.Fprintf(w, "#### Table at %#08x (L2 %d, refs %d) ####\n", m.tablePhys(i), i, m.refs[i])
	for n, d := range m.tables[i] {
		fmt.Fprintf(w, "%4x\t %08x\n", n, d)
	}
	fmt.Fprintln(w, "#################################")
}
