package mmu

import "encoding/binary"

// Memory is sparse physical memory. Pages are materialised on first write
// and read as zero before that.
type Memory struct {
	pages map[uint32]*[PageSize]byte
}

// NewMemory returns empty physical memory.
func NewMemory() *Memory {
	return &Memory{pages: make(map[uint32]*[PageSize]byte)}
}

func (m *Memory) page(addr uint32, create bool) *[PageSize]byte {
	base := addr &^ (PageSize - 1)
	p := m.pages[base]
	if p == nil && create {
		p = new([PageSize]byte)
		m.pages[base] = p
	}
	return p
}

// Load8 reads one byte.
func (m *Memory) Load8(addr uint32) byte {
	if p := m.page(addr, false); p != nil {
		return p[addr&(PageSize-1)]
	}
	return 0
}

// Store8 writes one byte.
func (m *Memory) Store8(addr uint32, v byte) {
	m.page(addr, true)[addr&(PageSize-1)] = v
}

// Load32 reads a little-endian word.
func (m *Memory) Load32(addr uint32) uint32 {
	var b [4]byte
	m.Read(addr, b[:])
	return binary.LittleEndian.Uint32(b[:])
}

// Store32 writes a little-endian word.
func (m *Memory) Store32(addr uint32, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.Write(addr, b[:])
}

// Read fills dst from addr onwards.
func (m *Memory) Read(addr uint32, dst []byte) {
	for len(dst) > 0 {
		off := addr & (PageSize - 1)
		n := min(int(PageSize-off), len(dst))
		if p := m.page(addr, false); p != nil {
			copy(dst[:n], p[off:])
		} else {
			clear(dst[:n])
		}
		dst = dst[n:]
		addr += uint32(n)
	}
}

// Write copies src to addr onwards.
func (m *Memory) Write(addr uint32, src []byte) {
	for len(src) > 0 {
		off := addr & (PageSize - 1)
		n := copy(m.page(addr, true)[off:], src)
		src = src[n:]
		addr += uint32(n)
	}
}

// Zero clears n bytes from addr, dropping whole pages where possible.
func (m *Memory) Zero(addr, n uint32) {
	for n > 0 {
		off := addr & (PageSize - 1)
		chunk := min(PageSize-off, n)
		if off == 0 && chunk == PageSize {
			delete(m.pages, addr)
		} else if p := m.page(addr, false); p != nil {
			clear(p[off : off+chunk])
		}
		n -= chunk
		addr += chunk
	}
}
