package main

import "fmt"

// addr28 is a 28 bit physical address.
type addr28 uint32

const (
	chipRAMSize   = 384 << 10
	hyppoRAMSize  = 16 << 10
	colourRAMSize = 32 << 10
	ioSize        = 64 << 10

	hyppoBase  addr28 = 0xfff8000
	colourBase addr28 = 0xff80000
	ioBase     addr28 = 0xffd0000

	// unmappedValue is what the bus returns for reads outside every region.
	unmappedValue = 0xbd
)

// IO registers with write side effects.
const (
	ioDMATrigger   addr28 = 0xffd3700
	ioDMABank      addr28 = 0xffd3702
	ioDMATriggerE  addr28 = 0xffd3705
	ioHyperTrapLo  addr28 = 0xffd3640
	ioHyperTrapHi  addr28 = 0xffd367f
	dmaListLo             = 0x3700
	dmaListHi             = 0x3701
	dmaListBank           = 0x3702
	dmaListMB             = 0x3704
	dmaListLoMirror       = 0x3705
)

// region is a block of bytes together with the index of the instruction
// that last wrote each byte. Zero means never written.
type region struct {
	name  string
	base  addr28
	data  []byte
	blame []uint32
}

func newRegion(name string, base addr28, size int) region {
	return region{name: name, base: base, data: make([]byte, size), blame: make([]uint32, size)}
}

func (r *region) contains(a addr28) bool {
	return a >= r.base && a < r.base+addr28(len(r.data))
}

func (r *region) poke(a addr28, v byte, by uint32) {
	i := a - r.base
	r.data[i] = v
	r.blame[i] = by
}

func (r *region) clear() {
	for i := range r.data {
		r.data[i] = 0
		r.blame[i] = 0
	}
}

// Memory is the physical address space: chip RAM at the bottom, colour RAM,
// the IO window and hypervisor RAM near the top of the 28 bit space.
type Memory struct {
	hyppo  region
	chip   region
	colour region
	io     region
}

// NewMemory returns cleared memory.
func NewMemory() Memory {
	return Memory{
		hyppo:  newRegion("hypervisor RAM", hyppoBase, hyppoRAMSize),
		chip:   newRegion("chip RAM", 0, chipRAMSize),
		colour: newRegion("colour RAM", colourBase, colourRAMSize),
		io:     newRegion("IO", ioBase, ioSize),
	}
}

// regions lists the regions in dispatch priority order.
func (m *Memory) regions() [4]*region {
	return [4]*region{&m.hyppo, &m.chip, &m.colour, &m.io}
}

// lookup returns the region holding a, or nil.
func (m *Memory) lookup(a addr28) *region {
	for _, r := range m.regions() {
		if r.contains(a) {
			return r
		}
	}
	return nil
}

// read28 reads a physical address.
func (m *Memory) read28(a addr28) byte {
	if r := m.lookup(a); r != nil {
		return r.data[a-r.base]
	}
	return unmappedValue
}

// blame28 returns the index of the instruction that last wrote a.
func (m *Memory) blame28(a addr28) uint32 {
	if r := m.lookup(a); r != nil {
		return r.blame[a-r.base]
	}
	return 0
}

// poke28 stores v at a without any IO side effects.
func (m *Memory) poke28(a addr28, v byte, by uint32) error {
	r := m.lookup(a)
	if r == nil {
		return UnmappedWriteError{a}
	}
	r.poke(a, v, by)
	return nil
}

func (m *Memory) clear() {
	for _, r := range m.regions() {
		r.clear()
	}
}

// syncFrom copies the data bytes of src in [lo, hi] into m. Attribution is
// left alone: no instruction wrote those bytes.
func (m *Memory) syncFrom(src *Memory, lo, hi addr28) {
	dst, from := m.regions(), src.regions()
	for i, r := range dst {
		s := from[i]
		start, end := r.base, r.base+addr28(len(r.data))-1
		if lo > start {
			start = lo
		}
		if hi < end {
			end = hi
		}
		if start > end {
			continue
		}
		copy(r.data[start-r.base:end-r.base+1], s.data[start-r.base:end-r.base+1])
	}
}

// write28 writes a physical address on behalf of the current instruction.
// Writes to the IO window may start a DMA job.
func (m *Machine) write28(a addr28, v byte) error {
	r := m.mem.lookup(a)
	if r == nil {
		err := UnmappedWriteError{a}
		m.logf("ERROR: %v\n", err)
		return err
	}
	r.poke(a, v, m.seq)
	if r != &m.mem.io {
		return nil
	}
	return m.ioWrite(a, v)
}

func (m *Machine) ioWrite(a addr28, v byte) error {
	io := &m.mem.io
	var err error
	switch a {
	case ioDMATrigger:
		if m.Term.LogDMA {
			m.logf("NOTE: DMA triggered via write to $%07x at instruction #%d\n", uint32(a), m.seq)
		}
		io.poke(ioBase+dmaListLoMirror, v, m.seq)
		err = m.dispatchDMA(m.dmaListAddr(), false)
	case ioDMABank:
		b := io.data[dmaListMB]&0xf1 | (v>>4)&7
		io.poke(ioBase+dmaListMB, b, m.seq)
	case ioDMATriggerE:
		if m.Term.LogDMA {
			m.logf("NOTE: DMA triggered via write to $%07x at instruction #%d\n", uint32(a), m.seq)
		}
		io.poke(ioBase+dmaListLo, v, m.seq)
		err = m.dispatchDMA(m.dmaListAddr(), true)
	}

	if !m.Regs.InHyper {
		if a >= ioHyperTrapLo && a <= ioHyperTrapHi {
			m.logf("NOTE: CPU Entered Hypervisor via write to $%07x at instruction #%d\n", uint32(a), m.seq)
		}
	} else if a == ioHyperTrapHi {
		m.logf("NOTE: CPU Exited Hypervisor via write to $%07x at instruction #%d\n", uint32(a), m.seq)
	}
	return err
}

// dmaListAddr assembles the DMA list address from the DMA registers.
func (m *Machine) dmaListAddr() addr28 {
	d := m.mem.io.data
	return addr28(uint32(d[dmaListLo])|uint32(d[dmaListHi])<<8|uint32(d[dmaListBank]&0x7f)<<16) |
		addr28(d[dmaListMB])<<20
}

// read16 reads a CPU address through the translator.
func (m *Machine) read16(a uint32) (byte, error) {
	pa, err := m.decode(a, false)
	if err != nil {
		return 0, err
	}
	return m.mem.read28(pa), nil
}

// write16 writes a CPU address through the translator.
func (m *Machine) write16(a uint32, v byte) error {
	pa, err := m.decode(a, true)
	if err != nil {
		return err
	}
	if err := m.write28(pa, v); err != nil {
		return fmt.Errorf("memory write failed to %s: %w", m.Symbols.Describe(pa), err)
	}
	return nil
}

// blame16 returns the instruction that last wrote the byte visible at CPU
// address a.
func (m *Machine) blame16(a uint32) uint32 {
	pa, err := m.decode(a, false)
	if err != nil {
		return 0
	}
	return m.mem.blame28(pa)
}
