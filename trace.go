package main

import (
	"fmt"
	"io"
)

const (
	maxTraceLength = 1024 * 1024
	loopThreshold  = 65536
	maxPops        = 4
	maxFetch       = 6
)

// Record is one executed instruction.
type Record struct {
	Seq   uint32
	PC    uint16
	Bytes [maxFetch]byte
	Len   uint8
	Regs  Registers // state at fetch

	Count int  // times this state was seen at PC
	Dup   bool // repeat of an earlier record

	NPops uint8
	Pops  [maxPops]uint32 // writers of the bytes pulled from the stack

	// Indirect addressing annotations for the disassembler.
	Ptr     uint32
	PtrAddr uint32
	Wide    bool
}

// same reports whether a and b executed the same instruction from the same
// state. Repeat counters are not compared.
func same(a, b *Record) bool {
	return a.PC == b.PC &&
		a.Bytes == b.Bytes &&
		a.Len == b.Len &&
		a.Regs == b.Regs &&
		a.NPops == b.NPops &&
		a.Pops == b.Pops
}

func (r *Record) pop(blame uint32) {
	if int(r.NPops) < maxPops {
		r.Pops[r.NPops] = blame
		r.NPops++
	}
}

// Trace is the append-only log of instructions executed by one routine.
// Index 0 is reserved for the machine reset.
type Trace struct {
	recs     []*Record
	capacity int
	last     map[uint16]*Record
}

// NewTrace returns an empty trace holding at most capacity records.
func NewTrace(capacity int) *Trace {
	t := &Trace{capacity: capacity}
	t.Reset()
	return t
}

// Reset empties the trace.
func (t *Trace) Reset() {
	t.recs = append(t.recs[:0], nil)
	t.last = make(map[uint16]*Record)
}

// Len returns the number of indices allocated, including the reset slot.
func (t *Trace) Len() int { return len(t.recs) }

// At returns record i, or nil for the reset slot and out of range indices.
func (t *Trace) At(i uint32) *Record {
	if int(i) >= len(t.recs) {
		return nil
	}
	return t.recs[i]
}

// Last returns the most recent record.
func (t *Trace) Last() *Record { return t.recs[len(t.recs)-1] }

// begin appends a record for the instruction about to execute.
func (t *Trace) begin(regs Registers) (*Record, error) {
	if len(t.recs) >= t.capacity {
		return nil, LogCapacityError{len(t.recs)}
	}
	r := &Record{
		Seq:   uint32(len(t.recs)),
		PC:    regs.PC,
		Regs:  regs,
		Count: 1,
	}
	t.recs = append(t.recs, r)
	return r, nil
}

// drop removes the most recent record.
func (t *Trace) drop() {
	if len(t.recs) > 1 {
		t.recs[len(t.recs)-1] = nil
		t.recs = t.recs[:len(t.recs)-1]
	}
}

// previous returns the record executed before r.
func (t *Trace) previous(r *Record) *Record {
	if r.Seq < 2 {
		return nil
	}
	return t.recs[r.Seq-1]
}

// settle folds r into the most recent distinct record at the same PC.
func (t *Trace) settle(r *Record) error {
	prev := t.last[r.PC]
	if prev == nil || !same(prev, r) {
		t.last[r.PC] = r
		return nil
	}
	prev.Count++
	r.Dup = true
	if prev.Count > loopThreshold {
		return InfiniteLoopError{PC: r.PC, Count: prev.Count}
	}
	return nil
}

func flagString(f uint8) string {
	const names = "NVEBDIZC"
	b := []byte("........")
	for i := range b {
		if f&(0x80>>i) != 0 {
			b[i] = names[i]
		}
	}
	return string(b)
}

// showRecent prints count records starting at index first, collapsing runs
// of duplicates.
func (m *Machine) showRecent(w io.Writer, title string, first, count int) {
	fmt.Fprintf(w, "INFO: %s\n", title)
	if first < 0 {
		count += first
		first = 0
	}
	t := m.trace
	lastWasDup := false
	for i := first; count > 0 && i < t.Len(); i, count = i+1, count-1 {
		if i == 0 {
			fmt.Fprintf(w, "I0        -- Machine reset --\n")
			continue
		}
		r := t.recs[i]
		if r.Dup && i > first {
			if !lastWasDup {
				fmt.Fprintf(w, "                 ... duplicated instructions omitted ...\n")
			}
			lastWasDup = true
			continue
		}
		lastWasDup = false
		if i < t.Len()-1 {
			fmt.Fprintf(w, "I%-7d ", i)
		} else {
			fmt.Fprintf(w, "     >>> ")
		}
		if r.Count > 1 {
			fmt.Fprintf(w, "$%04X x%-6d : ", r.PC, r.Count)
		} else {
			fmt.Fprintf(w, "$%04X         : ", r.PC)
		}
		g := &r.Regs
		fmt.Fprintf(w, "A:%02X X:%02X Y:%02X Z:%02X SP:%02X%02X B:%02X M:%04x+%02x/%04x+%02x %s  : ",
			g.A, g.X, g.Y, g.Z, g.SPH, g.SPL, g.B, g.MapLo, g.MapLoMB, g.MapHi, g.MapHiMB, flagString(g.Flags))
		label := ""
		if pa, err := decode(g, m.mem.chip.data[0], m.mem.chip.data[1], uint32(r.PC), false); err == nil {
			label = m.Symbols.Label(pa)
		}
		fmt.Fprintf(w, "%32s : ", label)
		for j := 0; j < 3; j++ {
			if j < int(r.Len) {
				fmt.Fprintf(w, "%02X ", r.Bytes[j])
			} else {
				fmt.Fprintf(w, "   ")
			}
		}
		fmt.Fprintf(w, " : %s\n", m.disassemble(r))
	}
}

// showBlame prints the instructions leading up to the write of index blame.
func (m *Machine) showBlame(w io.Writer, blame uint32) {
	title := "Instructions leading to this value being written"
	if blame == 0 {
		fmt.Fprintf(w, "INFO: %s\n --- No relevant instruction history available (location not written?) ---\n", title)
		return
	}
	first := int(blame) - 3
	if first < 0 {
		first = 0
	}
	m.showRecent(w, title, first, 4)
}
