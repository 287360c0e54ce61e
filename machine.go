package main

import (
	"fmt"
	"io"
	"os"
)

// Status register flags.
const (
	FLAGN = 0x80
	FLAGV = 0x40
	FLAGE = 0x20
	FLAGB = 0x10
	FLAGD = 0x08
	FLAGI = 0x04
	FLAGZ = 0x02
	FLAGC = 0x01
)

// Reset state.
const (
	resetB       = 0xbf
	resetMapHi   = 0x3f00
	resetMapHiMB = 0xff
	resetDDR     = 0x3f
	resetPort    = 0x27
)

// Registers is the programmer visible state of the 45GS02.
type Registers struct {
	PC            uint16
	A, X, Y, Z    uint8
	Flags         uint8
	B             uint8
	SPH, SPL      uint8
	InHyper       bool
	MapIRQInhibit bool
	MapLo, MapHi  uint16
	MapLoMB       uint8
	MapHiMB       uint8
}

// sp returns the full 16 bit stack pointer.
func (r *Registers) sp() uint16 { return uint16(r.SPH)<<8 | uint16(r.SPL) }

// Termination holds the independent conditions that end a run. Done and
// Error stop the fetch/execute loop.
type Termination struct {
	Done  bool
	Error bool // sticky until Reset
	RTS   int  // remaining returns before Done
	BRK   bool

	LogDMA bool
}

// Machine is one complete 45GS02 machine state: registers, physical memory
// with write attribution, and the instruction trace of the current routine.
type Machine struct {
	Regs Registers
	Term Termination

	mem   Memory
	trace *Trace

	// Symbols is shared between the machines of one harness.
	Symbols *Symbols

	breakpoints [0x10000]bool

	stackOverflow, stackUnderflow bool
	jumped                        bool // PC was set by the instruction

	// seq is the trace index of the instruction being executed; it is
	// recorded as the writer of every byte stored.
	seq uint32

	log io.Writer
}

// NewMachine returns a machine in its reset state.
func NewMachine(syms *Symbols) *Machine {
	if syms == nil {
		syms = NewSymbols()
	}
	m := &Machine{
		mem:     NewMemory(),
		trace:   NewTrace(maxTraceLength),
		Symbols: syms,
		log:     os.Stderr,
	}
	m.Reset()
	return m
}

// Reset puts the machine into the state the hypervisor expects at power on.
// It clears memory, attribution, breakpoints, the trace and the error flag.
func (m *Machine) Reset() {
	m.Regs = Registers{
		Flags:   FLAGE | FLAGI,
		B:       resetB,
		InHyper: true,
		MapHi:   resetMapHi,
		MapHiMB: resetMapHiMB,
	}
	logDMA := m.Term.LogDMA
	m.Term = Termination{LogDMA: logDMA}
	m.mem.clear()
	m.mem.chip.data[0] = resetDDR
	m.mem.chip.data[1] = resetPort
	m.breakpoints = [0x10000]bool{}
	m.stackOverflow, m.stackUnderflow = false, false
	m.seq = 0
	m.trace.Reset()
}

// SetLog directs diagnostics to w.
func (m *Machine) SetLog(w io.Writer) { m.log = w }

// SetBreakpoint stops execution before the instruction at a is executed.
func (m *Machine) SetBreakpoint(a uint16) { m.breakpoints[a] = true }

// Trace returns the instruction trace of the most recent run.
func (m *Machine) Trace() *Trace { return m.trace }

// Peek returns the byte at physical address a.
func (m *Machine) Peek(a addr28) byte { return m.mem.read28(a) }

// Poke stores v at physical address a with no attribution and no IO side
// effects.
func (m *Machine) Poke(a addr28, v byte) error { return m.mem.poke28(a, v, 0) }

// Blame returns the trace index of the instruction that last wrote a.
func (m *Machine) Blame(a addr28) uint32 { return m.mem.blame28(a) }

func (m *Machine) logf(format string, args ...interface{}) {
	fmt.Fprintf(m.log, format, args...)
}

// fail records a fatal error: the loop stops and the error flag sticks.
func (m *Machine) fail(err error) error {
	m.Term.Error = true
	return err
}
