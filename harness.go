package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	maxReportedMismatches = 100

	hyperEntryLo = 0x8000
	hyperEntryHi = 0xc000
)

// Harness drives two machines: Actual runs the code under test, Expected is
// only changed by test directives. After each routine the two are compared.
type Harness struct {
	Actual   *Machine
	Expected *Machine
	Symbols  *Symbols

	log io.Writer
}

// NewHarness returns a harness with both machines reset, logging to w.
func NewHarness(w io.Writer) *Harness {
	syms := NewSymbols()
	h := &Harness{
		Actual:   NewMachine(syms),
		Expected: NewMachine(syms),
		Symbols:  syms,
	}
	h.SetLog(w)
	return h
}

// SetLog directs all diagnostics to w.
func (h *Harness) SetLog(w io.Writer) {
	h.log = w
	h.Actual.SetLog(w)
	h.Expected.SetLog(w)
}

func (h *Harness) logf(format string, args ...interface{}) {
	fmt.Fprintf(h.log, format, args...)
}

// Failed reports whether anything has gone wrong since the last Reset.
func (h *Harness) Failed() bool { return h.Actual.Term.Error }

func (h *Harness) fail() { h.Actual.Term.Error = true }

// Reset returns both machines to power on state and forgets all symbols.
// DMA logging is retained.
func (h *Harness) Reset() {
	h.Actual.Reset()
	h.Expected.Reset()
	h.Symbols.Reset()
}

// LogDMA switches reporting of DMA jobs.
func (h *Harness) LogDMA(on bool) {
	h.Actual.Term.LogDMA = on
	if on {
		h.logf("NOTE: DMA jobs will be reported\n")
	} else {
		h.logf("NOTE: DMA jobs will not be reported\n")
	}
}

// SetTraceLimit bounds the number of instructions traced per routine.
func (h *Harness) SetTraceLimit(n int) { h.Actual.trace.capacity = n }

// SetBreakpoint stops routines before executing the instruction at a.
func (h *Harness) SetBreakpoint(a uint16) {
	h.Actual.SetBreakpoint(a)
}

// Call runs the routine at addr until it has executed budget more returns
// than calls, or stops for another reason.
func (h *Harness) Call(addr uint16, budget int) error {
	m := h.Actual
	m.Regs.SPL = 0xff
	if addr >= hyperEntryLo && addr < hyperEntryHi {
		m.Regs.SPH = 0xbe
		m.Regs.InHyper = true
	} else {
		m.Regs.SPH = 0x01
		m.Regs.InHyper = false
	}

	h.logf(">>> Calling routine %s @ $%04x\n", h.Symbols.Label(m.pcAddr(addr)), addr)

	// Everything loaded into the expected image is the starting point.
	m.mem.syncFrom(&h.Expected.mem, 0, chipRAMSize-1)
	m.mem.syncFrom(&h.Expected.mem, hyppoBase, hyppoBase+hyppoRAMSize-1)
	h.Expected.Regs = m.Regs

	err := m.Run(addr, budget)
	if err != nil {
		var loop InfiniteLoopError
		if errors.As(err, &loop) {
			h.logf("ERROR: Infinite loop detected at %s.\n       Aborted after %d iterations.\n",
				h.Symbols.Describe(m.pcAddr(loop.PC)), loop.Count)
			m.showRecent(h.log, "Instructions leading into the infinite loop for the first time",
				m.trace.Len()-loop.Count-30, 32)
			return err
		}
		h.logf("ERROR: Exception occurred executing instruction at %s\n       Aborted.\n",
			h.Symbols.Describe(m.pcAddr(m.Regs.PC)))
		h.logf("ERROR: %v\n", err)
		m.showRecent(h.log, "Instructions leading up to the exception", m.trace.Len()-16, 16)
		return err
	}
	if m.Term.BRK {
		h.logf("ERROR: BRK instruction encountered.\n")
		m.showRecent(h.log, "Instructions leading to the BRK instruction", m.trace.Len()-30, 32)
		return nil
	}
	h.logf("NOTE: Execution ended.\n")
	return nil
}

// Jump runs the code at addr with no return budget.
func (h *Harness) Jump(addr uint16) error {
	return h.Call(addr, 0)
}

// CompareRegisters reports every register that differs from its expected
// value and returns true if any did.
func (h *Harness) CompareRegisters() bool {
	a, e := &h.Actual.Regs, &h.Expected.Regs
	bad := false
	reg8 := func(name string, got, want uint8) {
		if got != want {
			h.logf("ERROR: Register %s contains $%02X instead of $%02X\n", name, got, want)
			bad = true
		}
	}
	reg8("A", a.A, e.A)
	reg8("X", a.X, e.X)
	reg8("Y", a.Y, e.Y)
	reg8("Z", a.Z, e.Z)
	reg8("B", a.B, e.B)
	reg8("SPL", a.SPL, e.SPL)
	reg8("SPH", a.SPH, e.SPH)
	if a.PC != e.PC {
		h.logf("ERROR: Register PC contains %s ($%04X) instead of %s ($%04X)\n",
			h.Symbols.Label(h.Actual.pcAddr(a.PC)), a.PC,
			h.Symbols.Label(h.Actual.pcAddr(e.PC)), e.PC)
		bad = true
	}
	if bad {
		h.fail()
	}
	return bad
}

// CompareMemory counts the bytes that differ between the actual and expected
// images. The first mismatches are reported with the instructions that wrote
// them.
func (h *Harness) CompareMemory() int {
	actual, expected := h.Actual.mem.regions(), h.Expected.mem.regions()
	mismatches := 0
	for i, r := range actual {
		e := expected[i]
		for j := range r.data {
			if r.data[j] != e.data[j] {
				mismatches++
			}
		}
	}
	if mismatches == 0 {
		return 0
	}

	h.fail()
	h.logf("ERROR: %d memory locations contained unexpected values.\n", mismatches)
	shown := 0
	for i, r := range actual {
		e := expected[i]
		for j := range r.data {
			if r.data[j] == e.data[j] {
				continue
			}
			if shown == maxReportedMismatches {
				h.logf("WARNING: Displayed only the first %d incorrect memory contents. %d more suppressed.\n",
					maxReportedMismatches, mismatches-maxReportedMismatches)
				return mismatches
			}
			a := r.base + addr28(j)
			h.logf("ERROR: Saw $%02X at $%07x (%s), but expected to see $%02X\n",
				r.data[j], uint32(a), h.Symbols.Label(a), e.data[j])
			h.Actual.showBlame(h.log, r.blame[j])
			shown++
		}
	}
	return mismatches
}

// ExpectRegister sets the value a register should hold after the next
// routine.
func (h *Harness) ExpectRegister(name string, v uint32) error {
	r := &h.Expected.Regs
	switch strings.ToLower(name) {
	case "a":
		r.A = uint8(v)
	case "x":
		r.X = uint8(v)
	case "y":
		r.Y = uint8(v)
	case "z":
		r.Z = uint8(v)
	case "b":
		r.B = uint8(v)
	case "spl":
		r.SPL = uint8(v)
	case "sph":
		r.SPH = uint8(v)
	case "pc":
		r.PC = uint16(v)
	default:
		h.logf("ERROR: Unknown register '%s'\n", name)
		h.fail()
		return fmt.Errorf("unknown register %q", name)
	}
	return nil
}

// ExpectMemory sets the value the byte at a should hold.
func (h *Harness) ExpectMemory(a addr28, v byte) error {
	if err := h.Expected.mem.poke28(a, v, 0); err != nil {
		h.logf("ERROR: %v in expected memory\n", err)
		h.fail()
		return err
	}
	return nil
}

// Ignore copies the actual bytes in [lo, hi] into the expected image, so
// that changes there are not reported.
func (h *Harness) Ignore(lo, hi addr28) {
	h.Expected.mem.syncFrom(&h.Actual.mem, lo, hi)
}

// LoadHyppo loads a complete hypervisor image into expected hypervisor RAM.
func (h *Harness) LoadHyppo(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return h.loadFailed(fmt.Errorf("could not read hypervisor image: %w", err))
	}
	if len(b) < hyppoRAMSize {
		return h.loadFailed(fmt.Errorf("read only %d of %d bytes from hypervisor image %s", len(b), hyppoRAMSize, path))
	}
	copy(h.Expected.mem.hyppo.data, b[:hyppoRAMSize])
	return nil
}

// LoadBinary loads the file at path into the expected image at a.
func (h *Harness) LoadBinary(path string, a addr28) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return h.loadFailed(fmt.Errorf("could not read binary file: %w", err))
	}
	h.logf("NOTE: Loading %d bytes at $%07x from %s\n", len(b), uint32(a), path)
	for i, v := range b {
		if err := h.ExpectMemory(a+addr28(i), v); err != nil {
			return err
		}
	}
	return nil
}

// LoadPrivilegedSymbols reads the hypervisor symbol list.
func (h *Harness) LoadPrivilegedSymbols(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return h.loadFailed(fmt.Errorf("could not read hypervisor symbol list: %w", err))
	}
	defer f.Close()
	n, err := h.Symbols.LoadPrivileged(f)
	if err != nil {
		return h.loadFailed(fmt.Errorf("reading %s: %w", path, err))
	}
	h.logf("INFO: Read %d HYPPO symbols.\n", n)
	return nil
}

// LoadSymbols reads a general symbol list, relocating it by offset.
func (h *Harness) LoadSymbols(path string, offset addr28) error {
	f, err := os.Open(path)
	if err != nil {
		return h.loadFailed(fmt.Errorf("could not read symbol list: %w", err))
	}
	defer f.Close()
	n, err := h.Symbols.LoadGeneral(f, offset)
	if err != nil {
		return h.loadFailed(fmt.Errorf("reading %s: %w", path, err))
	}
	h.logf("INFO: Read %d symbols.\n", n)
	return nil
}

func (h *Harness) loadFailed(err error) error {
	h.logf("ERROR: %v\n", err)
	h.fail()
	return err
}

// Resolve evaluates a value or address: $hex, decimal, or a symbol name,
// each optionally followed by +n, -n, +$n or -$n.
func (h *Harness) Resolve(s string) (uint32, error) {
	v, err := resolveValue(h.Symbols, s)
	if err != nil {
		var unresolved UnresolvedSymbolError
		if errors.As(err, &unresolved) {
			h.logf("ERROR: Cannot find non-existent symbol '%s'\n", unresolved.Name)
		} else {
			h.logf("ERROR: Could not parse address or value specification '%s'.\n", s)
		}
		h.fail()
		return 0, err
	}
	return v, nil
}

func resolveValue(syms *Symbols, s string) (uint32, error) {
	base, delta := s, ""
	if i := strings.IndexAny(s[min(1, len(s)):], "+-"); i >= 0 {
		base, delta = s[:i+1], s[i+1:]
	}

	v, err := resolveTerm(syms, base)
	if err != nil {
		return 0, err
	}
	if delta == "" {
		return v, nil
	}
	d, err := parseNumber(delta[1:])
	if err != nil {
		return 0, err
	}
	if delta[0] == '-' {
		return v - d, nil
	}
	return v + d, nil
}

func resolveTerm(syms *Symbols, s string) (uint32, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if s[0] == '$' || (s[0] >= '0' && s[0] <= '9') {
		return parseNumber(s)
	}
	a, ok := syms.Resolve(s)
	if !ok {
		return 0, UnresolvedSymbolError{Name: s}
	}
	return uint32(a), nil
}

// parseNumber parses $hex or decimal.
func parseNumber(s string) (uint32, error) {
	base := 10
	if strings.HasPrefix(s, "$") {
		s, base = s[1:], 16
	}
	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q: %w", s, err)
	}
	return uint32(v), nil
}
