package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
)

// newTestHarness returns a harness logging into buf with code loaded into
// the expected image at testOrigin.
func newTestHarness(t *testing.T, buf *bytes.Buffer, code ...byte) *Harness {
	t.Helper()
	h := NewHarness(buf)
	for i, b := range code {
		if err := h.ExpectMemory(testOrigin+addr28(i), b); err != nil {
			t.Fatal(err)
		}
	}
	return h
}

var storeRoutine = []byte{
	0xa9, 0x42, // LDA #$42
	0x8d, 0x00, 0x30, // STA $3000
	0x60, // RTS
}

func TestCompareMemory(t *testing.T) {
	is := is.New(t)
	var log bytes.Buffer
	h := newTestHarness(t, &log, storeRoutine...)
	is.Equal(h.CompareMemory(), 0)
	is.True(!h.Failed())

	is.NoErr(h.Call(testOrigin, 1))
	is.True(strings.Contains(log.String(), ">>> Calling routine  @ $2000"))
	is.True(strings.Contains(log.String(), "NOTE: Execution ended."))
	is.Equal(h.Actual.Peek(testOrigin), byte(0xa9)) // loaded code was synced

	is.Equal(h.CompareMemory(), 1)
	is.True(h.Failed())
	out := log.String()
	is.True(strings.Contains(out, "ERROR: 1 memory locations contained unexpected values."))
	is.True(strings.Contains(out, "ERROR: Saw $42 at $0003000 (), but expected to see $00"))
	is.True(strings.Contains(out, "STA $3000"))

	is.NoErr(h.ExpectMemory(0x3000, 0x42))
	is.Equal(h.CompareMemory(), 0)
}

func TestCompareMemoryLimit(t *testing.T) {
	is := is.New(t)
	var log bytes.Buffer
	h := newTestHarness(t, &log)
	for a := addr28(0x4000); a < 0x4000+maxReportedMismatches+5; a++ {
		is.NoErr(h.ExpectMemory(a, 1))
	}
	is.Equal(h.CompareMemory(), maxReportedMismatches+5)
	is.Equal(strings.Count(log.String(), "ERROR: Saw"), maxReportedMismatches)
	is.True(strings.Contains(log.String(), "WARNING: Displayed only the first 100 incorrect memory contents. 5 more suppressed."))
}

func TestIgnore(t *testing.T) {
	is := is.New(t)
	var log bytes.Buffer
	h := newTestHarness(t, &log, storeRoutine...)
	is.NoErr(h.Call(testOrigin, 1))
	h.Ignore(0x3000, 0x3000)
	is.Equal(h.CompareMemory(), 0)
	is.True(!h.Failed())
}

func TestCompareRegisters(t *testing.T) {
	is := is.New(t)
	var log bytes.Buffer
	h := newTestHarness(t, &log, storeRoutine...)
	is.NoErr(h.Call(testOrigin, 1))

	// The routine returns past the top of the stack to $0001.
	is.True(h.CompareRegisters())
	is.True(strings.Contains(log.String(), "ERROR: Register A contains $42 instead of $00"))
	is.True(strings.Contains(log.String(), "ERROR: Register PC contains"))

	h = newTestHarness(t, &log, storeRoutine...)
	is.NoErr(h.Call(testOrigin, 1))
	is.NoErr(h.ExpectRegister("A", 0x42))
	is.NoErr(h.ExpectRegister("spl", 0x01))
	is.NoErr(h.ExpectRegister("pc", 0x0001))
	is.True(!h.CompareRegisters())
	is.True(!h.Failed())

	is.True(h.ExpectRegister("q", 1) != nil)
	is.True(h.Failed())
}

func TestCallConventions(t *testing.T) {
	is := is.New(t)
	var log bytes.Buffer
	h := newTestHarness(t, &log)
	is.NoErr(h.ExpectMemory(hyppoBase, 0x60)) // RTS at $8000
	h.Symbols.AddPrivileged("trap_entry", 0x8000)

	is.NoErr(h.Call(0x8000, 1))
	is.True(strings.Contains(log.String(), ">>> Calling routine trap_entry @ $8000"))
	is.Equal(h.Actual.Regs.SPH, byte(0xbe))
	is.True(h.Actual.Regs.InHyper)
	is.True(!h.Failed())

	h.Reset()
	is.NoErr(h.ExpectMemory(testOrigin, 0x60))
	is.NoErr(h.Call(testOrigin, 1))
	is.Equal(h.Actual.Regs.SPH, byte(0x01))
	is.True(!h.Actual.Regs.InHyper)
}

func TestCallFailures(t *testing.T) {
	is := is.New(t)
	var log bytes.Buffer
	h := newTestHarness(t, &log, 0x00, 0x00) // BRK
	is.NoErr(h.Call(testOrigin, 1))
	is.True(h.Failed())
	is.True(strings.Contains(log.String(), "ERROR: BRK instruction encountered."))
	is.True(strings.Contains(log.String(), "Instructions leading to the BRK instruction"))

	log.Reset()
	h = newTestHarness(t, &log, 0x80, 0xfe) // BRA *
	err := h.Jump(testOrigin)
	var loop InfiniteLoopError
	is.True(errors.As(err, &loop))
	is.True(strings.Contains(log.String(), "ERROR: Infinite loop detected at $0002000."))
	is.True(strings.Contains(log.String(), "Aborted after 65537 iterations."))

	log.Reset()
	h = newTestHarness(t, &log, 0x02)
	err = h.Call(testOrigin, 1)
	var uo UnimplementedOpcodeError
	is.True(errors.As(err, &uo))
	is.True(strings.Contains(log.String(), "ERROR: Exception occurred executing instruction at $0002000"))
	is.True(strings.Contains(log.String(), "ERROR: unimplemented opcode $02 at $2000"))
}

func TestResolve(t *testing.T) {
	var log bytes.Buffer
	h := NewHarness(&log)
	h.Symbols.AddGeneral("buffer", 0x2000)
	h.Symbols.AddPrivileged("entry", 0x8000)

	tests := []struct {
		s    string
		want uint32
		ok   bool
	}{
		{"$10", 0x10, true},
		{"$FFD3700", 0xffd3700, true},
		{"10", 10, true},
		{"buffer", 0x2000, true},
		{"buffer+2", 0x2002, true},
		{"buffer-$10", 0x1ff0, true},
		{"buffer+$100", 0x2100, true},
		{"entry", 0xfff8000, true},
		{"$ff+1", 0x100, true},
		{"missing", 0, false},
		{"$zz", 0, false},
		{"buffer+", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := h.Resolve(tt.s)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("Resolve(%q): got $%x, %v", tt.s, got, err)
		}
	}
	if !strings.Contains(log.String(), "ERROR: Cannot find non-existent symbol 'missing'") {
		t.Errorf("missing symbol not reported:\n%s", log.String())
	}
	if !strings.Contains(log.String(), "ERROR: Could not parse address or value specification '$zz'.") {
		t.Errorf("bad number not reported:\n%s", log.String())
	}
}

func TestLoaders(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	write := func(name string, b []byte) string {
		p := filepath.Join(dir, name)
		is.NoErr(os.WriteFile(p, b, 0o644))
		return p
	}

	var log bytes.Buffer
	h := NewHarness(&log)

	image := make([]byte, hyppoRAMSize+10)
	image[0], image[hyppoRAMSize-1] = 0x4c, 0xea
	is.NoErr(h.LoadHyppo(write("hyppo.bin", image)))
	is.Equal(h.Expected.Peek(hyppoBase), byte(0x4c))
	is.Equal(h.Expected.Peek(hyppoBase+hyppoRAMSize-1), byte(0xea))

	is.NoErr(h.LoadBinary(write("code.bin", []byte{1, 2, 3}), 0x4000))
	is.Equal(h.Expected.Peek(0x4002), byte(3))
	is.True(strings.Contains(log.String(), "NOTE: Loading 3 bytes at $0004000 from "))

	is.NoErr(h.LoadPrivilegedSymbols(write("hyppo.sym", []byte("entry = $8000\n"))))
	is.NoErr(h.LoadSymbols(write("prog.sym", []byte("al 000010 .start\n")), 0x4000))
	is.True(strings.Contains(log.String(), "INFO: Read 1 HYPPO symbols."))
	is.True(strings.Contains(log.String(), "INFO: Read 1 symbols."))
	v, err := h.Resolve(".start")
	is.NoErr(err)
	is.Equal(v, uint32(0x4010))
	is.True(!h.Failed())

	is.True(h.LoadHyppo(write("short.bin", image[:100])) != nil)
	is.True(h.Failed())
	is.True(strings.Contains(log.String(), "read only 100 of 16384 bytes"))

	h.Reset()
	is.True(h.LoadBinary(filepath.Join(dir, "absent.bin"), 0) != nil)
	is.True(h.Failed())
}

func TestLogDMA(t *testing.T) {
	is := is.New(t)
	var log bytes.Buffer
	h := NewHarness(&log)
	h.LogDMA(true)
	is.True(h.Actual.Term.LogDMA)
	h.Reset()
	is.True(h.Actual.Term.LogDMA)
	h.LogDMA(false)
	is.True(!h.Actual.Term.LogDMA)
	is.True(strings.Contains(log.String(), "NOTE: DMA jobs will be reported"))
}
