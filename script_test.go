package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func strp(s string) *string { return &s }

func TestParseDirective(t *testing.T) {
	tests := []struct {
		line string
		want directive
	}{
		{`test "a test"`, directive{Test: &testDirective{Name: `"a test"`}}},
		{`TEST END`, directive{Test: &testDirective{End: true}}},
		{`loadhyppo HICKUP.M65`, directive{LoadHyppo: strp("HICKUP.M65")}},
		{`loadhypposymbols "hyppo.sym"`, directive{HyppoSyms: strp(`"hyppo.sym"`)}},
		{`load "code.bin" at $2000`, directive{Load: &loadDirective{File: `"code.bin"`, Addr: "$2000"}}},
		{`loadsymbols prog.sym at $0`, directive{LoadSyms: &loadDirective{File: "prog.sym", Addr: "$0"}}},
		{`jsr reset_entry`, directive{JSR: strp("reset_entry")}},
		{`jmp $8000 # enter`, directive{JMP: strp("$8000")}},
		{`log dma`, directive{LogDMA: strp("dma")}},
		{`log dma off`, directive{LogDMA: strp("dmaoff")}},
		{`check registers`, directive{Check: strp("registers")}},
		{`check ram`, directive{Check: strp("ram")}},
		{`ignore from $1000 to $10ff`, directive{Ignore: &ignoreDirective{From: "$1000", To: "$10ff"}}},
		{`ignore $d020`, directive{Ignore: &ignoreDirective{At: "$d020"}}},
		{`breakpoint loop+3`, directive{Breakpoint: strp("loop+3")}},
		{`expect a = $42`, directive{Expect: &expectDirective{Register: &expectRegister{Name: "a", Value: "$42"}}}},
		{`expect $42 at buffer+1`, directive{Expect: &expectDirective{Memory: &expectMemory{Value: "$42", Addr: "buffer+1"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			is := is.New(t)
			d, err := scriptParser.ParseString("", tt.line)
			is.NoErr(err)
			is.Equal(*d, tt.want)
		})
	}
}

func TestParseDirectiveErrors(t *testing.T) {
	for _, line := range []string{
		`frobnicate`,
		`test unquoted`,
		`load code.bin`,
		`check everything`,
		`expect a $42`,
		`jsr`,
	} {
		if _, err := scriptParser.ParseString("", line); err == nil {
			t.Errorf("%q: expected a parse error", line)
		}
	}
}

// runScript runs text on a fresh harness reporting into a temporary
// directory.
func runScript(t *testing.T, text string) (dir string, s *Script, rep *Reporter, stderr *bytes.Buffer) {
	t.Helper()
	dir = t.TempDir()
	stderr = new(bytes.Buffer)
	rep = NewReporter(dir, &Console{w: io.Discard})
	s = NewScript(NewHarness(stderr), rep, stderr)
	if err := s.Run(strings.NewReader(text)); err != nil {
		t.Fatal(err)
	}
	return dir, s, rep, stderr
}

func TestScriptReports(t *testing.T) {
	is := is.New(t)
	code := filepath.Join(t.TempDir(), "store.bin")
	is.NoErr(os.WriteFile(code, storeRoutine, 0o644))

	dir, s, rep, _ := runScript(t, fmt.Sprintf(`
# A routine that stores $42.
test "store byte"
load "%s" at $2000
jsr $2000
expect $42 at $3000
expect a = $42
expect spl = $01
expect pc = $0001
check ram
check registers
test end

test "missing code"
jsr $2000
check ram
test end
`, code))

	is.Equal(rep.Passes, 1)
	is.Equal(rep.Fails, 1)
	is.True(!s.Failed())

	pass, err := os.ReadFile(filepath.Join(dir, "PASS.store_byte"))
	is.NoErr(err)
	is.True(strings.Contains(string(pass), ">>> Calling routine"))
	is.True(strings.HasSuffix(string(pass), "PASS: Test passed.\n"))

	fail, err := os.ReadFile(filepath.Join(dir, "FAIL.missing_code"))
	is.NoErr(err)
	is.True(strings.Contains(string(fail), "ERROR: BRK instruction encountered."))
	is.True(strings.Contains(string(fail), "INFO: Complete instruction log follows"))
	is.True(strings.HasSuffix(string(fail), "FAIL: Test failed.\n"))

	_, err = os.Stat(filepath.Join(dir, "FAIL.store_byte"))
	is.True(os.IsNotExist(err))
}

func TestScriptImplicitEnd(t *testing.T) {
	is := is.New(t)
	dir, _, rep, _ := runScript(t, `
test "first"
expect $01 at $3000
check ram
test "second"
test "third"
`)
	is.Equal(rep.Passes, 2)
	is.Equal(rep.Fails, 1)
	for _, name := range []string{"FAIL.first", "PASS.second", "PASS.third"} {
		_, err := os.Stat(filepath.Join(dir, name))
		is.NoErr(err)
	}
}

func TestScriptReplacesStaleReport(t *testing.T) {
	is := is.New(t)
	dir, _, _, _ := runScript(t, `
test "flaky"
expect $01 at $3000
check ram
test end
test "flaky"
test end
`)
	_, err := os.Stat(filepath.Join(dir, "PASS.flaky"))
	is.NoErr(err)
	_, err = os.Stat(filepath.Join(dir, "FAIL.flaky"))
	is.True(os.IsNotExist(err))
}

func TestScriptDirectiveErrors(t *testing.T) {
	is := is.New(t)
	dir, _, rep, _ := runScript(t, `
test "typo"
frobnicate $2000
test end
`)
	is.Equal(rep.Fails, 1)
	fail, err := os.ReadFile(filepath.Join(dir, "FAIL.typo"))
	is.NoErr(err)
	is.True(strings.Contains(string(fail), "ERROR: Unrecognised test directive:\n       frobnicate $2000\n"))
}

func TestScriptOutsideTests(t *testing.T) {
	is := is.New(t)
	_, s, rep, stderr := runScript(t, `
test end
jsr missing_symbol
`)
	is.True(s.Failed())
	is.Equal(rep.Passes+rep.Fails, 0)
	is.True(strings.Contains(stderr.String(), "WARNING: test end without a test in progress"))
	is.True(strings.Contains(stderr.String(), "ERROR: Cannot find non-existent symbol 'missing_symbol'"))

	_, s, _, _ = runScript(t, `
test "ok"
test end
jsr missing_symbol
`)
	is.True(!s.Failed()) // failures after a test are not attributed to the script
}

func TestScriptBreakpointAndIgnore(t *testing.T) {
	is := is.New(t)
	code := filepath.Join(t.TempDir(), "store.bin")
	is.NoErr(os.WriteFile(code, storeRoutine, 0o644))

	dir, _, rep, _ := runScript(t, fmt.Sprintf(`
test "stop before store"
load "%s" at $2000
breakpoint $2002
jsr $2000
expect a = $42
expect pc = $2002
check registers
check ram
test end

test "ignore store"
load "%s" at $2000
jsr $2000
ignore from $3000 to $30ff
check ram
test end
`, code, code))
	is.Equal(rep.Fails, 0)
	is.Equal(rep.Passes, 2)
	b, err := os.ReadFile(filepath.Join(dir, "PASS.stop_before_store"))
	is.NoErr(err)
	is.True(strings.Contains(string(b), "INFO: Breakpoint set at $2002 ($2002)"))
}
