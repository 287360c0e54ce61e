package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// directive is one line of a test script.
type directive struct {
	Test       *testDirective   `  "test" @@`
	LoadHyppo  *string          `| "loadhyppo" @(Word | String)`
	HyppoSyms  *string          `| "loadhypposymbols" @(Word | String)`
	Load       *loadDirective   `| "load" @@`
	LoadSyms   *loadDirective   `| "loadsymbols" @@`
	JSR        *string          `| "jsr" @Word`
	JMP        *string          `| "jmp" @Word`
	LogDMA     *string          `| "log" @"dma" @"off"?`
	Check      *string          `| "check" @("registers" | "ram")`
	Ignore     *ignoreDirective `| "ignore" @@`
	Breakpoint *string          `| "breakpoint" @Word`
	Expect     *expectDirective `| "expect" @@`
}

type testDirective struct {
	End  bool   `  @"end"`
	Name string `| @String`
}

type loadDirective struct {
	File string `@(Word | String) "at"`
	Addr string `@Word`
}

type ignoreDirective struct {
	From string `  "from" @Word`
	To   string `  "to" @Word`
	At   string `| @Word`
}

type expectDirective struct {
	Register *expectRegister `  @@`
	Memory   *expectMemory   `| @@`
}

type expectRegister struct {
	Name  string `@Word "="`
	Value string `@Word`
}

type expectMemory struct {
	Value string `@Word "at"`
	Addr  string `@Word`
}

var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Word", Pattern: `[^\s"]+`},
})

var scriptParser = participle.MustBuild[directive](
	participle.Lexer(scriptLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.CaseInsensitive("Word"),
	participle.UseLookahead(3),
)

// unquote strips the quotes from a String token.
func unquote(s string) string {
	return strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
}

// Script interprets test scripts against a harness. Each test gets a fresh
// machine and its own report file.
type Script struct {
	h      *Harness
	rep    *Reporter
	stderr io.Writer

	tests int
}

// NewScript returns an interpreter that logs to stderr between tests.
func NewScript(h *Harness, rep *Reporter, stderr io.Writer) *Script {
	return &Script{h: h, rep: rep, stderr: stderr}
}

// Failed reports whether a script with no test directives failed.
func (s *Script) Failed() bool {
	return s.tests == 0 && s.h.Failed()
}

// Run interprets every line of r. Errors in directives are logged and fail
// the current test; only report file problems are returned.
func (s *Script) Run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := s.exec(sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if s.rep.Active() {
		return s.conclude()
	}
	return nil
}

func (s *Script) logf(format string, args ...interface{}) {
	s.h.logf(format, args...)
}

func (s *Script) exec(line string) error {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}
	d, err := scriptParser.ParseString("", trimmed)
	if err != nil {
		s.logf("ERROR: Unrecognised test directive:\n       %s\n", trimmed)
		s.h.fail()
		return nil
	}

	h := s.h
	switch {
	case d.Test != nil && d.Test.End:
		return s.conclude()
	case d.Test != nil:
		return s.begin(unquote(d.Test.Name))
	case d.LoadHyppo != nil:
		h.LoadHyppo(unquote(*d.LoadHyppo))
	case d.HyppoSyms != nil:
		h.LoadPrivilegedSymbols(unquote(*d.HyppoSyms))
	case d.Load != nil:
		if a, err := h.Resolve(d.Load.Addr); err == nil {
			h.LoadBinary(unquote(d.Load.File), addr28(a))
		}
	case d.LoadSyms != nil:
		if a, err := h.Resolve(d.LoadSyms.Addr); err == nil {
			h.LoadSymbols(unquote(d.LoadSyms.File), addr28(a))
		}
	case d.JSR != nil:
		if a, err := h.Resolve(*d.JSR); err == nil {
			h.Call(uint16(a), 1)
		}
	case d.JMP != nil:
		if a, err := h.Resolve(*d.JMP); err == nil {
			h.Jump(uint16(a))
		}
	case d.LogDMA != nil:
		h.LogDMA(!strings.HasSuffix(strings.ToLower(*d.LogDMA), "off"))
	case d.Check != nil:
		if strings.EqualFold(*d.Check, "registers") {
			h.CompareRegisters()
		} else {
			h.CompareMemory()
		}
	case d.Ignore != nil:
		s.ignore(d.Ignore)
	case d.Breakpoint != nil:
		if a, err := h.Resolve(*d.Breakpoint); err == nil {
			s.logf("INFO: Breakpoint set at %s ($%04x)\n", *d.Breakpoint, uint16(a))
			h.SetBreakpoint(uint16(a))
		}
	case d.Expect != nil && d.Expect.Register != nil:
		e := d.Expect.Register
		if v, err := h.Resolve(e.Value); err == nil {
			h.ExpectRegister(e.Name, v)
		}
	case d.Expect != nil && d.Expect.Memory != nil:
		e := d.Expect.Memory
		v, err := h.Resolve(e.Value)
		if err != nil {
			return nil
		}
		if a, err := h.Resolve(e.Addr); err == nil {
			h.ExpectMemory(addr28(a), byte(v))
		}
	}
	return nil
}

func (s *Script) ignore(d *ignoreDirective) {
	lo, hi := d.At, d.At
	if d.At == "" {
		lo, hi = d.From, d.To
	}
	l, err := s.h.Resolve(lo)
	if err != nil {
		return
	}
	u, err := s.h.Resolve(hi)
	if err != nil {
		return
	}
	s.h.Ignore(addr28(l), addr28(u))
}

// begin starts a new test on a freshly reset machine.
func (s *Script) begin(name string) error {
	if s.rep.Active() {
		if err := s.conclude(); err != nil {
			return err
		}
	}
	s.tests++
	s.h.Reset()
	f, err := s.rep.Begin(name)
	if err != nil {
		return err
	}
	s.h.SetLog(f)
	return nil
}

// conclude files the current test's report.
func (s *Script) conclude() error {
	if !s.rep.Active() {
		s.logf("WARNING: test end without a test in progress\n")
		return nil
	}
	m := s.h.Actual
	err := s.rep.End(s.h.Failed(), func(f *os.File) {
		m.showRecent(f, "Complete instruction log follows", 1, m.trace.Len())
	})
	s.h.SetLog(s.stderr)
	if err != nil {
		return fmt.Errorf("filing test report: %w", err)
	}
	return nil
}
