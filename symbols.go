package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// privilegedBase is where the hypervisor's symbol offsets are based.
const privilegedBase addr28 = 0xfff0000

type symbol struct {
	name string
	addr addr28
}

// Symbols maps names to addresses in two scopes: privileged symbols are
// offsets from privilegedBase, general symbols are absolute.
type Symbols struct {
	privileged []symbol
	general    []symbol
}

// NewSymbols returns empty symbol tables.
func NewSymbols() *Symbols { return new(Symbols) }

// Reset forgets every symbol.
func (s *Symbols) Reset() {
	s.privileged = s.privileged[:0]
	s.general = s.general[:0]
}

// Len returns the number of privileged and general symbols.
func (s *Symbols) Len() (privileged, general int) {
	return len(s.privileged), len(s.general)
}

// AddPrivileged defines name at offset off from privilegedBase.
func (s *Symbols) AddPrivileged(name string, off addr28) {
	s.privileged = append(s.privileged, symbol{name, off})
}

// AddGeneral defines name at physical address a.
func (s *Symbols) AddGeneral(name string, a addr28) {
	s.general = append(s.general, symbol{name, a})
}

// Resolve returns the physical address of name. Privileged symbols win.
func (s *Symbols) Resolve(name string) (addr28, bool) {
	for _, sym := range s.privileged {
		if sym.name == name {
			return privilegedBase + sym.addr, true
		}
	}
	for _, sym := range s.general {
		if sym.name == name {
			return sym.addr, true
		}
	}
	return 0, false
}

// Nearest returns the symbol at or below a with the smallest distance, and
// that distance. On a tie the privileged symbol is returned.
func (s *Symbols) Nearest(a addr28) (name string, delta uint32, ok bool) {
	var best addr28
	consider := func(sym symbol, at addr28) {
		if at > a || (ok && at <= best) {
			return
		}
		name, best, ok = sym.name, at, true
	}
	for _, sym := range s.privileged {
		consider(sym, privilegedBase+sym.addr)
	}
	for _, sym := range s.general {
		consider(sym, sym.addr)
	}
	return name, uint32(a - best), ok
}

// Label returns a short symbolic form of a, such as "name" or "name+3", or
// the empty string when no symbol lies at or below a.
func (s *Symbols) Label(a addr28) string {
	name, delta, ok := s.Nearest(a)
	switch {
	case !ok:
		return ""
	case delta == 0:
		return name
	case delta > 0xff:
		return fmt.Sprintf("%s+$%x", name, delta)
	}
	return fmt.Sprintf("%s+%d", name, delta)
}

// Describe returns a with its label, for error messages.
func (s *Symbols) Describe(a addr28) string {
	name, delta, ok := s.Nearest(a)
	switch {
	case !ok:
		return fmt.Sprintf("$%07X", uint32(a))
	case delta == 0:
		return fmt.Sprintf("$%07X (first instruction in %s)", uint32(a), name)
	}
	return fmt.Sprintf("$%07X (at %s)", uint32(a), s.Label(a))
}

// copyRange duplicates the general symbols in [src, src+n) at the same
// offsets from dst. It returns the number of symbols added.
func (s *Symbols) copyRange(src, dst addr28, n uint32) int {
	count := 0
	for _, sym := range s.general {
		if sym.addr >= src && uint32(sym.addr-src) < n {
			s.general = append(s.general, symbol{sym.name, dst + (sym.addr - src)})
			count++
		}
	}
	return count
}

// eraseRange removes the general symbols in [dst, dst+n). It returns the
// number removed.
func (s *Symbols) eraseRange(dst addr28, n uint32) int {
	kept := s.general[:0]
	for _, sym := range s.general {
		if sym.addr >= dst && uint32(sym.addr-dst) < n {
			continue
		}
		kept = append(kept, sym)
	}
	erased := len(s.general) - len(kept)
	s.general = kept
	return erased
}

// symbolLine is one line of a symbol list: either "name = $1234" or the
// VICE form "al 001234 name".
type symbolLine struct {
	Assign *symbolAssign `  @@`
	VICE   *symbolVICE   `| @@`
}

type symbolAssign struct {
	Name  string `@Word "="`
	Value string `@Hex`
}

type symbolVICE struct {
	Value string `"al" @(Word | Hex)`
	Name  string `@Word`
}

var symbolLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[\s]+`},
	{Name: "Hex", Pattern: `\$[0-9A-Fa-f]+`},
	{Name: "Punct", Pattern: `=`},
	{Name: "Word", Pattern: `[^\s=]+`},
})

var symbolParser = participle.MustBuild[symbolLine](
	participle.Lexer(symbolLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// parseSymbolLine returns the name and address on line. Lines in neither
// format are reported as !ok.
func parseSymbolLine(line string, vice bool) (name string, a addr28, ok bool) {
	l, err := symbolParser.ParseString("", line)
	if err != nil {
		return "", 0, false
	}
	var digits string
	switch {
	case l.Assign != nil:
		name, digits = l.Assign.Name, l.Assign.Value
	case l.VICE != nil && vice:
		name, digits = l.VICE.Name, l.VICE.Value
	default:
		return "", 0, false
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(digits, "$"), 16, 32)
	if err != nil {
		return "", 0, false
	}
	return name, addr28(v), true
}

// loadSymbols reads a symbol list from r, calling add for each symbol. Lines
// that are not symbol definitions are skipped.
func loadSymbols(r io.Reader, vice bool, add func(string, addr28)) (int, error) {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		name, a, ok := parseSymbolLine(sc.Text(), vice)
		if !ok {
			continue
		}
		add(name, a)
		n++
	}
	return n, sc.Err()
}

// LoadPrivileged reads "name = $offset" lines into the privileged scope.
func (s *Symbols) LoadPrivileged(r io.Reader) (int, error) {
	return loadSymbols(r, false, s.AddPrivileged)
}

// LoadGeneral reads symbols in either format into the general scope, adding
// offset to each address.
func (s *Symbols) LoadGeneral(r io.Reader, offset addr28) (int, error) {
	return loadSymbols(r, true, func(name string, a addr28) {
		s.AddGeneral(name, a+offset)
	})
}
