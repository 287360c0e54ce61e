package main

import (
	"fmt"
	"strings"
)

// operandText formats the operand of r for its addressing mode.
func operandText(md mode, r *Record) string {
	b := r.Bytes
	switch md {
	case immediate, immediate3:
		return fmt.Sprintf("#$%02X", b[1])
	case zeroPage:
		return fmt.Sprintf("$%02X", b[1])
	case zeroPageX:
		return fmt.Sprintf("$%02X,X", b[1])
	case absolute:
		return fmt.Sprintf("$%02X%02X", b[2], b[1])
	case absoluteX:
		return fmt.Sprintf("$%02X%02X,X", b[2], b[1])
	case absoluteY:
		return fmt.Sprintf("$%02X%02X,Y", b[2], b[1])
	case indirect:
		return fmt.Sprintf("($%02X%02X) {PTR=$%04X,ADDR=$%04X}", b[2], b[1], r.Ptr, r.PtrAddr)
	case indZPY:
		return fmt.Sprintf("($%02X),Y {PTR=$%04X,ADDR16=$%04X}", b[1], r.Ptr, r.PtrAddr)
	case indZPZ:
		if r.Wide {
			return fmt.Sprintf("[$%02X],Z {PTR=$%04X,ADDR32=$%07X}", b[1], r.Ptr, r.PtrAddr)
		}
		return fmt.Sprintf("($%02X),Z {PTR=$%04X,ADDR16=$%04X}", b[1], r.Ptr, r.PtrAddr)
	case relative, relative16, relativeW:
		o := operand{r: r, mode: md}
		return fmt.Sprintf("$%04X", o.target())
	}
	return ""
}

// disassemble returns one line of assembly for r. Instructions that pull
// from the stack are annotated with the instructions that pushed the bytes.
func (m *Machine) disassemble(r *Record) string {
	return m.format(r, true)
}

func (m *Machine) format(r *Record, provenance bool) string {
	if r == nil || r.Len == 0 {
		return ""
	}
	in := opcodes[r.Bytes[0]]
	if in == nil {
		return "???"
	}
	var sb strings.Builder
	sb.WriteString(in.name)
	if s := operandText(in.mode, r); s != "" {
		sb.WriteByte(' ')
		sb.WriteString(s)
	}

	switch {
	case !provenance:
	case in.name == "RTS":
		sb.WriteString(" {Address pushed by ")
		if r.Pops[0] != r.Pops[1] {
			sb.WriteString(" two different instructions: ")
			sb.WriteString(m.pushedBy(r.Pops[0]))
			sb.WriteString(" and ")
			sb.WriteString(m.pushedBy(r.Pops[1]))
		} else {
			sb.WriteString(m.pushedBy(r.Pops[0]))
		}
		sb.WriteByte('}')
	case strings.HasPrefix(in.name, "PL"):
		sb.WriteString(" {Pushed by ")
		sb.WriteString(m.pushedBy(r.Pops[0]))
		sb.WriteByte('}')
	}
	return sb.String()
}

// pushedBy describes the instruction at trace index i. The pusher is shown
// without its own provenance, so a stale index cannot recurse.
func (m *Machine) pushedBy(i uint32) string {
	r := m.trace.At(i)
	if r == nil {
		return "<uninitialised stack location>"
	}
	return fmt.Sprintf("$%04X %s", r.PC, m.format(r, false))
}
