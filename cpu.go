package main

// Run executes from pc until Done is set or an instruction fails. A
// positive rts is the number of RTS instructions, nested or not, after
// which the routine is considered finished; zero runs until BRK, a
// breakpoint or a fault.
func (m *Machine) Run(pc uint16, rts int) error {
	m.Term.Done = false
	m.Term.BRK = false
	m.Term.RTS = rts
	m.stackOverflow, m.stackUnderflow = false, false
	m.trace.Reset()
	m.seq = 0
	m.Regs.PC = pc

	for !m.Term.Done {
		if err := m.step(); err != nil {
			return err
		}
	}
	return nil
}

// step executes one instruction.
func (m *Machine) step() error {
	pc := m.Regs.PC
	if m.breakpoints[pc] {
		m.logf("INFO: Breakpoint at %s ($%04X) triggered.\n", m.Symbols.Label(m.pcAddr(pc)), pc)
		m.Term.Done = true
		return nil
	}

	r, err := m.trace.begin(m.Regs)
	if err != nil {
		m.logf("ERROR: %v. Maybe a problem with the called routine?\n", err)
		return m.fail(err)
	}
	m.seq = r.Seq

	// Fetch the longest possible instruction; reads have no side effects.
	for i := range r.Bytes {
		b, err := m.read16(uint32(pc + uint16(i)))
		if err != nil {
			return m.fail(err)
		}
		r.Bytes[i] = b
	}

	in := opcodes[r.Bytes[0]]
	if in == nil {
		m.trace.drop()
		return m.fail(UnimplementedOpcodeError{Opcode: r.Bytes[0], PC: pc})
	}
	r.Len = in.len()

	m.jumped = false
	if err := in.exec(m, operand{m: m, r: r, mode: in.mode}); err != nil {
		return m.fail(err)
	}
	if !m.jumped {
		m.Regs.PC = pc + uint16(r.Len)
	}
	m.seq = uint32(m.trace.Len())

	// A terminating return is expected to unwind past the top of the stack.
	if !m.Term.Done {
		if m.stackUnderflow {
			return m.fail(StackUnderflowError{PC: pc})
		}
		if m.stackOverflow {
			return m.fail(StackOverflowError{PC: pc})
		}
	}

	if err := m.trace.settle(r); err != nil {
		return m.fail(err)
	}
	return nil
}

// pcAddr returns the physical address an instruction at pc is fetched from.
func (m *Machine) pcAddr(pc uint16) addr28 {
	pa, err := decode(&m.Regs, m.mem.chip.data[0], m.mem.chip.data[1], uint32(pc), false)
	if err != nil {
		return addr28(pc)
	}
	return pa
}

func (m *Machine) jump(pc uint16) {
	m.Regs.PC = pc
	m.jumped = true
}

// push stores v at the stack pointer, then moves it down. Overflow is
// flagged when SPL wraps from $00 with E set, or when the push is at $0000
// and the 16 bit stack pointer wraps to $FFFF.
func (m *Machine) push(v byte) error {
	a := m.Regs.sp()
	if err := m.write16(uint32(a), v); err != nil {
		return err
	}
	m.Regs.SPL--
	if a&0xff == 0 {
		if m.Regs.Flags&FLAGE == 0 {
			m.Regs.SPH--
		} else {
			m.stackOverflow = true
		}
		if a == 0 {
			m.stackOverflow = true
		}
	}
	return nil
}

// pull moves the stack pointer up and returns the byte it then points at,
// recording which instruction wrote it.
func (m *Machine) pull(r *Record) (byte, error) {
	m.Regs.SPL++
	if m.Regs.SPL == 0 {
		if m.Regs.Flags&FLAGE == 0 {
			m.Regs.SPH++
			if m.Regs.SPH == 0 {
				m.stackUnderflow = true
			}
		} else {
			m.stackUnderflow = true
		}
	}
	a := uint32(m.Regs.sp())
	v, err := m.read16(a)
	if err != nil {
		return 0, err
	}
	r.pop(m.blame16(a))
	return v, nil
}

// setNZ sets Z if v is zero and copies bit 7 of v into N.
func (m *Machine) setNZ(v byte) {
	m.Regs.Flags &^= FLAGN | FLAGZ
	if v == 0 {
		m.Regs.Flags |= FLAGZ
	}
	m.Regs.Flags |= v & FLAGN
}

// setNZC sets N and Z from the low byte of v and C if v exceeds a byte.
// V is always cleared.
func (m *Machine) setNZC(v int) {
	m.setNZ(byte(v))
	m.Regs.Flags &^= FLAGC | FLAGV
	if v > 0xff {
		m.Regs.Flags |= FLAGC
	}
}

func (m *Machine) carry() int {
	return int(m.Regs.Flags & FLAGC)
}
