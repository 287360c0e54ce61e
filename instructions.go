package main

// Instruction handlers. Arithmetic follows the hypervisor test semantics
// rather than the silicon: decimal mode is ignored, V is never computed, and
// a few forms add the operand address instead of the byte it points at.

func brk(m *Machine, _ operand) error {
	m.Term.Error = true
	m.Term.BRK = true
	m.Term.Done = true
	return nil
}

func setFlag(f uint8) func(*Machine, operand) error {
	return func(m *Machine, _ operand) error {
		m.Regs.Flags |= f
		return nil
	}
}

func clearFlag(f uint8) func(*Machine, operand) error {
	return func(m *Machine, _ operand) error {
		m.Regs.Flags &^= f
		return nil
	}
}

func load(reg func(*Registers) *byte) func(*Machine, operand) error {
	return func(m *Machine, o operand) error {
		v, err := o.load()
		if err != nil {
			return err
		}
		*reg(&m.Regs) = v
		m.setNZ(v)
		return nil
	}
}

func store(reg func(*Registers) byte) func(*Machine, operand) error {
	return func(m *Machine, o operand) error {
		return o.store(reg(&m.Regs))
	}
}

// transfer copies one register to another, optionally setting N and Z.
func transfer(regs func(*Registers) (*byte, byte), nz bool) func(*Machine, operand) error {
	return func(m *Machine, _ operand) error {
		dst, v := regs(&m.Regs)
		*dst = v
		if nz {
			m.setNZ(v)
		}
		return nil
	}
}

func tys(m *Machine, _ operand) error {
	m.Regs.SPH = m.Regs.Y
	return nil
}

func incReg(reg func(*Registers) *byte, d int) func(*Machine, operand) error {
	return func(m *Machine, _ operand) error {
		r := reg(&m.Regs)
		*r += byte(d)
		m.setNZ(*r)
		return nil
	}
}

func incMem(d int) func(*Machine, operand) error {
	return func(m *Machine, o operand) error {
		a, err := o.addr()
		if err != nil {
			return err
		}
		v, err := m.read16(a)
		if err != nil {
			return err
		}
		v += byte(d)
		if err := m.write16(a, v); err != nil {
			return err
		}
		m.setNZ(v)
		return nil
	}
}

func ora(m *Machine, o operand) error {
	m.Regs.A |= o.imm()
	m.setNZ(m.Regs.A)
	return nil
}

func and(m *Machine, o operand) error {
	m.Regs.A &= o.imm()
	m.setNZ(m.Regs.A)
	return nil
}

// modify performs a read-modify-write of the operand and sets N and Z from
// the stored value.
func modify(m *Machine, o operand, f func(byte) byte) error {
	a, err := o.addr()
	if err != nil {
		return err
	}
	v, err := m.read16(a)
	if err != nil {
		return err
	}
	v = f(v)
	if err := m.write16(a, v); err != nil {
		return err
	}
	m.setNZ(v)
	return nil
}

func tsb(m *Machine, o operand) error {
	return modify(m, o, func(v byte) byte { return v | m.Regs.A })
}

func trb(m *Machine, o operand) error {
	return modify(m, o, func(v byte) byte { return v &^ m.Regs.A })
}

func bit(m *Machine, o operand) error {
	v, err := o.load()
	if err != nil {
		return err
	}
	m.Regs.Flags &^= FLAGN | FLAGV | FLAGZ
	m.Regs.Flags |= v & (FLAGN | FLAGV)
	if v&m.Regs.A == 0 {
		m.Regs.Flags |= FLAGZ
	}
	return nil
}

func adc(m *Machine, o operand) error {
	v := int(m.Regs.A) + int(o.imm()) + m.carry()
	m.setNZC(v)
	m.Regs.A = byte(v)
	return nil
}

// adcAddr adds the zero page address itself, not its contents.
func adcAddr(m *Machine, o operand) error {
	v := int(m.Regs.A) + int(o.zp(0)) + m.carry()
	m.setNZC(v)
	m.Regs.A = byte(v)
	return nil
}

// sbcAddr subtracts the absolute address itself, not its contents.
func sbcAddr(m *Machine, o operand) error {
	v := int(m.Regs.A) - int(o.abs()) - 1 + m.carry()
	m.setNZC(v)
	m.Regs.A = byte(v)
	return nil
}

// compare adds the operand to the register, plus carry when withCarry is
// set, and sets N, Z and C from the sum. No register is changed.
func compare(reg func(*Registers) byte, withCarry bool) func(*Machine, operand) error {
	return func(m *Machine, o operand) error {
		v, err := o.load()
		if err != nil {
			return err
		}
		sum := int(reg(&m.Regs)) + int(v)
		if withCarry {
			sum += m.carry()
		}
		m.setNZC(sum)
		return nil
	}
}

// compareAddr is compare against the absolute address itself.
func compareAddr(reg func(*Registers) byte) func(*Machine, operand) error {
	return func(m *Machine, o operand) error {
		m.setNZC(int(reg(&m.Regs)) + int(o.abs()))
		return nil
	}
}

func branchIf(f uint8, set bool) func(*Machine, operand) error {
	return func(m *Machine, o operand) error {
		if (m.Regs.Flags&f != 0) == set {
			m.jump(o.target())
		}
		return nil
	}
}

func branchAlways(m *Machine, o operand) error {
	m.jump(o.target())
	return nil
}

func jmp(m *Machine, o operand) error {
	a, err := o.addr()
	if err != nil {
		return err
	}
	m.jump(uint16(a))
	return nil
}

// jsr pushes the address of the last byte of the instruction, high byte
// first. Nested calls do not extend the return budget.
func jsr(m *Machine, o operand) error {
	ret := o.r.PC + 2
	if err := m.push(byte(ret >> 8)); err != nil {
		return err
	}
	if err := m.push(byte(ret)); err != nil {
		return err
	}
	return jmp(m, o)
}

func rts(m *Machine, o operand) error {
	if m.Term.RTS > 0 {
		m.Term.RTS--
		if m.Term.RTS == 0 {
			m.logf("INFO: Terminating via RTS\n")
			m.Term.Done = true
		}
	}
	lo, err := m.pull(o.r)
	if err != nil {
		return err
	}
	hi, err := m.pull(o.r)
	if err != nil {
		return err
	}
	m.jump((uint16(lo) | uint16(hi)<<8) + 1)
	return nil
}

func pushReg(reg func(*Registers) byte) func(*Machine, operand) error {
	return func(m *Machine, _ operand) error {
		return m.push(reg(&m.Regs))
	}
}

func pullReg(reg func(*Registers) *byte) func(*Machine, operand) error {
	return func(m *Machine, o operand) error {
		v, err := m.pull(o.r)
		if err != nil {
			return err
		}
		*reg(&m.Regs) = v
		m.setNZ(v)
		return nil
	}
}

// plp restores the flags from the stack. E cannot be changed this way.
func plp(m *Machine, o operand) error {
	v, err := m.pull(o.r)
	if err != nil {
		return err
	}
	m.Regs.Flags = m.Regs.Flags&FLAGE | v&^FLAGE
	return nil
}

// mapOp loads the MAP registers. The upper window is only writable outside
// the hypervisor.
func mapOp(m *Machine, _ operand) error {
	r := &m.Regs
	if r.X == 0x0f {
		r.MapLoMB = r.A
	} else {
		r.MapLo = uint16(r.A) | uint16(r.X)<<8
	}
	if !r.InHyper {
		if r.Z == 0x0f {
			r.MapHiMB = r.Y
		} else {
			r.MapHi = uint16(r.Y) | uint16(r.Z)<<8
		}
	}
	r.MapIRQInhibit = true
	return nil
}

// eom ends a MAP sequence; as a prefix it also selects 32 bit pointers for
// the following instruction.
func eom(m *Machine, _ operand) error {
	m.Regs.MapIRQInhibit = false
	return nil
}
