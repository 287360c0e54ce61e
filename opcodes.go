package main

// mode is an addressing mode.
type mode uint8

const (
	implied mode = iota
	immediate
	immediate3 // #$nn followed by an unused byte
	zeroPage   // $nn, relative to B
	zeroPageX  // $nn,X
	absolute   // $nnnn
	absoluteX  // $nnnn,X
	absoluteY  // $nnnn,Y
	indirect   // ($nnnn)
	indZPY     // ($nn),Y
	indZPZ     // ($nn),Z or [$nn],Z after a NOP
	relative   // 8 bit branch
	relative16 // unsigned 8 bit offset in a 3 byte branch
	relativeW  // 16 bit offset from the end of the instruction
)

var modeLen = [...]uint8{
	implied:    1,
	immediate:  2,
	immediate3: 3,
	zeroPage:   2,
	zeroPageX:  2,
	absolute:   3,
	absoluteX:  3,
	absoluteY:  3,
	indirect:   3,
	indZPY:     2,
	indZPZ:     2,
	relative:   2,
	relative16: 3,
	relativeW:  3,
}

// instruction is one entry of the opcode table.
type instruction struct {
	name string
	mode mode
	exec func(*Machine, operand) error
}

func (in *instruction) len() uint8 { return modeLen[in.mode] }

var opcodes [256]*instruction

func op(code byte, name string, md mode, exec func(*Machine, operand) error) {
	if opcodes[code] != nil {
		panic("opcode registered twice")
	}
	opcodes[code] = &instruction{name: name, mode: md, exec: exec}
}

func init() {
	op(0x00, "BRK", immediate, brk)
	op(0x03, "SEE", implied, setFlag(FLAGE))
	op(0x08, "PHP", implied, pushReg(func(r *Registers) byte { return r.Flags }))
	op(0x09, "ORA", immediate, ora)
	op(0x0c, "TSB", absolute, tsb)
	op(0x10, "BPL", relative, branchIf(FLAGN, false))
	op(0x13, "BPL", relative16, branchIf(FLAGN, false))
	op(0x18, "CLC", implied, clearFlag(FLAGC))
	op(0x1a, "INC", implied, incReg(func(r *Registers) *byte { return &r.A }, 1))
	op(0x1b, "INZ", implied, incReg(func(r *Registers) *byte { return &r.Z }, 1))
	op(0x1c, "TRB", absolute, trb)
	op(0x20, "JSR", absolute, jsr)
	op(0x22, "JSR", indirect, jsr)
	op(0x28, "PLP", implied, plp)
	op(0x29, "AND", immediate, and)
	op(0x2b, "TYS", implied, tys)
	op(0x2c, "BIT", absolute, bit)
	op(0x30, "BMI", relative, branchIf(FLAGN, true))
	op(0x33, "BMI", relative16, branchIf(FLAGN, true))
	op(0x38, "SEC", implied, setFlag(FLAGC))
	op(0x3a, "DEC", implied, incReg(func(r *Registers) *byte { return &r.A }, -1))
	op(0x48, "PHA", implied, pushReg(func(r *Registers) byte { return r.A }))
	op(0x4b, "TAZ", implied, transfer(func(r *Registers) (*byte, byte) { return &r.Z, r.A }, true))
	op(0x4c, "JMP", absolute, jmp)
	op(0x58, "CLI", implied, clearFlag(FLAGI))
	op(0x5a, "PHY", implied, pushReg(func(r *Registers) byte { return r.Y }))
	op(0x5b, "TAB", implied, transfer(func(r *Registers) (*byte, byte) { return &r.B, r.A }, false))
	op(0x5c, "MAP", implied, mapOp)
	op(0x60, "RTS", implied, rts)
	op(0x65, "ADC", zeroPage, adcAddr)
	op(0x68, "PLA", implied, pullReg(func(r *Registers) *byte { return &r.A }))
	op(0x69, "ADC", immediate, adc)
	op(0x6b, "TZA", implied, transfer(func(r *Registers) (*byte, byte) { return &r.A, r.Z }, true))
	op(0x78, "SEI", implied, setFlag(FLAGI))
	op(0x7a, "PLY", implied, pullReg(func(r *Registers) *byte { return &r.Y }))
	op(0x80, "BRA", relative, branchAlways)
	op(0x83, "BRA", relative16, branchAlways)
	op(0x84, "STY", zeroPage, store(func(r *Registers) byte { return r.Y }))
	op(0x85, "STA", zeroPage, store(func(r *Registers) byte { return r.A }))
	op(0x86, "STX", zeroPage, store(func(r *Registers) byte { return r.X }))
	op(0x88, "DEY", implied, incReg(func(r *Registers) *byte { return &r.Y }, -1))
	op(0x89, "BIT", immediate3, bit)
	op(0x8a, "TXA", implied, transfer(func(r *Registers) (*byte, byte) { return &r.A, r.X }, true))
	op(0x8c, "STY", absolute, store(func(r *Registers) byte { return r.Y }))
	op(0x8d, "STA", absolute, store(func(r *Registers) byte { return r.A }))
	op(0x8e, "STX", absolute, store(func(r *Registers) byte { return r.X }))
	op(0x90, "BCC", relative, branchIf(FLAGC, false))
	op(0x91, "STA", indZPY, store(func(r *Registers) byte { return r.A }))
	op(0x92, "STA", indZPZ, store(func(r *Registers) byte { return r.A }))
	op(0x93, "BCC", relativeW, branchIf(FLAGC, false))
	op(0x99, "STA", absoluteY, store(func(r *Registers) byte { return r.A }))
	op(0x9a, "TXS", implied, transfer(func(r *Registers) (*byte, byte) { return &r.SPL, r.X }, false))
	op(0x9c, "STZ", absolute, store(func(r *Registers) byte { return r.Z }))
	op(0x9d, "STA", absoluteX, store(func(r *Registers) byte { return r.A }))
	op(0xa0, "LDY", immediate, load(func(r *Registers) *byte { return &r.Y }))
	op(0xa2, "LDX", immediate, load(func(r *Registers) *byte { return &r.X }))
	op(0xa3, "LDZ", immediate, load(func(r *Registers) *byte { return &r.Z }))
	op(0xa4, "LDY", zeroPage, load(func(r *Registers) *byte { return &r.Y }))
	op(0xa5, "LDA", zeroPage, load(func(r *Registers) *byte { return &r.A }))
	op(0xa6, "LDX", zeroPage, load(func(r *Registers) *byte { return &r.X }))
	op(0xa8, "TAY", implied, transfer(func(r *Registers) (*byte, byte) { return &r.Y, r.A }, true))
	op(0xa9, "LDA", immediate, load(func(r *Registers) *byte { return &r.A }))
	op(0xaa, "TAX", implied, transfer(func(r *Registers) (*byte, byte) { return &r.X, r.A }, true))
	op(0xad, "LDA", absolute, load(func(r *Registers) *byte { return &r.A }))
	op(0xae, "LDX", absolute, load(func(r *Registers) *byte { return &r.X }))
	op(0xb0, "BCS", relative, branchIf(FLAGC, true))
	op(0xb1, "LDA", indZPY, load(func(r *Registers) *byte { return &r.A }))
	op(0xb9, "LDA", absoluteY, load(func(r *Registers) *byte { return &r.A }))
	op(0xbd, "LDA", absoluteX, load(func(r *Registers) *byte { return &r.A }))
	op(0xc0, "CPY", immediate, compare(func(r *Registers) byte { return r.Y }, true))
	op(0xc8, "INY", implied, incReg(func(r *Registers) *byte { return &r.Y }, 1))
	op(0xc9, "CMP", immediate, compare(func(r *Registers) byte { return r.A }, false))
	op(0xca, "DEX", implied, incReg(func(r *Registers) *byte { return &r.X }, -1))
	op(0xcc, "CPY", absolute, compareAddr(func(r *Registers) byte { return r.Y }))
	op(0xcd, "CMP", absolute, compareAddr(func(r *Registers) byte { return r.A }))
	op(0xce, "DEC", absolute, incMem(-1))
	op(0xd0, "BNE", relative, branchIf(FLAGZ, false))
	op(0xd8, "CLD", implied, clearFlag(FLAGD))
	op(0xda, "PHX", implied, pushReg(func(r *Registers) byte { return r.X }))
	op(0xdb, "PHZ", implied, pushReg(func(r *Registers) byte { return r.Z }))
	op(0xe0, "CPX", immediate, compare(func(r *Registers) byte { return r.X }, true))
	op(0xe8, "INX", implied, incReg(func(r *Registers) *byte { return &r.X }, 1))
	op(0xea, "EOM", implied, eom)
	op(0xec, "CPX", absolute, compare(func(r *Registers) byte { return r.X }, true))
	op(0xed, "SBC", absolute, sbcAddr)
	op(0xee, "INC", absolute, incMem(1))
	op(0xf0, "BEQ", relative, branchIf(FLAGZ, true))
	op(0xf6, "INC", zeroPageX, incMem(1))
	op(0xfa, "PLX", implied, pullReg(func(r *Registers) *byte { return &r.X }))
	op(0xfb, "PLZ", implied, pullReg(func(r *Registers) *byte { return &r.Z }))
}

// operand resolves the operand of the instruction in r.
type operand struct {
	m    *Machine
	r    *Record
	mode mode
}

func (o operand) imm() byte { return o.r.Bytes[1] }

func (o operand) abs() uint32 { return uint32(o.r.Bytes[1]) | uint32(o.r.Bytes[2])<<8 }

// zp returns the address of byte i of the zero page pointer. A pointer at
// $FF continues into the next page.
func (o operand) zp(i byte) uint32 {
	return (uint32(o.r.Regs.B)<<8 + uint32(o.r.Bytes[1]) + uint32(i)) & 0xffff
}

// wide reports whether the instruction was prefixed by a NOP, which
// selects a 32 bit zero page pointer.
func (o operand) wide() bool {
	prev := o.m.trace.previous(o.r)
	return o.mode == indZPZ && prev != nil && prev.Bytes[0] == 0xea
}

// pointer reads an n byte little endian pointer from the zero page.
func (o operand) pointer(n byte) (uint32, error) {
	var p uint32
	for i := byte(0); i < n; i++ {
		v, err := o.m.read16(o.zp(i))
		if err != nil {
			return 0, err
		}
		p |= uint32(v) << (8 * i)
	}
	o.r.Ptr = o.zp(0)
	return p, nil
}

// addr returns the effective 16 bit address. For [$nn],Z the result is a
// 28 bit physical address.
func (o operand) addr() (uint32, error) {
	regs := &o.m.Regs
	switch o.mode {
	case zeroPage:
		return o.zp(0), nil
	case zeroPageX:
		return (o.zp(0) + uint32(regs.X)) & 0xffff, nil
	case absolute:
		return o.abs(), nil
	case absoluteX:
		return (o.abs() + uint32(regs.X)) & 0xffff, nil
	case absoluteY:
		return (o.abs() + uint32(regs.Y)) & 0xffff, nil
	case indirect:
		lo, err := o.m.read16(o.abs())
		if err != nil {
			return 0, err
		}
		hi, err := o.m.read16((o.abs() + 1) & 0xffff)
		if err != nil {
			return 0, err
		}
		o.r.Ptr = o.abs()
		o.r.PtrAddr = uint32(lo) | uint32(hi)<<8
		return o.r.PtrAddr, nil
	case indZPY, indZPZ:
		index := regs.Y
		if o.mode == indZPZ {
			index = regs.Z
		}
		if o.wide() {
			p, err := o.pointer(4)
			if err != nil {
				return 0, err
			}
			o.r.Wide = true
			o.r.PtrAddr = (p + uint32(index)) & 0xfffffff
			return o.r.PtrAddr, nil
		}
		p, err := o.pointer(2)
		if err != nil {
			return 0, err
		}
		o.r.PtrAddr = (p + uint32(index)) & 0xffff
		return o.r.PtrAddr, nil
	}
	panic("addressing mode has no address")
}

func (o operand) load() (byte, error) {
	if o.mode == immediate || o.mode == immediate3 {
		return o.imm(), nil
	}
	a, err := o.addr()
	if err != nil {
		return 0, err
	}
	if o.r.Wide {
		return o.m.mem.read28(addr28(a)), nil
	}
	return o.m.read16(a)
}

func (o operand) store(v byte) error {
	a, err := o.addr()
	if err != nil {
		return err
	}
	if o.r.Wide {
		return o.m.write28(addr28(a), v)
	}
	return o.m.write16(a, v)
}

// target returns the branch destination. One byte offsets are relative to
// PC+2, signed for 2 byte branches and unsigned for 3 byte ones. The 16 bit
// offset of BCC $93 is relative to PC+3.
func (o operand) target() uint16 {
	pc := o.r.PC
	switch o.mode {
	case relative16:
		return pc + 2 + uint16(o.r.Bytes[1])
	case relativeW:
		return pc + 3 + (uint16(o.r.Bytes[1]) | uint16(o.r.Bytes[2])<<8)
	}
	return pc + 2 + uint16(int8(o.r.Bytes[1]))
}
