package main

// Physical locations of the C64 ROM images and the IO window that the legacy
// bank control overlays onto the 16 bit address space.
const (
	charROMBase   = 0x2d000
	basicROMBase  = 0x2a000
	kernalROMBase = 0x2e000
	ioOverlayBase = 0xffd3000
)

// lnc derives the 3 bit legacy bank control value from the CPU port
// registers at $00 (data direction) and $01 (data).
func lnc(ddr, port byte) int {
	return int(port&7) | int(^ddr&7)
}

// decode translates the 16 bit CPU address a into a physical address. The
// result depends only on the registers, the two CPU port bytes and a; the
// MAP windows take priority over the legacy ROM and IO overlays.
func decode(r *Registers, ddr, port byte, a uint32, wr bool) (addr28, error) {
	if a > 0xffff {
		return 0, AddressRangeError{Addr: a, Write: wr}
	}

	zone := a >> 13
	if zone < 4 {
		if (r.MapLo>>(12+zone))&1 == 1 {
			return addr28(a) + addr28(r.MapLo&0xfff)<<8 + addr28(r.MapLoMB)<<20, nil
		}
	} else if (r.MapHi>>(12+zone-4))&1 == 1 {
		return addr28(a) + addr28(r.MapHi&0xfff)<<8 + addr28(r.MapHiMB)<<20, nil
	}

	bank := a >> 12
	bc := lnc(ddr, port)
	switch {
	case bank == 0xd:
		switch bc {
		case 1, 2, 3:
			if !wr {
				return addr28(a&0xfff | charROMBase), nil
			}
		case 5, 6, 7:
			return addr28(a&0xfff | ioOverlayBase), nil
		}
	case wr:
	case bank == 0xa || bank == 0xb:
		if bc == 3 || bc == 7 {
			return addr28(a&0x1fff | basicROMBase), nil
		}
	case bank == 0xe || bank == 0xf:
		switch bc {
		case 2, 3, 6, 7:
			return addr28(a&0x1fff | kernalROMBase), nil
		}
	}
	return addr28(a), nil
}

// decode translates a for the machine's current register and CPU port state.
func (m *Machine) decode(a uint32, wr bool) (addr28, error) {
	pa, err := decode(&m.Regs, m.mem.chip.data[0], m.mem.chip.data[1], a, wr)
	if err != nil {
		m.Term.Error = true
		m.logf("ERROR: %v\n", err)
	}
	return pa, err
}
