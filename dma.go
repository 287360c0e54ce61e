package main

// DMA option bytes. Options with bit 7 set carry one argument byte.
const (
	dmaOptTransparencyOff = 0x06
	dmaOptTransparencyOn  = 0x07
	dmaOptF018A           = 0x0a
	dmaOptF018B           = 0x0b
	dmaOptFloppy          = 0x0d
	dmaOptFloppyIgnoreFF  = 0x0e
	dmaOptFloppyAllBytes  = 0x0f
	dmaOptSpiral          = 0x53
	dmaOptSrcMB           = 0x80
	dmaOptDstMB           = 0x81
	dmaOptSrcSkipLo       = 0x82
	dmaOptSrcSkipHi       = 0x83
	dmaOptDstSkipLo       = 0x84
	dmaOptDstSkipHi       = 0x85
	dmaOptTransparent     = 0x86
	dmaOptDstLine         = 0x87 // $87-$8F
	dmaOptCount           = 0x90
	dmaOptSrcLine         = 0x97 // $97-$9F
)

const (
	dmaCopy = 0
	dmaFill = 3

	dmaChained = 0x04

	// dmaMaxCount is the element count encoded as zero.
	dmaMaxCount = 0x10000

	spiralLength = 39
)

// lineConfig configures one Bresenham line generator. The address space is
// laid out as 8x8 byte cards; X moves by 256 bytes and Y by 2048 bytes
// within a card.
type lineConfig struct {
	enabled  bool
	yMajor   bool // set: Y is the major axis
	negative bool // minor axis moves backwards

	xOffset  uint16 // added on crossing to the next card column
	yOffset  uint16 // added on crossing to the next card row
	slope    uint16
	fraction uint16 // initial accumulator value
}

// option applies line option n (0-8) with argument v.
func (c *lineConfig) option(n int, v byte) {
	switch n {
	case 0:
		c.xOffset = c.xOffset&0xff00 | uint16(v)
	case 1:
		c.xOffset = c.xOffset&0x00ff | uint16(v)<<8
	case 2:
		c.yOffset = c.yOffset&0xff00 | uint16(v)
	case 3:
		c.yOffset = c.yOffset&0x00ff | uint16(v)<<8
	case 4:
		c.slope = c.slope&0xff00 | uint16(v)
	case 5:
		c.slope = c.slope&0x00ff | uint16(v)<<8
	case 6:
		c.fraction = c.fraction&0xff00 | uint16(v)
	case 7:
		c.fraction = c.fraction&0x00ff | uint16(v)<<8
	case 8:
		c.enabled = v&0x80 != 0
		c.yMajor = v&0x40 != 0
		c.negative = v&0x20 != 0
	}
}

// dmaJob is the configuration decoded from an enhanced DMA option chain.
// It persists across chained jobs of one dispatch.
type dmaJob struct {
	f018b bool

	transparency     bool
	transparentValue byte
	floppy           bool
	floppyIgnoreFF   bool
	spiral           bool

	srcMB, dstMB     byte
	srcSkip, dstSkip dmaSkip

	countHi uint32 // bits 16-23 of the count, for this job only

	src, dst lineConfig
}

// dmaSkip is the byte distance between elements. Without a skip option a
// job moves one byte per element; the first option for a side starts it
// from zero.
type dmaSkip struct {
	v   uint16
	set bool
}

func (s *dmaSkip) setByte(hi bool, b byte) {
	if !s.set {
		s.v, s.set = 0, true
	}
	if hi {
		s.v = s.v&0x00ff | uint16(b)<<8
	} else {
		s.v = s.v&0xff00 | uint16(b)
	}
}

func (s dmaSkip) delta() uint32 {
	if !s.set {
		return 1
	}
	return uint32(s.v)
}

// dmaRecord is the fixed part of a DMA job.
type dmaRecord struct {
	command uint16
	count   uint32
	src     uint32 // 24 bits as stored
	dst     uint32
	modulo  uint16
}

func (r *dmaRecord) op() int { return int(r.command & 3) }

// direction, hold and modulo flags for one side of the job.
type dmaFlags struct {
	down, hold, modulo bool
}

// flags extracts the stepping flags from the command word (F018B) or from
// the top byte of each address (F018A).
func (r *dmaRecord) flags(f018b bool) (src, dst dmaFlags) {
	bit := func(v uint32, n uint) bool { return (v>>n)&1 == 1 }
	if f018b {
		c := uint32(r.command)
		return dmaFlags{down: bit(c, 4), modulo: bit(c, 8), hold: bit(c, 9)},
			dmaFlags{down: bit(c, 5), modulo: bit(c, 10), hold: bit(c, 11)}
	}
	return dmaFlags{down: bit(r.src, 22), modulo: bit(r.src, 21), hold: bit(r.src, 20)},
		dmaFlags{down: bit(r.dst, 22), modulo: bit(r.dst, 21), hold: bit(r.dst, 20)}
}

// stepper advances one side's address after each element.
type stepper interface {
	step(a addr28) addr28
}

// linearStepper moves by a fixed number of bytes in one direction.
type linearStepper struct {
	skip uint32
	down bool
	hold bool
}

func (s *linearStepper) step(a addr28) addr28 {
	switch {
	case s.hold:
		return a
	case s.down:
		return a - addr28(s.skip)
	}
	return a + addr28(s.skip)
}

// lineStepper walks a line across a card based bitmap. The major axis moves
// forward every element; the minor axis moves each time the slope
// accumulator carries into bit 16.
type lineStepper struct {
	cfg    lineConfig
	frac   uint32
	toggle uint32
}

func newLineStepper(cfg lineConfig) *lineStepper {
	return &lineStepper{cfg: cfg, frac: uint32(cfg.fraction)}
}

func (s *lineStepper) step(a addr28) addr28 {
	s.frac = (s.frac + uint32(s.cfg.slope)) & 0x1ffff
	var dx, dy int
	if s.cfg.yMajor {
		dy = 1
	} else {
		dx = 1
	}
	if carry := s.frac & 0x10000; carry != s.toggle {
		s.toggle = carry
		minor := 1
		if s.cfg.negative {
			minor = -1
		}
		if s.cfg.yMajor {
			dx = minor
		} else {
			dy = minor
		}
	}
	return offset(a, s.moveX(a, dx)+s.moveY(a, dy))
}

// moveX returns the address delta for moving d pixels along X from a.
func (s *lineStepper) moveX(a addr28, d int) int {
	x := (a >> 8) & 7
	switch {
	case d > 0 && x == 7:
		return 0x100 + int(s.cfg.xOffset)<<8
	case d > 0:
		return 0x100
	case d < 0 && x == 0:
		return -(0x100 + int(s.cfg.xOffset)<<8)
	case d < 0:
		return -0x100
	}
	return 0
}

// moveY returns the address delta for moving d pixels along Y from a.
func (s *lineStepper) moveY(a addr28, d int) int {
	y := (a >> 11) & 7
	switch {
	case d > 0 && y == 7:
		return 0x800 + int(s.cfg.yOffset)<<8
	case d > 0:
		return 0x800
	case d < 0 && y == 0:
		return -(0x800 + int(s.cfg.yOffset)<<8)
	case d < 0:
		return -0x800
	}
	return 0
}

func offset(a addr28, d int) addr28 {
	return addr28(int64(a) + int64(d))
}

// spiralStepper paints the fixed spiral used by the boot cursor: runs of
// +$100, +$2800, -$100 and -$2800 that shorten as the spiral closes. The
// direction changes once per completed run, not on every element.
type spiralStepper struct {
	length    int
	remaining int
	phase     int
}

func newSpiralStepper() *spiralStepper {
	return &spiralStepper{length: spiralLength, remaining: spiralLength - 1}
}

var spiralDeltas = [4]int{0x100, 0x2800, -0x100, -0x2800}

func (s *spiralStepper) step(a addr28) addr28 {
	a = offset(a, spiralDeltas[s.phase])
	if s.remaining > 0 {
		s.remaining--
	} else {
		if s.phase&1 == 0 {
			s.remaining = s.length - 16
		} else {
			s.remaining = s.length
		}
		if s.length > 0 {
			s.length--
		}
		s.phase = (s.phase + 1) & 3
	}
	return a
}

// dispatchDMA runs the DMA list at physical address a. Faults stop the
// whole dispatch; unknown options are reported and skipped.
func (m *Machine) dispatchDMA(a addr28, enhanced bool) error {
	if m.Term.LogDMA {
		e := ""
		if enhanced {
			e = "E"
		}
		d := m.mem.io.data
		m.logf("NOTE: %sDMA dispatched with list address $%07x\n", e, uint32(a))
		m.logf("      DMA addr regs contain $%02X $%02X $%02X $%02X $%02X $%02X\n",
			d[0x3700], d[0x3701], d[0x3702], d[0x3703], d[0x3704], d[0x3705])
		m.showRecent(m.log, "Instructions leading up to the DMA request", m.trace.Len()-32, 32)
	}

	var job dmaJob
	for {
		job.countHi = 0
		if enhanced {
			a = m.dmaOptions(a, &job)
			m.dmaLogf("INFO: End of DMA Options found. DMA list proper begins at $%07X (%s)\n",
				uint32(a), m.Symbols.Label(a))
		} else {
			m.dmaLogf("INFO: Non-enhanced DMA list proper begins at $%07X (%s)\n",
				uint32(a), m.Symbols.Label(a))
		}

		var rec dmaRecord
		a, rec = m.dmaRecord(a, job.f018b)
		rec.count |= job.countHi
		m.dmaLogf("INFO: DMA cmd=$%04X, src=$%07X, dst=$%07X, count=$%06X, modulo=$%04X\n",
			rec.command, rec.src&0xfffff, rec.dst&0xfffff, rec.count, rec.modulo)

		if err := m.runDMAJob(&job, &rec); err != nil {
			return err
		}
		if rec.command&dmaChained == 0 {
			return nil
		}
	}
}

func (m *Machine) dmaLogf(format string, args ...interface{}) {
	if m.Term.LogDMA {
		m.logf(format, args...)
	}
}

// dmaOptions decodes the option chain at a into job and returns the
// address after the terminating zero byte.
func (m *Machine) dmaOptions(a addr28, job *dmaJob) addr28 {
	for {
		at := a
		opt := m.mem.read28(a)
		a++
		if opt == 0 {
			return a
		}
		var arg byte
		if opt&0x80 != 0 {
			arg = m.mem.read28(a)
			a++
		}
		m.dmaLogf("INFO: DMA option $%02X $%02X\n", opt, arg)

		switch {
		case opt == dmaOptTransparencyOff:
			job.transparency = false
		case opt == dmaOptTransparencyOn:
			job.transparency = true
		case opt == dmaOptF018A:
			job.f018b = false
		case opt == dmaOptF018B:
			job.f018b = true
		case opt == dmaOptFloppy:
			job.floppy = true
		case opt == dmaOptFloppyIgnoreFF:
			job.floppy, job.floppyIgnoreFF = true, true
		case opt == dmaOptFloppyAllBytes:
			job.floppy, job.floppyIgnoreFF = true, false
		case opt == dmaOptSpiral:
			job.spiral = true
		case opt == dmaOptSrcMB:
			job.srcMB = arg
		case opt == dmaOptDstMB:
			job.dstMB = arg
		case opt == dmaOptSrcSkipLo, opt == dmaOptSrcSkipHi:
			job.srcSkip.setByte(opt == dmaOptSrcSkipHi, arg)
		case opt == dmaOptDstSkipLo, opt == dmaOptDstSkipHi:
			job.dstSkip.setByte(opt == dmaOptDstSkipHi, arg)
		case opt == dmaOptTransparent:
			job.transparentValue = arg
		case opt >= dmaOptDstLine && opt <= dmaOptDstLine+8:
			job.dst.option(int(opt-dmaOptDstLine), arg)
		case opt == dmaOptCount:
			job.countHi = uint32(arg) << 16
		case opt >= dmaOptSrcLine && opt <= dmaOptSrcLine+8:
			job.src.option(int(opt-dmaOptSrcLine), arg)
		default:
			err := UnknownDMAOptionError{Option: opt, Addr: at}
			m.logf("ERROR: %v\n", err)
		}
	}
}

// dmaRecord reads the fixed job record at a and returns the address after
// it.
func (m *Machine) dmaRecord(a addr28, f018b bool) (addr28, dmaRecord) {
	next := func(n int) uint32 {
		var v uint32
		for i := 0; i < n; i++ {
			v |= uint32(m.mem.read28(a)) << (8 * i)
			a++
		}
		return v
	}
	var r dmaRecord
	r.command = uint16(next(1))
	r.count = next(2)
	r.src = next(3)
	r.dst = next(3)
	if f018b {
		r.command |= uint16(next(1)) << 8
	}
	r.modulo = uint16(next(2))
	return a, r
}

// runDMAJob performs one job of a dispatch.
func (m *Machine) runDMAJob(job *dmaJob, rec *dmaRecord) error {
	op := rec.op()
	if op != dmaCopy && op != dmaFill {
		err := UnsupportedDMACommandError{Command: rec.command}
		m.logf("ERROR: %v\n", err)
		m.Term.Done = true
		return m.fail(err)
	}

	count := rec.count
	if count == 0 {
		count = dmaMaxCount
	}
	srcFlags, dstFlags := rec.flags(job.f018b)
	src := addr28(rec.src&0xfffff) | addr28(job.srcMB)<<20
	dst := addr28(rec.dst&0xfffff) | addr28(job.dstMB)<<20

	switch op {
	case dmaCopy:
		if n := m.Symbols.copyRange(src, dst, count); n > 0 {
			m.logf("NOTE: Duplicated %d symbols due to DMA copy from $%07X-$%07X to $%07X-$%07X.\n",
				n, uint32(src), uint32(src)+count-1, uint32(dst), uint32(dst)+count-1)
		}
	case dmaFill:
		if n := m.Symbols.eraseRange(dst, count); n > 0 {
			m.logf("NOTE: Erased %d symbols due to DMA fill from $%07X to $%07X.\n",
				n, uint32(dst), uint32(dst)+count-1)
		}
	}

	var srcStep, dstStep stepper
	if job.src.enabled {
		srcStep = newLineStepper(job.src)
	} else {
		srcStep = &linearStepper{skip: job.srcSkip.delta(), down: srcFlags.down, hold: srcFlags.hold}
	}
	switch {
	case job.spiral:
		dstStep = newSpiralStepper()
	case job.dst.enabled:
		dstStep = newLineStepper(job.dst)
	default:
		dstStep = &linearStepper{skip: job.dstSkip.delta(), down: dstFlags.down, hold: dstFlags.hold}
	}

	fill := byte(rec.src)
	for ; count > 0; count-- {
		v := fill
		if op == dmaCopy {
			v = m.mem.read28(src)
		}
		if err := m.write28(dst, v); err != nil {
			return m.fail(err)
		}
		src = srcStep.step(src)
		dst = dstStep.step(dst)
	}
	return nil
}
