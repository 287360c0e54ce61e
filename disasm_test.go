package main

import (
	"testing"
)

func TestDisassemble(t *testing.T) {
	m := newTestMachine(t)
	tests := []struct {
		r    *Record
		want string
	}{
		{nil, ""},
		{&Record{}, ""},
		{&Record{Bytes: [maxFetch]byte{0xa9, 0x42}, Len: 2}, "LDA #$42"},
		{&Record{Bytes: [maxFetch]byte{0x8d, 0x00, 0x30}, Len: 3}, "STA $3000"},
		{&Record{Bytes: [maxFetch]byte{0xbd, 0x20, 0xd0}, Len: 3}, "LDA $D020,X"},
		{&Record{Bytes: [maxFetch]byte{0xf6, 0x10}, Len: 2}, "INC $10,X"},
		{&Record{Bytes: [maxFetch]byte{0xb1, 0x10}, Len: 2, Ptr: 0x10, PtrAddr: 0x1234},
			"LDA ($10),Y {PTR=$0010,ADDR16=$1234}"},
		{&Record{Bytes: [maxFetch]byte{0x92, 0x10}, Len: 2, Ptr: 0x10, PtrAddr: 0x0002},
			"STA ($10),Z {PTR=$0010,ADDR16=$0002}"},
		{&Record{Bytes: [maxFetch]byte{0x92, 0x10}, Len: 2, Ptr: 0x10, PtrAddr: 0xff80002, Wide: true},
			"STA [$10],Z {PTR=$0010,ADDR32=$FF80002}"},
		{&Record{Bytes: [maxFetch]byte{0x22, 0xfe, 0x03}, Len: 3, Ptr: 0x3fe, PtrAddr: 0x8100},
			"JSR ($03FE) {PTR=$03FE,ADDR=$8100}"},
		{&Record{PC: 0x2000, Bytes: [maxFetch]byte{0xd0, 0xfe}, Len: 2}, "BNE $2000"},
		{&Record{PC: 0x2000, Bytes: [maxFetch]byte{0x83, 0xfd, 0xff}, Len: 3}, "BRA $20FF"},
		{&Record{PC: 0x2000, Bytes: [maxFetch]byte{0x93, 0xfd, 0xff}, Len: 3}, "BCC $2000"},
		{&Record{Bytes: [maxFetch]byte{0x89, 0x80, 0xea}, Len: 3}, "BIT #$80"},
		{&Record{Bytes: [maxFetch]byte{0x60}, Len: 1},
			"RTS {Address pushed by <uninitialised stack location>}"},
		{&Record{Bytes: [maxFetch]byte{0x68}, Len: 1},
			"PLA {Pushed by <uninitialised stack location>}"},
		{&Record{Bytes: [maxFetch]byte{0x02}, Len: 1}, "???"},
	}
	for _, tt := range tests {
		if got := m.disassemble(tt.r); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestDisassemblePushedBy(t *testing.T) {
	m := newTestMachine(t,
		0x20, 0x10, 0x20, // JSR $2010
		0x60,
	)
	m.Poke(0x2010, 0xa9) // LDA #$01
	m.Poke(0x2011, 0x01)
	m.Poke(0x2012, 0x48) // PHA
	m.Poke(0x2013, 0x68) // PLA
	m.Poke(0x2014, 0x60) // RTS
	if err := m.Run(testOrigin, 1); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		seq  uint32
		want string
	}{
		{4, "PLA {Pushed by $2012 PHA}"},
		{5, "RTS {Address pushed by $2000 JSR $2010}"},
	}
	for _, tt := range tests {
		if got := m.disassemble(m.Trace().At(tt.seq)); got != tt.want {
			t.Errorf("I%d: got %q, want %q", tt.seq, got, tt.want)
		}
	}

	// A return address assembled from two different pushes.
	r := &Record{Bytes: [maxFetch]byte{0x60}, Len: 1, NPops: 2, Pops: [maxPops]uint32{1, 3}}
	want := "RTS {Address pushed by  two different instructions: $2000 JSR $2010 and $2012 PHA}"
	if got := m.disassemble(r); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDisassembleStalePushIndex(t *testing.T) {
	m := newTestMachine(t,
		0x68, // PLA
		0x68, // PLA
		0x60,
	)
	m.Regs.SPL = 0xf0
	if err := m.Run(testOrigin, 1); err != nil {
		t.Fatal(err)
	}

	// Pushers that point back at each other or at themselves.
	m.Trace().At(1).Pops[0] = 2
	m.Trace().At(2).Pops[0] = 1
	m.Trace().At(3).Pops = [maxPops]uint32{3, 3}

	tests := []struct {
		seq  uint32
		want string
	}{
		{1, "PLA {Pushed by $2001 PLA}"},
		{2, "PLA {Pushed by $2000 PLA}"},
		{3, "RTS {Address pushed by $2002 RTS}"},
	}
	for _, tt := range tests {
		if got := m.disassemble(m.Trace().At(tt.seq)); got != tt.want {
			t.Errorf("I%d: got %q, want %q", tt.seq, got, tt.want)
		}
	}
}
