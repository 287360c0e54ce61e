package main

import "fmt"

// AddressRangeError is returned when a CPU address wider than 16 bits is
// presented to the translator.
type AddressRangeError struct {
	Addr  uint32
	Write bool
}

func (e AddressRangeError) Error() string {
	dir := "read"
	if e.Write {
		dir = "write"
	}
	return fmt.Sprintf("asked to map %s of non-16 bit address $%x", dir, e.Addr)
}

// UnmappedWriteError is a write to a physical address outside every region.
type UnmappedWriteError struct {
	Addr addr28
}

func (e UnmappedWriteError) Error() string {
	return fmt.Sprintf("writing to unmapped address $%07x", uint32(e.Addr))
}

// UnimplementedOpcodeError is an opcode outside the supported table.
type UnimplementedOpcodeError struct {
	Opcode byte
	PC     uint16
}

func (e UnimplementedOpcodeError) Error() string {
	return fmt.Sprintf("unimplemented opcode $%02X at $%04X", e.Opcode, e.PC)
}

// StackOverflowError is a push that wrapped the stack pointer.
type StackOverflowError struct {
	PC uint16
}

func (e StackOverflowError) Error() string {
	return fmt.Sprintf("stack overflow detected at $%04X", e.PC)
}

// StackUnderflowError is a pull that wrapped the stack pointer.
type StackUnderflowError struct {
	PC uint16
}

func (e StackUnderflowError) Error() string {
	return fmt.Sprintf("stack underflow detected at $%04X", e.PC)
}

// InfiniteLoopError is raised when the same machine state has been seen at
// one PC more than loopThreshold times.
type InfiniteLoopError struct {
	PC    uint16
	Count int
}

func (e InfiniteLoopError) Error() string {
	return fmt.Sprintf("infinite loop detected at $%04X, aborted after %d iterations", e.PC, e.Count)
}

// LogCapacityError means the instruction trace is full.
type LogCapacityError struct {
	Len int
}

func (e LogCapacityError) Error() string {
	return fmt.Sprintf("CPU instruction log filled after %d instructions", e.Len)
}

// UnknownDMAOptionError is reported for an unrecognised enhanced DMA option
// byte. It does not stop the job.
type UnknownDMAOptionError struct {
	Option byte
	Addr   addr28
}

func (e UnknownDMAOptionError) Error() string {
	return fmt.Sprintf("unknown DMA option $%02X at $%07x", e.Option, uint32(e.Addr))
}

// UnsupportedDMACommandError is a DMA command other than copy or fill.
type UnsupportedDMACommandError struct {
	Command uint16
}

func (e UnsupportedDMACommandError) Error() string {
	return fmt.Sprintf("unsupported DMA operation %d requested", e.Command&3)
}

// UnresolvedSymbolError is a script reference to an unknown label.
type UnresolvedSymbolError struct {
	Name string
}

func (e UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("cannot find non-existent symbol '%s'", e.Name)
}
