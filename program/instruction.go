package program

import "fmt"

// Undetermined is the conventional sentinel for an address that has not
// been assigned yet.
const Undetermined = -1

// Instruction is a single control-store entry: the per-microinstruction
// address and next-address (both possibly undetermined until the allocator
// runs), the 27-bit control field, the halt flag, and the label metadata
// the translator attaches while walking the source.
type Instruction struct {
	Address     int
	NextAddress int
	Control     Control
	IsHalt      bool
	Label       string
	TargetLabel string
}

// NewInstruction returns an instruction with the default control field
// (bits B_0 and B_3 set) and both addresses undetermined.
func NewInstruction() Instruction {
	return Instruction{
		Address:     Undetermined,
		NextAddress: Undetermined,
		Control:     initialControl(),
	}
}

// HasAddress reports whether the address has been determined.
func (i Instruction) HasAddress() bool { return i.Address != Undetermined }

// HasNextAddress reports whether the next address has been determined.
func (i Instruction) HasNextAddress() bool { return i.NextAddress != Undetermined }

// HasLabel reports whether the instruction carries a label.
func (i Instruction) HasLabel() bool { return i.Label != "" }

// HasTargetLabel reports whether the instruction carries a goto/else target.
func (i Instruction) HasTargetLabel() bool { return i.TargetLabel != "" }

// Word renders the instruction as a 36-character {0,1} string: the 9-bit
// NEXT_ADDRESS field MSB-first, followed by the 27-bit control field
// MSB-first (bit 26 first, bit 0 last), per spec.md §6.2. Undetermined
// fields render as a run of zero bits, matching an unreached word.
func (i Instruction) Word() string {
	next := i.NextAddress
	if next == Undetermined {
		next = 0
	}
	return fmt.Sprintf("%0*b", NextAddressFieldLength, uint32(next)&((1<<NextAddressFieldLength)-1)) + i.Control.String()
}
