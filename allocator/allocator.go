// Package allocator assigns concrete control-store addresses to every
// instruction in a translated Program and resolves every goto/else target
// into a concrete next-address, in three phases: reclaim pinned blocks from
// the free-chunk chain, place unpinned blocks (coupling if/else pairs at a
// fixed 256-word displacement), then resolve the symbolic next-addresses
// and halt self-loops that remain.
package allocator

import (
	"fmt"
	"os"

	"github.com/k0kubun/pp/v3"

	"github.com/albmoriconi/mal/controlstore"
	"github.com/albmoriconi/mal/program"
)

// Options configures a single Allocate call.
type Options struct {
	// Size is the control store's total word count.
	Size int
	// Debug, when true, traces every placement decision to stderr via
	// pp.Fprintf.
	Debug bool
}

func trace(opts Options, label string, v any) {
	if !opts.Debug {
		return
	}
	pp.Fprintf(os.Stderr, "allocator: %s: %v\n", label, v)
}

// Allocate places every instruction of prog in the control store described
// by opts and resolves every next-address, mutating prog's Instructions in
// place.
func Allocate(prog *program.Program, opts Options) error {
	chain := controlstore.New(opts.Size)

	if err := reclaimPinnedBlocks(prog, chain, opts); err != nil {
		return err
	}
	if err := placeUnpinnedBlocks(prog, chain, opts); err != nil {
		return err
	}
	if err := resolveNextAddresses(prog, opts); err != nil {
		return err
	}

	return nil
}

// reclaimPinnedBlocks removes every pinned contiguous run the translator
// recorded as a reclaim promise from the free chain, so unpinned blocks are
// never placed on top of source-fixed addresses.
func reclaimPinnedBlocks(prog *program.Program, chain *controlstore.Chain, opts Options) error {
	for _, iv := range prog.ReclaimPromises {
		trace(opts, "reclaim", iv)
		if err := chain.Reclaim(iv.Start, iv.End); err != nil {
			return err
		}
	}
	return nil
}

// placeUnpinnedBlocks assigns addresses to every block-annotated run. A
// block whose entry label is itself a registered if/else target is placed
// via the chain's displaced-pair search, alongside its partner block, so the
// two land exactly 256 apart; every other block is placed via the chain's
// first-fit search.
func placeUnpinnedBlocks(prog *program.Program, chain *controlstore.Chain, opts Options) error {
	placed := make(map[int]int) // block start index -> base address

	for start, size := range prog.BlockAnnotations {
		if _, ok := placed[start]; ok {
			continue
		}

		label, partner, isPaired := blockIfElseRoles(prog, start)
		if !isPaired {
			continue
		}

		partnerStart, partnerSize, ok := findBlockByLabel(prog, partner)
		if !ok {
			return fmt.Errorf("if/else pair %q/%q: partner block not found", label, partner)
		}

		ifSize, elseSize := size, partnerSize
		ifStart, elseStart := start, partnerStart
		if prog.IsElseTarget(label) {
			ifSize, elseSize = partnerSize, size
			ifStart, elseStart = partnerStart, start
		}

		// The else-side label sits at the literal (low) NEXT_ADDRESS, taken
		// when JAMZ/JAMN's flag is 0; the if-side label sits 256 above it,
		// reached when the flag is 1 and the hardware ORs in the high bit.
		// Each side is reclaimed at its own size, not the larger of the two.
		elseIv, ifIv, err := chain.DisplacedPair(elseSize, ifSize, 256)
		if err != nil {
			return err
		}
		trace(opts, "displaced pair", [2]program.Interval{elseIv, ifIv})

		placed[ifStart] = ifIv.Start
		placed[elseStart] = elseIv.Start
	}

	for start, size := range prog.BlockAnnotations {
		if _, ok := placed[start]; ok {
			continue
		}
		iv, err := chain.FirstChunkGE(size)
		if err != nil {
			return err
		}
		trace(opts, "first fit", iv)
		placed[start] = iv.Start
	}

	for start, size := range prog.BlockAnnotations {
		base := placed[start]
		for i := 0; i < size; i++ {
			idx := start + i
			prog.Instructions[idx].Address = base + i
		}
	}

	for label, count := range prog.CountForLabel {
		start := labelBlockStart(prog, label)
		base := placed[start]
		size := prog.BlockAnnotations[start]
		prog.AddressForLabel[label] = base + (size - count)
	}

	return nil
}

// blockIfElseRoles reports whether the block starting at start is itself a
// branch target participating in an if/else pair (i.e. its entry
// instruction's label was registered, from either side, via
// program.AddIfElseTarget), and if so, that label and its partner.
func blockIfElseRoles(prog *program.Program, start int) (label, partner string, ok bool) {
	entry := prog.Instructions[start]
	if !entry.HasLabel() || !prog.HasIfElseTarget(entry.Label) {
		return "", "", false
	}
	other, has := prog.OtherTargetInPair(entry.Label)
	if !has {
		return "", "", false
	}
	return entry.Label, other, true
}

// findBlockByLabel returns the start index and size of the block containing
// label, among the annotated (unpinned) blocks.
func findBlockByLabel(prog *program.Program, label string) (start, size int, ok bool) {
	start = labelBlockStart(prog, label)
	if start < 0 {
		return 0, 0, false
	}
	return start, prog.BlockAnnotations[start], true
}

// labelBlockStart returns the start index of the annotated block
// containing label's instruction, or -1 if label isn't inside any
// annotated block.
func labelBlockStart(prog *program.Program, label string) int {
	idx := -1
	for i, ins := range prog.Instructions {
		if ins.Label == label {
			idx = i
			break
		}
	}
	if idx < 0 {
		return -1
	}
	for start, size := range prog.BlockAnnotations {
		if idx >= start && idx < start+size {
			return start
		}
	}
	return -1
}

// resolveNextAddresses fills in every instruction's NextAddress: the
// directly-encoded ones (goto(MBR...)) are already set and left alone; a
// plain goto/else resolves its TargetLabel through the label tables; an
// instruction with neither a target label nor a directly-encoded
// next-address (fallthrough, or the end of a block) defaults to its own
// successor address, or to itself for a halt.
func resolveNextAddresses(prog *program.Program, opts Options) error {
	for i := range prog.Instructions {
		ins := &prog.Instructions[i]

		if ins.IsHalt {
			ins.NextAddress = ins.Address
			continue
		}
		if ins.HasNextAddress() {
			continue
		}
		if ins.HasTargetLabel() {
			addr, ok := prog.AddressForLabel[ins.TargetLabel]
			if !ok {
				return fmt.Errorf("undefined label %q referenced from address %#03x", ins.TargetLabel, ins.Address)
			}
			ins.NextAddress = addr
			continue
		}
		if i+1 < len(prog.Instructions) {
			ins.NextAddress = prog.Instructions[i+1].Address
		} else {
			ins.NextAddress = ins.Address
		}
		trace(opts, "fallthrough", *ins)
	}
	return nil
}
