// Package translator walks a parsed MAL program in source order, encoding
// each instruction and grouping it into a block: a maximal run starting at
// a labeled instruction (pinned or not) and extending through every
// following unlabeled instruction. A pinned block's addresses are fixed by
// the source and must later be reclaimed from the free-chunk chain; an
// unpinned block's placement is left to the allocator, but its size is
// fixed the moment the block closes.
package translator

import (
	"fmt"

	"github.com/albmoriconi/mal/encoder"
	"github.com/albmoriconi/mal/parser"
	"github.com/albmoriconi/mal/program"
)

// DuplicateLabelError reports that a label was defined more than once.
type DuplicateLabelError struct {
	Label string
}

func (e *DuplicateLabelError) Error() string {
	return fmt.Sprintf("duplicate label %q", e.Label)
}

// modeKind distinguishes the translator's two placement strategies.
type modeKind int

const (
	modeNone modeKind = iota
	modeContiguous
	modeAnnotating
)

// mode is the translator's walk state. In modeContiguous, pin is the fixed
// address of the block's first instruction and cursor is the address the
// next instruction will receive. In modeAnnotating, start is the source
// index (into the instruction list being built) where the current unpinned
// block began, so its final size can be recorded once the block ends.
type mode struct {
	kind    modeKind
	pin     int
	cursor  int
	start   int
	blockAt int // Index of the block's first program.Instruction.
}

// Translate walks instrs in source order, encoding each one and building
// the resulting Program: label tables, if/else pairings, reclaim promises
// for pinned runs, and block-size annotations for unpinned runs.
func Translate(instrs []parser.Instruction) (*program.Program, error) {
	prog := program.New()
	m := mode{kind: modeNone}
	seenLabels := map[string]bool{}

	for _, ins := range instrs {
		encoded, pair, err := encoder.Encode(ins)
		if err != nil {
			return nil, err
		}

		idx := len(prog.Instructions)
		prog.Instructions = append(prog.Instructions, encoded)

		if encoded.HasLabel() {
			if seenLabels[encoded.Label] {
				return nil, &DuplicateLabelError{Label: encoded.Label}
			}
			seenLabels[encoded.Label] = true
		}

		if pair != nil {
			if err := prog.AddIfElseTarget(pair.If, pair.Else); err != nil {
				return nil, err
			}
		}

		if err := step(prog, &m, idx, encoded); err != nil {
			return nil, err
		}
	}

	closeBlock(prog, &m, len(prog.Instructions))

	return prog, nil
}

// step advances the state machine by one already-encoded instruction at
// position idx, recording address/label bookkeeping for the block it
// belongs to. A label, pinned or not, always starts a new block: only
// labels can be branch targets, so an unlabeled instruction never needs
// its own placement decision and simply rides along in whichever block is
// currently open.
func step(prog *program.Program, m *mode, idx int, ins program.Instruction) error {
	startsNewBlock := ins.HasLabel() || m.kind == modeNone

	if startsNewBlock {
		closeBlock(prog, m, idx)
		if ins.HasAddress() {
			*m = mode{kind: modeContiguous, pin: ins.Address, cursor: ins.Address + 1, blockAt: idx}
		} else {
			*m = mode{kind: modeAnnotating, start: idx, blockAt: idx}
		}
	} else if m.kind == modeContiguous {
		prog.Instructions[idx].Address = m.cursor
		m.cursor++
	}
	// modeAnnotating, continuing: nothing to record per-instruction; the
	// block's size and its labels' addresses are fixed once it closes.

	if ins.HasLabel() && m.kind == modeContiguous {
		prog.AddressForLabel[ins.Label] = prog.Instructions[idx].Address
	}

	return nil
}

// closeBlock finalizes the block that was open in m, if any, up to
// (exclusive) endIdx. For a contiguous pinned block it records the reclaim
// promise [pin, cursor-1] (addresses are already filled in); for an
// annotating block it records
// the block's size and the per-label instruction count to the end of the
// block.
func closeBlock(prog *program.Program, m *mode, endIdx int) {
	if m.kind == modeNone {
		return
	}
	if m.kind == modeContiguous {
		if m.blockAt < endIdx {
			prog.AddReclaimPromise(m.pin, m.cursor-1)
		}
		return
	}

	// modeAnnotating: record the block size and, for every label inside
	// the block, the number of instructions from that label to the block's
	// end (inclusive of the label's own instruction).
	size := endIdx - m.start
	prog.BlockAnnotations[m.start] = size
	for i := m.start; i < endIdx; i++ {
		if label := prog.Instructions[i].Label; label != "" {
			prog.CountForLabel[label] = endIdx - i
		}
	}
}
