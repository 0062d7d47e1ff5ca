// Package controlstore tracks which control-store addresses are still free
// during allocation: an ordered, disjoint chain of inclusive-inclusive
// [start, end] chunks that shrinks as the allocator commits pinned and
// unpinned blocks to concrete addresses.
package controlstore

import (
	"fmt"

	"github.com/albmoriconi/mal/program"
)

// InfeasibleLayoutError reports that the requested address layout cannot be
// realized in the available control store: either a reclaimed interval is
// not fully contained in a single free chunk, or no free chunk of the
// required size (or at the
// required displaced offset) exists.
type InfeasibleLayoutError struct {
	Kind   string // "reclaim", "size", or "displacement"
	Detail string
}

func (e *InfeasibleLayoutError) Error() string {
	return fmt.Sprintf("infeasible control-store layout (%s): %s", e.Kind, e.Detail)
}

// Chain is the free-chunk chain: a sorted, disjoint list of inclusive
// address intervals not yet committed to any instruction.
type Chain struct {
	chunks []program.Interval
}

// New returns a chain with a single free chunk spanning [0, size-1].
func New(size int) *Chain {
	if size <= 0 {
		return &Chain{}
	}
	return &Chain{chunks: []program.Interval{{Start: 0, End: size - 1}}}
}

// Chunks returns the current free chunks, in ascending order. The slice is
// a copy; callers may not mutate the chain through it.
func (c *Chain) Chunks() []program.Interval {
	out := make([]program.Interval, len(c.chunks))
	copy(out, c.chunks)
	return out
}

// Reclaim removes [start, end] from the chain, splitting or shrinking
// whichever chunk contains it. It returns InfeasibleLayoutError if no free
// chunk fully contains the requested interval (the promise conflicts with
// an address already committed elsewhere).
func (c *Chain) Reclaim(start, end int) error {
	for i, chunk := range c.chunks {
		if start < chunk.Start || end > chunk.End {
			continue
		}

		var replacement []program.Interval
		if chunk.Start <= start-1 {
			replacement = append(replacement, program.Interval{Start: chunk.Start, End: start - 1})
		}
		if end+1 <= chunk.End {
			replacement = append(replacement, program.Interval{Start: end + 1, End: chunk.End})
		}

		c.chunks = append(c.chunks[:i:i], append(replacement, c.chunks[i+1:]...)...)
		return nil
	}

	return &InfeasibleLayoutError{
		Kind:   "reclaim",
		Detail: fmt.Sprintf("[%#03x, %#03x] is not fully contained in any free chunk", start, end),
	}
}

// FirstChunkGE returns the first free chunk, in address order, that is at
// least size words long, and removes that much of it from the chain
// (taking the low end). It reports InfeasibleLayoutError if no chunk is
// large enough.
func (c *Chain) FirstChunkGE(size int) (program.Interval, error) {
	for i, chunk := range c.chunks {
		length := chunk.End - chunk.Start + 1
		if length < size {
			continue
		}

		placed := program.Interval{Start: chunk.Start, End: chunk.Start + size - 1}
		if length == size {
			c.chunks = append(c.chunks[:i], c.chunks[i+1:]...)
		} else {
			c.chunks[i] = program.Interval{Start: chunk.Start + size, End: chunk.End}
		}
		return placed, nil
	}

	return program.Interval{}, &InfeasibleLayoutError{
		Kind:   "size",
		Detail: fmt.Sprintf("no free chunk of at least %d words remains", size),
	}
}

// DisplacedPair finds start1 and start2 = start1+d such that [start1,
// start1+size1-1] and [start2, start2+size2-1] each lie in (possibly the
// same) free chunk, committing both placements. It realizes spec.md §4.3's
// displaced_pair(size1, size2, d): iterate candidate first-chunks F1 in
// ascending order; for each, the window of feasible start2 values is
// [F1.Start+d, F1.Start+size1-1+d]. A candidate second-chunk F2 qualifies if
// it overlaps that window and has room for size2 words inside it, within the
// window. When one qualifies, normalize to the tightest pair: if F2 starts
// after the window's low end, pull start1 up to match (start1 = F2.Start-d);
// otherwise pin start2 to the window's low end (start1 stays at F1.Start).
func (c *Chain) DisplacedPair(size1, size2, d int) (program.Interval, program.Interval, error) {
	for _, f1 := range c.chunks {
		low := f1.Start + d
		high := f1.Start + size1 - 1 + d

		for _, f2 := range c.chunks {
			if f2.End < low || f2.Start > high {
				continue
			}

			iLo, iHi := low, high
			if f2.Start > iLo {
				iLo = f2.Start
			}
			if f2.End-size2+1 < iHi {
				iHi = f2.End - size2 + 1
			}
			if iLo > iHi {
				continue
			}

			start1, start2 := f1.Start, low
			if f2.Start > low {
				start1 = f2.Start - d
				start2 = f2.Start
			}

			iv1 := program.Interval{Start: start1, End: start1 + size1 - 1}
			iv2 := program.Interval{Start: start2, End: start2 + size2 - 1}
			if !c.rangeFree(iv1.Start, iv1.End) || !c.rangeFree(iv2.Start, iv2.End) {
				continue
			}

			if err := c.Reclaim(iv1.Start, iv1.End); err != nil {
				return program.Interval{}, program.Interval{}, err
			}
			if err := c.Reclaim(iv2.Start, iv2.End); err != nil {
				return program.Interval{}, program.Interval{}, err
			}
			return iv1, iv2, nil
		}
	}

	return program.Interval{}, program.Interval{}, &InfeasibleLayoutError{
		Kind:   "displacement",
		Detail: fmt.Sprintf("no pair of free chunks %d apart with room for %d and %d words", d, size1, size2),
	}
}

// rangeFree reports whether [start, end] is fully contained within a single
// free chunk.
func (c *Chain) rangeFree(start, end int) bool {
	for _, chunk := range c.chunks {
		if start >= chunk.Start && end <= chunk.End {
			return true
		}
	}
	return false
}

// Contains reports whether addr falls within any free chunk.
func (c *Chain) Contains(addr int) bool {
	for _, chunk := range c.chunks {
		if addr >= chunk.Start && addr <= chunk.End {
			return true
		}
	}
	return false
}
