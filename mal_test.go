// Package-less end-to-end test: exercises the full parse → translate →
// allocate → write pipeline the way cmd/mal does, against small programs
// that combine pinned blocks, unpinned blocks, and if/else displacement.
package mal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/albmoriconi/mal/allocator"
	"github.com/albmoriconi/mal/parser"
	"github.com/albmoriconi/mal/program"
	"github.com/albmoriconi/mal/translator"
	"github.com/albmoriconi/mal/writer"
)

const storeSize = 1 << program.NextAddressFieldLength

func assemble(t *testing.T, src string) *program.Program {
	t.Helper()
	p, err := parser.Parse("test", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := translator.Translate(p.Instructions)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if err := allocator.Allocate(prog, allocator.Options{Size: storeSize}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	return prog
}

// A fetch/if/else loop with a pinned main entry and two unpinned branch
// targets: every address in the program must end up determined, the two
// if/else targets must land exactly 256 words apart with matching low-8
// bits, and halt must self-loop.
func TestFullPipelineFetchDecodeBranch(t *testing.T) {
	src := "main = 0x000: MAR = PC; rd\n" +
		"H = 0; goto fetch\n" +
		"fetch: Z = MBR; if (Z) goto isz; else goto nnz\n" +
		"isz: H = 1\nhalt\n" +
		"nnz: H = -1\nhalt\n"

	prog := assemble(t, src)

	for i, ins := range prog.Instructions {
		if !ins.HasAddress() {
			t.Fatalf("instruction %d has no determined address", i)
		}
		if !ins.HasNextAddress() {
			t.Fatalf("instruction %d has no determined next address", i)
		}
	}

	isz := prog.AddressForLabel["isz"]
	nnz := prog.AddressForLabel["nnz"]
	if isz-nnz != 256 {
		t.Fatalf("isz - nnz = %d, want 256", isz-nnz)
	}
	if isz&0xFF != nnz&0xFF {
		t.Fatalf("isz and nnz differ in their low 8 bits: %#x vs %#x", isz, nnz)
	}

	// main is pinned at 0x000 and occupies the first two instructions.
	if prog.Instructions[0].Address != 0 || prog.Instructions[1].Address != 1 {
		t.Fatalf("main block addresses = %d, %d, want 0, 1", prog.Instructions[0].Address, prog.Instructions[1].Address)
	}

	halts := 0
	for _, ins := range prog.Instructions {
		if ins.IsHalt {
			halts++
			if ins.NextAddress != ins.Address {
				t.Fatalf("halt at %d does not self-loop (next=%d)", ins.Address, ins.NextAddress)
			}
		}
	}
	if halts != 2 {
		t.Fatalf("got %d halts, want 2", halts)
	}
}

// The rendered words round-trip through the text format, and the binary
// format packs them into the expected number of bytes.
func TestFullPipelineRendersAndRoundTrips(t *testing.T) {
	src := "start: H = 0; goto start\n"
	prog := assemble(t, src)
	words := prog.Words(storeSize)

	if len(words) != storeSize {
		t.Fatalf("got %d words, want %d", len(words), storeSize)
	}
	for i, w := range words {
		if len(w) != program.NextAddressFieldLength+program.ControlFieldLength {
			t.Fatalf("word %d has length %d, want %d", i, len(w), program.NextAddressFieldLength+program.ControlFieldLength)
		}
	}

	var textBuf bytes.Buffer
	if err := writer.WriteText(&textBuf, words); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	got, err := writer.ReadText(&textBuf)
	if err != nil {
		t.Fatalf("ReadText: %v", err)
	}
	if len(got) != len(words) {
		t.Fatalf("round-tripped %d words, want %d", len(got), len(words))
	}
	for i := range words {
		if got[i] != words[i] {
			t.Fatalf("word %d round-tripped to %q, want %q", i, got[i], words[i])
		}
	}

	var binBuf bytes.Buffer
	if err := writer.WriteBinary(&binBuf, words); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	wantBytes := (storeSize*(program.NextAddressFieldLength+program.ControlFieldLength) + 7) / 8
	if binBuf.Len() != wantBytes {
		t.Fatalf("binary length = %d, want %d", binBuf.Len(), wantBytes)
	}
}

// A pinned block's declared size must exactly match what it reclaims: an
// oversized contiguous run that tries to grow past a reclaimed region used
// by another pinned block must fail allocation rather than silently
// overlapping it.
func TestFullPipelineOverlappingPinsRejected(t *testing.T) {
	src := "a = 0x000: H = 0\nH = 0\n" +
		"b = 0x001: H = 0\n"
	p, err := parser.Parse("test", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := translator.Translate(p.Instructions)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if err := allocator.Allocate(prog, allocator.Options{Size: storeSize}); err == nil {
		t.Fatal("expected allocation to fail on overlapping pinned blocks")
	}
}

// Referencing an undefined label is caught at allocation time.
func TestFullPipelineUndefinedLabelRejected(t *testing.T) {
	src := "main = 0x000: goto nowhere\n"
	p, err := parser.Parse("test", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	prog, err := translator.Translate(p.Instructions)
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	err = allocator.Allocate(prog, allocator.Options{Size: storeSize})
	if err == nil || !strings.Contains(err.Error(), "nowhere") {
		t.Fatalf("Allocate error = %v, want it to mention the undefined label", err)
	}
}
