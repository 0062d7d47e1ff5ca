// Package writer renders an allocated Program to the two on-disk formats of
// spec.md §6.2: a text format of one 36-character {0,1} line per word, and
// a binary format that packs those same bits MSB-first, zero-padding the
// final byte.
package writer

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/albmoriconi/mal/program"
)

const wordBits = program.NextAddressFieldLength + program.ControlFieldLength

// Word is a single 36-bit control-store word as a fixed-width bit array.
// WriteText, WriteBinary and ReadText do not use it: they operate on
// 36-character '0'/'1' strings.
type Word [wordBits]bool

// WriteText writes one line per word, each a 36-character string of '0'/'1'
// characters, to w.
func WriteText(w io.Writer, words []string) error {
	bw := bufio.NewWriter(w)
	for _, word := range words {
		if len(word) != wordBits {
			return fmt.Errorf("writer: word %q is not %d bits", word, wordBits)
		}
		if _, err := bw.WriteString(word); err != nil {
			return err
		}
		if _, err := bw.WriteString("\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteBinary packs words MSB-first into a contiguous bitstream and writes
// the resulting bytes to w. The final byte of the stream is zero-padded on
// its low end if the total bit count isn't a multiple of 8.
func WriteBinary(w io.Writer, words []string) error {
	bw := bufio.NewWriter(w)

	var cur byte
	var nbits uint

	flushByte := func() error {
		if nbits == 0 {
			return nil
		}
		cur <<= 8 - nbits
		if err := bw.WriteByte(cur); err != nil {
			return err
		}
		cur, nbits = 0, 0
		return nil
	}

	for _, word := range words {
		if len(word) != wordBits {
			return fmt.Errorf("writer: word %q is not %d bits", word, wordBits)
		}
		for _, r := range word {
			var bit byte
			switch r {
			case '0':
				bit = 0
			case '1':
				bit = 1
			default:
				return fmt.Errorf("writer: word %q has non-bit character %q", word, r)
			}
			cur = cur<<1 | bit
			nbits++
			if nbits == 8 {
				if err := flushByte(); err != nil {
					return err
				}
			}
		}
	}
	if err := flushByte(); err != nil {
		return err
	}

	return bw.Flush()
}

// ReadText parses the text format back into one 36-character word string
// per control-store address, the inverse of WriteText, so a written and
// re-read program compares equal (spec.md §8's round-trip property).
func ReadText(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	var words []string
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		if len(text) != wordBits {
			return nil, fmt.Errorf("writer: line %d: %q is not %d bits", line, text, wordBits)
		}
		for _, r := range text {
			if r != '0' && r != '1' {
				return nil, fmt.Errorf("writer: line %d: %q has non-bit character %q", line, text, r)
			}
		}
		words = append(words, text)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
