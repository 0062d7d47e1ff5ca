package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/k0kubun/pp/v3"

	"github.com/albmoriconi/mal/allocator"
	"github.com/albmoriconi/mal/parser"
	"github.com/albmoriconi/mal/program"
	"github.com/albmoriconi/mal/translator"
	"github.com/albmoriconi/mal/writer"
)

// storeSize is the control store's word count: 512 addresses, per the
// 9-bit NEXT_ADDRESS field.
const storeSize = 1 << program.NextAddressFieldLength

func run(input, output, format string, debug, pretty bool) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	prog, err := parser.Parse(input, string(data))
	if err != nil {
		return fmt.Errorf("failed to parse: %w", err)
	}

	translated, err := translator.Translate(prog.Instructions)
	if err != nil {
		return fmt.Errorf("failed to translate: %w", err)
	}

	if err := allocator.Allocate(translated, allocator.Options{Size: storeSize, Debug: debug}); err != nil {
		return fmt.Errorf("failed to allocate control store: %w", err)
	}

	if pretty {
		pp.Fprintf(os.Stdout, "%v\n", translated)
		return nil
	}

	words := translated.Words(storeSize)

	var buf strings.Builder
	switch format {
	case "text":
		if err := writer.WriteText(&buf, words); err != nil {
			return fmt.Errorf("failed to write control store: %w", err)
		}
	case "binary":
		if err := writer.WriteBinary(&buf, words); err != nil {
			return fmt.Errorf("failed to write control store: %w", err)
		}
	default:
		return fmt.Errorf("unknown format %q, want \"text\" or \"binary\"", format)
	}

	// Rendered in memory first, written in one call, so a failure never
	// leaves a partial output file behind.
	if err := os.WriteFile(output, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func main() {
	log.SetFlags(0)
	output := flag.String("o", "", "output file, default to a.out (binary) or a.txt (text)")
	format := flag.String("f", "binary", "output format: \"binary\" or \"text\"")
	debug := flag.Bool("debug", false, "trace allocator placement decisions to stderr")
	pretty := flag.Bool("pretty", false, "pretty-print the translated program, do not write a control store file")
	flag.Parse()

	input := flag.Arg(0)
	if input == "" {
		tmp := strings.Split(os.Args[0], "/")
		binName := tmp[len(tmp)-1]
		fmt.Fprintf(os.Stderr, "usage: %s [options] <.mal path>\n", binName)
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *output == "" {
		*output = "a.out"
		if *format == "text" {
			*output = "a.txt"
		}
	}

	if err := run(input, *output, *format, *debug, *pretty); err != nil {
		log.Fatalf("mal: %s.", err)
	}
}
