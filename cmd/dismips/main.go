// dismips prints the instructions of a program as assembly text. The
// input is either a MIPS32 source file, which is assembled first, or a
// raw little-endian word dump loaded at a chosen base address.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mipsim/mips32/assembler"
	"github.com/mipsim/mips32/cpu"
	"github.com/mipsim/mips32/disassembler"
)

func main() {
	raw := flag.Bool("r", false, "treat input as a raw binary instead of source")
	base := flag.Uint64("b", uint64(cpu.TextBase), "load address for raw input")
	output := flag.String("o", "", "write listing to a file instead of stdout")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <inputfile>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	var sb strings.Builder
	if *raw {
		data, err := os.ReadFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input file: %v\n", err)
			os.Exit(1)
		}
		disassembler.Text(cpu.Segment{Kind: cpu.SegText, Base: uint32(*base), Data: data}, &sb)
	} else {
		img, err := assembler.New().AssembleFile(flag.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		for _, seg := range img.Segments {
			if seg.Kind != cpu.SegText && seg.Kind != cpu.SegKText {
				continue
			}
			fmt.Fprintf(&sb, "%s segment:\n", seg.Kind)
			disassembler.Text(seg, &sb)
		}
	}

	if *output == "" {
		fmt.Print(sb.String())
		return
	}
	if err := os.WriteFile(*output, []byte(sb.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
}
