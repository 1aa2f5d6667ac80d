// asmips assembles a MIPS32 source file and prints the resulting
// segments as hex words, plus an optional symbol listing.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mipsim/mips32/assembler"
	"github.com/mipsim/mips32/cpu"
)

func main() {
	symbols := flag.Bool("s", false, "print the symbol table")
	output := flag.String("o", "", "write the text segment as raw words to a file")
	verbose := flag.Bool("v", false, "verbose assembly logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <source.asm>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	asm := assembler.New()
	asm.Verbose = *verbose
	img, err := asm.AssembleFile(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *output != "" {
		for _, seg := range img.Segments {
			if seg.Kind != cpu.SegText {
				continue
			}
			if err := os.WriteFile(*output, seg.Data, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
				os.Exit(1)
			}
		}
		return
	}

	for _, seg := range img.Segments {
		fmt.Printf("%s segment, %d bytes at 0x%08x\n", seg.Kind, len(seg.Data), seg.Base)
		for off := 0; off < len(seg.Data); off += 4 {
			var word uint32
			for i := 0; i < 4 && off+i < len(seg.Data); i++ {
				word |= uint32(seg.Data[off+i]) << (8 * i)
			}
			fmt.Printf("0x%08x  %08x\n", seg.Base+uint32(off), word)
		}
	}
	fmt.Printf("entry 0x%08x\n", img.Entry)

	if *symbols {
		fmt.Println("symbols:")
		for _, s := range asm.Symbols() {
			mark := " "
			if s.Global {
				mark = "g"
			}
			fmt.Printf("  %s 0x%08x  %-6s %s\n", mark, s.Addr, s.Segment, s.Name)
		}
	}
}
