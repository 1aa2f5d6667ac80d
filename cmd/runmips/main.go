// runmips assembles and executes a MIPS32 program. Console output goes
// to stdout and the read syscalls consume stdin. The process exit code
// is the program's exit code.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mipsim/mips32/assembler"
	"github.com/mipsim/mips32/cpu"
	"github.com/mipsim/mips32/sim"
)

func main() {
	maxSteps := flag.Uint64("max", 0, "stop after this many instructions (0 = unlimited)")
	verbose := flag.Bool("v", false, "per-step execution logging")
	dump := flag.Bool("d", false, "dump registers when the run stops")
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

	s := sim.Load(img, sim.Options{Output: os.Stdout, Input: os.Stdin, Verbose: *verbose})
	s.Run(*maxSteps)

	if *dump {
		dumpState(s)
	}

	switch s.State() {
	case cpu.Halted:
		os.Exit(s.ExitCode())
	case cpu.Faulted:
		fmt.Fprintln(os.Stderr, s.Describe())
		if fault := s.Fault(); fault != nil {
			if sym := asm.NearestSymbol(fault.EPC); sym != nil {
				fmt.Fprintf(os.Stderr, "near %s (0x%08x)\n", sym.Name, sym.Addr)
			}
		}
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, s.Describe())
		os.Exit(2)
	}
}

func dumpState(s *sim.Session) {
	snap := s.Inspect()
	fmt.Fprintf(os.Stderr, "state=%s pc=0x%08x steps=%d\n", snap.State, snap.PC, snap.Steps)
	fmt.Fprintf(os.Stderr, "hi=0x%08x lo=0x%08x epc=0x%08x cause=0x%08x badvaddr=0x%08x\n",
		snap.HI, snap.LO, snap.EPC, snap.Cause, snap.BadVAddr)
	for i := 0; i < 32; i++ {
		name := cpu.RegisterName(i)
		fmt.Fprintf(os.Stderr, "%-5s 0x%08x", name, snap.Registers[name])
		if i%4 == 3 {
			fmt.Fprintln(os.Stderr)
		} else {
			fmt.Fprint(os.Stderr, "  ")
		}
	}
}
