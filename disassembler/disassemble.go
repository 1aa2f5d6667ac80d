// Package disassembler prints instruction words back as assembly text.
// It is driven by the same ISA table the assembler and decoder use, so
// a word round-trips to the exact operand shape it was assembled from.
package disassembler

import (
	"fmt"
	"strings"

	"github.com/mipsim/mips32/cpu"
)

// Word disassembles a single instruction word located at addr. Unknown
// encodings render as a raw .word directive.
func Word(word, addr uint32) string {
	in, exc := cpu.Decode(word, addr)
	if exc != nil {
		return fmt.Sprintf(".word 0x%08x", word)
	}
	return render(in)
}

// Text disassembles a whole text segment, one line per word, with the
// address and raw encoding in a leading comment column.
func Text(seg cpu.Segment, w *strings.Builder) {
	for off := 0; off+4 <= len(seg.Data); off += 4 {
		addr := seg.Base + uint32(off)
		word := uint32(seg.Data[off]) | uint32(seg.Data[off+1])<<8 |
			uint32(seg.Data[off+2])<<16 | uint32(seg.Data[off+3])<<24
		fmt.Fprintf(w, "0x%08x  %08x  %s\n", addr, word, Word(word, addr))
	}
}

func render(in *cpu.Decoded) string {
	m := in.Spec.Mnemonic
	switch in.Spec.Syntax {
	case cpu.SynNone:
		return m
	case cpu.Syn3R:
		return fmt.Sprintf("%s %s, %s, %s", m, reg(in.Rd), reg(in.Rs), reg(in.Rt))
	case cpu.SynShift:
		return fmt.Sprintf("%s %s, %s, %d", m, reg(in.Rd), reg(in.Rt), in.Shamt)
	case cpu.SynShiftVar:
		return fmt.Sprintf("%s %s, %s, %s", m, reg(in.Rd), reg(in.Rt), reg(in.Rs))
	case cpu.SynRs:
		return fmt.Sprintf("%s %s", m, reg(in.Rs))
	case cpu.SynRd:
		return fmt.Sprintf("%s %s", m, reg(in.Rd))
	case cpu.SynRsRt:
		return fmt.Sprintf("%s %s, %s", m, reg(in.Rs), reg(in.Rt))
	case cpu.SynArithImm:
		return fmt.Sprintf("%s %s, %s, %d", m, reg(in.Rt), reg(in.Rs), in.SImm)
	case cpu.SynLogicImm:
		return fmt.Sprintf("%s %s, %s, 0x%x", m, reg(in.Rt), reg(in.Rs), in.Imm)
	case cpu.SynLui:
		return fmt.Sprintf("%s %s, 0x%x", m, reg(in.Rt), in.Imm)
	case cpu.SynBranch:
		return fmt.Sprintf("%s %s, %s, 0x%08x", m, reg(in.Rs), reg(in.Rt), branchTarget(in))
	case cpu.SynBranchZ:
		return fmt.Sprintf("%s %s, 0x%08x", m, reg(in.Rs), branchTarget(in))
	case cpu.SynMem:
		return fmt.Sprintf("%s %s, %d(%s)", m, reg(in.Rt), in.SImm, reg(in.Rs))
	case cpu.SynJump:
		return fmt.Sprintf("%s 0x%08x", m, (in.Addr+4)&0xf0000000|in.Target<<2)
	case cpu.SynCop0:
		return fmt.Sprintf("%s %s, $%d", m, reg(in.Rt), in.Rd)
	}
	return m
}

func reg(n int) string { return cpu.RegisterName(n) }

func branchTarget(in *cpu.Decoded) uint32 {
	return in.Addr + 4 + uint32(in.SImm)<<2
}
