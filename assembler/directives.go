package assembler

import (
	"github.com/mipsim/mips32/cpu"
)

// Directive names, lowercased with the leading dot.
const (
	dirText   = ".text"
	dirData   = ".data"
	dirKText  = ".ktext"
	dirKData  = ".kdata"
	dirWord   = ".word"
	dirHalf   = ".half"
	dirByte   = ".byte"
	dirAscii  = ".ascii"
	dirAsciiz = ".asciiz"
	dirSpace  = ".space"
	dirAlign  = ".align"
	dirGlobl  = ".globl"
	dirGlobal = ".global"
	dirExtern  = ".extern"
	dirEqv     = ".eqv"
	dirInclude = ".include"
)

// segmentFor maps a segment-switch directive to its kind.
func segmentFor(name string) (cpu.SegmentKind, bool) {
	switch name {
	case dirText:
		return cpu.SegText, true
	case dirData:
		return cpu.SegData, true
	case dirKText:
		return cpu.SegKText, true
	case dirKData:
		return cpu.SegKData, true
	}
	return 0, false
}

// dataDirective reports whether a directive emits bytes, and the unit
// size of each value operand. Strings are sized separately.
func dataDirective(name string) (unit int, ok bool) {
	switch name {
	case dirWord:
		return 4, true
	case dirHalf:
		return 2, true
	case dirByte:
		return 1, true
	case dirAscii, dirAsciiz:
		return 1, true
	}
	return 0, false
}

// knownDirective covers every directive the assembler accepts.
func knownDirective(name string) bool {
	switch name {
	case dirText, dirData, dirKText, dirKData,
		dirWord, dirHalf, dirByte, dirAscii, dirAsciiz,
		dirSpace, dirAlign, dirGlobl, dirGlobal, dirExtern, dirEqv,
		dirInclude:
		return true
	}
	return false
}

// dataSize computes the byte length a data directive occupies, used in
// pass 1 before any values are resolved. Returns -1 on malformed
// operands; the caller reports the diagnostic.
func dataSize(st *Statement) int {
	switch st.Directive {
	case dirAscii, dirAsciiz:
		n := 0
		for _, op := range st.ops {
			if len(op) != 1 || op[0].Type != TokString {
				return -1
			}
			n += len(op[0].Text)
			if st.Directive == dirAsciiz {
				n++
			}
		}
		if len(st.ops) == 0 {
			return -1
		}
		return n
	case dirWord, dirHalf, dirByte:
		unit, _ := dataDirective(st.Directive)
		if len(st.ops) == 0 {
			return -1
		}
		for _, op := range st.ops {
			if len(op) != 1 {
				return -1
			}
			switch op[0].Type {
			case TokImmediate, TokChar:
			case TokLabel:
				// Label addresses only fit a full word.
				if st.Directive != dirWord {
					return -1
				}
			default:
				return -1
			}
		}
		return unit * len(st.ops)
	}
	return -1
}

// alignUp rounds addr up to a 1<<n boundary.
func alignUp(addr uint32, n uint32) uint32 {
	mask := uint32(1)<<n - 1
	return (addr + mask) &^ mask
}
