package assembler

import (
	"github.com/mipsim/mips32/cpu"
)

// Pass 2 instruction encoding: operand groups are checked against the
// instruction's syntax shape and packed into a word. Every failure is
// recorded as a diagnostic; the returned bool reports success.

func (a *Assembler) encodeInstr(st *Statement) (uint32, bool) {
	spec := st.Spec
	var rs, rt, rd, shamt, imm, target uint32
	ok := false

	switch spec.Syntax {
	case cpu.SynNone:
		ok = a.wantOps(st, 0)

	case cpu.Syn3R:
		if a.wantOps(st, 3) {
			rd, rs, rt, ok = a.threeRegs(st)
		}

	case cpu.SynShift:
		if a.wantOps(st, 3) {
			var v int64
			rd, ok = a.wantReg(st, 0)
			if ok {
				rt, ok = a.wantReg(st, 1)
			}
			if ok {
				v, ok = a.wantImm(st, 2, 0, 31)
				shamt = uint32(v)
			}
		}

	case cpu.SynShiftVar:
		if a.wantOps(st, 3) {
			rd, ok = a.wantReg(st, 0)
			if ok {
				rt, ok = a.wantReg(st, 1)
			}
			if ok {
				rs, ok = a.wantReg(st, 2)
			}
		}

	case cpu.SynRs:
		if a.wantOps(st, 1) {
			rs, ok = a.wantReg(st, 0)
			// jalr's implicit link register is part of the encoding.
			if spec.Mnemonic == "jalr" {
				rd = cpu.RegRA
			}
		}

	case cpu.SynRd:
		if a.wantOps(st, 1) {
			rd, ok = a.wantReg(st, 0)
		}

	case cpu.SynRsRt:
		if a.wantOps(st, 2) {
			rs, ok = a.wantReg(st, 0)
			if ok {
				rt, ok = a.wantReg(st, 1)
			}
		}

	case cpu.SynArithImm:
		if a.wantOps(st, 3) {
			var v int64
			rt, ok = a.wantReg(st, 0)
			if ok {
				rs, ok = a.wantReg(st, 1)
			}
			if ok {
				v, ok = a.wantImm(st, 2, -32768, 32767)
				imm = uint32(v) & 0xffff
			}
		}

	case cpu.SynLogicImm:
		if a.wantOps(st, 3) {
			var v int64
			rt, ok = a.wantReg(st, 0)
			if ok {
				rs, ok = a.wantReg(st, 1)
			}
			if ok {
				v, ok = a.wantImm(st, 2, 0, 0xffff)
				imm = uint32(v)
			}
		}

	case cpu.SynLui:
		if a.wantOps(st, 2) {
			var v int64
			rt, ok = a.wantReg(st, 0)
			if ok {
				v, ok = a.wantImm(st, 1, 0, 0xffff)
				imm = uint32(v)
			}
		}

	case cpu.SynBranch:
		if a.wantOps(st, 3) {
			rs, ok = a.wantReg(st, 0)
			if ok {
				rt, ok = a.wantReg(st, 1)
			}
			if ok {
				imm, ok = a.branchOffset(st, 2)
			}
		}

	case cpu.SynBranchZ:
		if a.wantOps(st, 2) {
			rs, ok = a.wantReg(st, 0)
			if ok {
				imm, ok = a.branchOffset(st, 1)
			}
		}

	case cpu.SynMem:
		if a.wantOps(st, 2) {
			rt, ok = a.wantReg(st, 0)
			if ok {
				var off int64
				off, rs, ok = a.memOperand(st, 1)
				imm = uint32(off) & 0xffff
			}
		}

	case cpu.SynJump:
		if a.wantOps(st, 1) {
			target, ok = a.jumpTarget(st, 0)
		}

	case cpu.SynCop0:
		if a.wantOps(st, 2) {
			rt, ok = a.wantReg(st, 0)
			if ok {
				rd, ok = a.cp0Reg(st, 1)
			}
		}
	}

	if !ok {
		return 0, false
	}
	return spec.Encode(rs, rt, rd, shamt, imm, target), true
}

func (a *Assembler) wantOps(st *Statement, n int) bool {
	if len(st.ops) == n {
		return true
	}
	a.errs.errf(SyntaxError, st.Line, st.Col, "%s takes %d operands, got %d",
		st.Mnemonic, n, len(st.ops))
	return false
}

func (a *Assembler) wantReg(st *Statement, i int) (uint32, bool) {
	n, ok := opRegister(argOp(st, i))
	if !ok {
		a.errs.errf(SyntaxError, st.Line, st.Col, "%s: operand %d must be a register",
			st.Mnemonic, i+1)
		return 0, false
	}
	return uint32(n), true
}

func (a *Assembler) threeRegs(st *Statement) (r1, r2, r3 uint32, ok bool) {
	r1, ok = a.wantReg(st, 0)
	if ok {
		r2, ok = a.wantReg(st, 1)
	}
	if ok {
		r3, ok = a.wantReg(st, 2)
	}
	return
}

// resolveOperand evaluates an immediate operand token: literal,
// character, equate or symbol address. Part selectors from pseudo
// expansion pick out an address half.
func (a *Assembler) resolveOperand(t Token) (int64, bool) {
	switch t.Type {
	case TokImmediate, TokChar:
		return t.Val, true
	case TokLabel:
		if v, ok := a.equates[t.Text]; ok {
			return v, true
		}
		if s := a.syms.Lookup(t.Text); s != nil {
			switch t.Part {
			case partHi:
				return int64(s.Addr >> 16), true
			case partLo:
				return int64(s.Addr & 0xffff), true
			}
			return int64(s.Addr), true
		}
		a.errs.errf(UnresolvedSymbol, t.Line, t.Col, "undefined symbol %q", t.Text)
		return 0, false
	}
	a.errs.errf(SyntaxError, t.Line, t.Col, "expected an immediate, got %s", t.Type)
	return 0, false
}

func (a *Assembler) wantImm(st *Statement, i int, lo, hi int64) (int64, bool) {
	op := argOp(st, i)
	if len(op) != 1 {
		a.errs.errf(SyntaxError, st.Line, st.Col, "%s: operand %d must be an immediate",
			st.Mnemonic, i+1)
		return 0, false
	}
	v, ok := a.resolveOperand(op[0])
	if !ok {
		return 0, false
	}
	if v < lo || v > hi {
		a.errs.errf(ImmediateOverflow, op[0].Line, op[0].Col,
			"%s: immediate %d out of range [%d,%d]", st.Mnemonic, v, lo, hi)
		return 0, false
	}
	return v, true
}

// branchOffset resolves a branch target operand to a word offset
// relative to the delay slot.
func (a *Assembler) branchOffset(st *Statement, i int) (uint32, bool) {
	op := argOp(st, i)
	if len(op) != 1 {
		a.errs.errf(SyntaxError, st.Line, st.Col, "%s: bad branch target", st.Mnemonic)
		return 0, false
	}
	v, ok := a.resolveOperand(op[0])
	if !ok {
		return 0, false
	}
	delta := v - int64(st.Addr) - 4
	if delta%4 != 0 {
		a.errs.errf(SyntaxError, op[0].Line, op[0].Col,
			"%s: branch target 0x%08x is not word aligned", st.Mnemonic, uint32(v))
		return 0, false
	}
	off := delta / 4
	if off < -32768 || off > 32767 {
		a.errs.errf(ImmediateOverflow, op[0].Line, op[0].Col,
			"%s: branch target out of range", st.Mnemonic)
		return 0, false
	}
	return uint32(off) & 0xffff, true
}

// jumpTarget resolves a jump operand to its 26-bit word index. The
// target must share the upper four address bits with the delay slot.
func (a *Assembler) jumpTarget(st *Statement, i int) (uint32, bool) {
	op := argOp(st, i)
	if len(op) != 1 {
		a.errs.errf(SyntaxError, st.Line, st.Col, "%s: bad jump target", st.Mnemonic)
		return 0, false
	}
	v, ok := a.resolveOperand(op[0])
	if !ok {
		return 0, false
	}
	addr := uint32(v)
	if addr%4 != 0 {
		a.errs.errf(SyntaxError, op[0].Line, op[0].Col,
			"%s: jump target 0x%08x is not word aligned", st.Mnemonic, addr)
		return 0, false
	}
	if addr&0xf0000000 != (st.Addr+4)&0xf0000000 {
		a.errs.errf(ImmediateOverflow, op[0].Line, op[0].Col,
			"%s: jump target 0x%08x outside the current 256MB region", st.Mnemonic, addr)
		return 0, false
	}
	return addr >> 2 & 0x3ffffff, true
}

// memOperand parses offset(base): a bare offset, a bare (base), or the
// full form. The offset must fit a signed 16-bit field.
func (a *Assembler) memOperand(st *Statement, i int) (off int64, base uint32, ok bool) {
	g := argOp(st, i)
	var offTok *Token
	switch {
	case len(g) == 1:
		offTok = &g[0]
	case len(g) == 3 && g[0].Type == TokLParen && g[1].Type == TokRegister && g[2].Type == TokRParen:
		return 0, uint32(g[1].Val), true
	case len(g) == 4 && g[1].Type == TokLParen && g[2].Type == TokRegister && g[3].Type == TokRParen:
		offTok = &g[0]
		base = uint32(g[2].Val)
	default:
		a.errs.errf(SyntaxError, st.Line, st.Col, "%s: expected offset(base)", st.Mnemonic)
		return 0, 0, false
	}
	v, ok := a.resolveOperand(*offTok)
	if !ok {
		return 0, 0, false
	}
	if v < -32768 || v > 32767 {
		a.errs.errf(ImmediateOverflow, offTok.Line, offTok.Col,
			"%s: offset %d out of range", st.Mnemonic, v)
		return 0, 0, false
	}
	return v, base, true
}

// cp0Reg accepts a coprocessor-0 register written either as $N or as a
// plain number.
func (a *Assembler) cp0Reg(st *Statement, i int) (uint32, bool) {
	op := argOp(st, i)
	if len(op) == 1 {
		switch op[0].Type {
		case TokRegister:
			return uint32(op[0].Val), true
		case TokImmediate:
			if op[0].Val >= 0 && op[0].Val <= 31 {
				return uint32(op[0].Val), true
			}
		}
	}
	a.errs.errf(SyntaxError, st.Line, st.Col, "%s: bad coprocessor register", st.Mnemonic)
	return 0, false
}
