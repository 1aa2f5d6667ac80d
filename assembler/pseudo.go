package assembler

import (
	"github.com/mipsim/mips32/cpu"
)

// Pseudo-instruction expansion. Each rule turns one source statement
// into a fixed-length sequence of real instructions, so segment layout
// is already stable in pass 1. Expanded statements keep the source line
// of the original for diagnostics.

type expandFunc func(a *Assembler, st *Statement) ([]*Statement, *Diagnostic)

var pseudoOps = map[string]expandFunc{
	"li":    expandLi,
	"la":    expandLa,
	"move":  expandMove,
	"clear": expandClear,
	"nop":   expandNop,
	"b":     expandB,
	"beqz":  expandBeqz,
	"bnez":  expandBnez,
	"blt":   expandBlt,
	"ble":   expandBle,
	"bgt":   expandBgt,
	"bge":   expandBge,
	"neg":   expandNeg,
	"not":   expandNot,
	"mul":   expandMul,
	"sgt":   expandSgt,
}

func isPseudo(mnemonic string) bool {
	_, ok := pseudoOps[mnemonic]
	return ok
}

// instrStmt builds a synthetic real-instruction statement.
func instrStmt(line int, mnemonic string, ops ...[]Token) *Statement {
	return &Statement{
		Kind:     stInstr,
		Mnemonic: mnemonic,
		Spec:     cpu.Lookup(mnemonic),
		ops:      ops,
		Line:     line,
	}
}

func rOp(n, line int) []Token            { return []Token{regToken(n, line)} }
func iOp(v int64, line int) []Token      { return []Token{immToken(v, line)} }
func lOp(t Token, part addrPart) []Token { return []Token{labelToken(t.Text, part, t.Line)} }

func pdiag(st *Statement, format string, args ...any) *Diagnostic {
	return &Diagnostic{Kind: SyntaxError, Message: f(format, args...), Line: st.Line}
}

// operand accessors

func opRegister(op []Token) (int, bool) {
	if len(op) == 1 && op[0].Type == TokRegister {
		return int(op[0].Val), true
	}
	return -1, false
}

func opLabel(op []Token) (Token, bool) {
	if len(op) == 1 && op[0].Type == TokLabel {
		return op[0], true
	}
	return Token{}, false
}

// opConstant resolves an expansion-time constant: a literal, character
// or equate. Symbol addresses are not constants here; la handles those.
func (a *Assembler) opConstant(op []Token) (int64, bool) {
	if len(op) != 1 {
		return 0, false
	}
	switch op[0].Type {
	case TokImmediate, TokChar:
		return op[0].Val, true
	case TokLabel:
		v, ok := a.equates[op[0].Text]
		return v, ok
	}
	return 0, false
}

func expandLi(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	if len(st.ops) != 2 {
		return nil, pdiag(st, "li takes a register and an immediate")
	}
	rd, ok := opRegister(st.ops[0])
	if !ok {
		return nil, pdiag(st, "li takes a register and an immediate")
	}
	v, ok := a.opConstant(st.ops[1])
	if !ok {
		return nil, pdiag(st, "li requires a constant immediate")
	}
	switch {
	case v >= -32768 && v <= 32767:
		return []*Statement{
			instrStmt(st.Line, "addiu", rOp(rd, st.Line), rOp(cpu.RegZero, st.Line), iOp(v, st.Line)),
		}, nil
	case v >= 0 && v <= 0xffff:
		return []*Statement{
			instrStmt(st.Line, "ori", rOp(rd, st.Line), rOp(cpu.RegZero, st.Line), iOp(v, st.Line)),
		}, nil
	case v >= -(1<<31) && v <= 0xffffffff:
		u := uint32(v)
		return []*Statement{
			instrStmt(st.Line, "lui", rOp(rd, st.Line), iOp(int64(u>>16), st.Line)),
			instrStmt(st.Line, "ori", rOp(rd, st.Line), rOp(rd, st.Line), iOp(int64(u&0xffff), st.Line)),
		}, nil
	}
	return nil, &Diagnostic{Kind: ImmediateOverflow, Line: st.Line,
		Message: f("value %d does not fit in 32 bits", v)}
}

// expandLa loads a label's address: lui of the upper half into $at,
// then ori of the lower half into the destination.
func expandLa(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	if len(st.ops) != 2 {
		return nil, pdiag(st, "la takes a register and a label")
	}
	rd, ok := opRegister(st.ops[0])
	if !ok {
		return nil, pdiag(st, "la takes a register and a label")
	}
	if lab, ok := opLabel(st.ops[1]); ok {
		if _, isEquate := a.equates[lab.Text]; !isEquate {
			return []*Statement{
				instrStmt(st.Line, "lui", rOp(cpu.RegAT, st.Line), lOp(lab, partHi)),
				instrStmt(st.Line, "ori", rOp(rd, st.Line), rOp(cpu.RegAT, st.Line), lOp(lab, partLo)),
			}, nil
		}
	}
	// Constant operand: same as li.
	return expandLi(a, st)
}

func expandMove(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	rd, ok1 := opRegister(argOp(st, 0))
	rs, ok2 := opRegister(argOp(st, 1))
	if len(st.ops) != 2 || !ok1 || !ok2 {
		return nil, pdiag(st, "move takes two registers")
	}
	return []*Statement{
		instrStmt(st.Line, "addu", rOp(rd, st.Line), rOp(cpu.RegZero, st.Line), rOp(rs, st.Line)),
	}, nil
}

func expandClear(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	rd, ok := opRegister(argOp(st, 0))
	if len(st.ops) != 1 || !ok {
		return nil, pdiag(st, "clear takes one register")
	}
	return []*Statement{
		instrStmt(st.Line, "addu", rOp(rd, st.Line), rOp(cpu.RegZero, st.Line), rOp(cpu.RegZero, st.Line)),
	}, nil
}

func expandNop(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	if len(st.ops) != 0 {
		return nil, pdiag(st, "nop takes no operands")
	}
	return []*Statement{
		instrStmt(st.Line, "sll", rOp(cpu.RegZero, st.Line), rOp(cpu.RegZero, st.Line), iOp(0, st.Line)),
	}, nil
}

func expandB(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	if len(st.ops) != 1 {
		return nil, pdiag(st, "b takes a label")
	}
	return []*Statement{
		instrStmt(st.Line, "beq", rOp(cpu.RegZero, st.Line), rOp(cpu.RegZero, st.Line), st.ops[0]),
	}, nil
}

func expandBeqz(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	return expandCmpZ(st, "beq")
}

func expandBnez(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	return expandCmpZ(st, "bne")
}

func expandCmpZ(st *Statement, branch string) ([]*Statement, *Diagnostic) {
	rs, ok := opRegister(argOp(st, 0))
	if len(st.ops) != 2 || !ok {
		return nil, pdiag(st, "%s takes a register and a label", st.Mnemonic)
	}
	return []*Statement{
		instrStmt(st.Line, branch, rOp(rs, st.Line), rOp(cpu.RegZero, st.Line), st.ops[1]),
	}, nil
}

// Relational branches expand to slt into $at plus a conditional branch.
func expandBlt(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	return expandRel(st, false, "bne")
}

func expandBge(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	return expandRel(st, false, "beq")
}

func expandBgt(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	return expandRel(st, true, "bne")
}

func expandBle(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	return expandRel(st, true, "beq")
}

func expandRel(st *Statement, swap bool, branch string) ([]*Statement, *Diagnostic) {
	rs, ok1 := opRegister(argOp(st, 0))
	rt, ok2 := opRegister(argOp(st, 1))
	if len(st.ops) != 3 || !ok1 || !ok2 {
		return nil, pdiag(st, "%s takes two registers and a label", st.Mnemonic)
	}
	if swap {
		rs, rt = rt, rs
	}
	return []*Statement{
		instrStmt(st.Line, "slt", rOp(cpu.RegAT, st.Line), rOp(rs, st.Line), rOp(rt, st.Line)),
		instrStmt(st.Line, branch, rOp(cpu.RegAT, st.Line), rOp(cpu.RegZero, st.Line), st.ops[2]),
	}, nil
}

func expandNeg(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	rd, ok1 := opRegister(argOp(st, 0))
	rs, ok2 := opRegister(argOp(st, 1))
	if len(st.ops) != 2 || !ok1 || !ok2 {
		return nil, pdiag(st, "neg takes two registers")
	}
	return []*Statement{
		instrStmt(st.Line, "sub", rOp(rd, st.Line), rOp(cpu.RegZero, st.Line), rOp(rs, st.Line)),
	}, nil
}

func expandNot(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	rd, ok1 := opRegister(argOp(st, 0))
	rs, ok2 := opRegister(argOp(st, 1))
	if len(st.ops) != 2 || !ok1 || !ok2 {
		return nil, pdiag(st, "not takes two registers")
	}
	return []*Statement{
		instrStmt(st.Line, "nor", rOp(rd, st.Line), rOp(rs, st.Line), rOp(cpu.RegZero, st.Line)),
	}, nil
}

func expandMul(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	rd, ok1 := opRegister(argOp(st, 0))
	rs, ok2 := opRegister(argOp(st, 1))
	rt, ok3 := opRegister(argOp(st, 2))
	if len(st.ops) != 3 || !ok1 || !ok2 || !ok3 {
		return nil, pdiag(st, "mul takes three registers")
	}
	return []*Statement{
		instrStmt(st.Line, "mult", rOp(rs, st.Line), rOp(rt, st.Line)),
		instrStmt(st.Line, "mflo", rOp(rd, st.Line)),
	}, nil
}

func expandSgt(a *Assembler, st *Statement) ([]*Statement, *Diagnostic) {
	rd, ok1 := opRegister(argOp(st, 0))
	rs, ok2 := opRegister(argOp(st, 1))
	rt, ok3 := opRegister(argOp(st, 2))
	if len(st.ops) != 3 || !ok1 || !ok2 || !ok3 {
		return nil, pdiag(st, "sgt takes three registers")
	}
	return []*Statement{
		instrStmt(st.Line, "slt", rOp(rd, st.Line), rOp(rt, st.Line), rOp(rs, st.Line)),
	}, nil
}

// argOp returns operand group i, or nil when out of range.
func argOp(st *Statement, i int) []Token {
	if i < len(st.ops) {
		return st.ops[i]
	}
	return nil
}
