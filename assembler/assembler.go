// Package assembler turns MIPS32 assembly source into a loadable memory
// image. Assembly runs in two passes: the first expands
// pseudo-instructions, lays out segments and collects symbols, the
// second encodes instructions and emits data now that every address is
// known. Errors are batched so one run reports everything it can find.
package assembler

import (
	"log"
	"sort"

	"github.com/mipsim/mips32/cpu"
)

type stKind int

const (
	stInstr stKind = iota
	stDirective
	stLabel // label-only line
)

// Statement is one parsed source statement. Addr and Seg are assigned
// during layout in pass 1.
type Statement struct {
	Kind      stKind
	Label     string
	Mnemonic  string
	Directive string
	Spec      *cpu.InstrSpec
	ops       [][]Token
	Line      int
	Col       int
	Addr      uint32
	Seg       cpu.SegmentKind
}

type segment struct {
	kind cpu.SegmentKind
	base uint32
	next uint32
	buf  []byte
	// statements placed in this segment, in layout order
	stmts []*Statement
}

func (s *segment) used() bool { return s.next > s.base }

func (s *segment) write(addr uint32, b []byte) {
	off := int(addr - s.base)
	if need := off + len(b); need > len(s.buf) {
		s.buf = append(s.buf, make([]byte, need-len(s.buf))...)
	}
	copy(s.buf[off:], b)
}

// Assembler assembles one source file at a time. Zero value is not
// usable; call New.
type Assembler struct {
	Verbose bool

	errs    ErrorList
	syms    *SymbolTable
	equates map[string]int64
	segs    map[cpu.SegmentKind]*segment
	cur     *segment
	globls  []Token
	lines   map[uint32]int
}

func New() *Assembler {
	return &Assembler{}
}

// Assemble builds a memory image from src. On failure the returned
// error is an *ErrorList holding every collected diagnostic.
func (a *Assembler) Assemble(src string) (*cpu.Image, error) {
	a.reset()

	lines := lexLines(src, &a.errs)
	stmts := a.parse(lines)
	a.layout(stmts)
	if a.errs.empty() {
		a.emit()
	}
	if !a.errs.empty() {
		return nil, &a.errs
	}

	img := &cpu.Image{Lines: a.lines}
	for _, kind := range []cpu.SegmentKind{cpu.SegText, cpu.SegData, cpu.SegKText, cpu.SegKData, cpu.SegExtern} {
		seg := a.segs[kind]
		if !seg.used() {
			continue
		}
		data := seg.buf
		if n := int(seg.next - seg.base); len(data) < n {
			data = append(data, make([]byte, n-len(data))...)
		}
		img.Segments = append(img.Segments, cpu.Segment{Kind: kind, Base: seg.base, Data: data})
	}
	entry := a.entrySymbol()
	if entry == nil {
		return nil, &a.errs
	}
	img.Entry = entry.Addr
	if a.Verbose {
		log.Printf("assembled %d segments, entry %s at 0x%08x", len(img.Segments), entry.Name, entry.Addr)
	}
	return img, nil
}

// NearestSymbol returns the closest defined symbol at or below addr,
// or nil. Useful for naming the region of a runtime fault.
func (a *Assembler) NearestSymbol(addr uint32) *Symbol {
	if a.syms == nil {
		return nil
	}
	return a.syms.Nearest(addr)
}

// Symbols returns the collected symbol table sorted by address.
func (a *Assembler) Symbols() []*Symbol {
	if a.syms == nil {
		return nil
	}
	var out []*Symbol
	for _, s := range a.syms.syms {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

func (a *Assembler) reset() {
	a.errs = ErrorList{}
	a.syms = newSymbolTable()
	a.equates = make(map[string]int64)
	a.lines = make(map[uint32]int)
	a.globls = nil
	a.segs = map[cpu.SegmentKind]*segment{
		cpu.SegText:   {kind: cpu.SegText, base: cpu.TextBase, next: cpu.TextBase},
		cpu.SegData:   {kind: cpu.SegData, base: cpu.DataBase, next: cpu.DataBase},
		cpu.SegKText:  {kind: cpu.SegKText, base: cpu.KTextBase, next: cpu.KTextBase},
		cpu.SegKData:  {kind: cpu.SegKData, base: cpu.KDataBase, next: cpu.KDataBase},
		cpu.SegExtern: {kind: cpu.SegExtern, base: cpu.ExternBase, next: cpu.ExternBase},
	}
	a.cur = a.segs[cpu.SegText]
}

// parse groups lexed tokens into statements. A trailing-colon label may
// stand alone or prefix an instruction or directive on the same line.
func (a *Assembler) parse(lines [][]Token) []*Statement {
	var stmts []*Statement
	for _, toks := range lines {
		if len(toks) == 0 {
			continue
		}
		st := &Statement{Line: toks[0].Line, Col: toks[0].Col}
		if toks[0].Type == TokLabel && len(toks) > 1 && toks[1].Type == TokColon {
			st.Label = toks[0].Text
			toks = toks[2:]
		}
		if len(toks) == 0 {
			st.Kind = stLabel
			stmts = append(stmts, st)
			continue
		}
		head := toks[0]
		rest := toks[1:]
		switch head.Type {
		case TokMnemonic:
			st.Kind = stInstr
			st.Mnemonic = head.Text
			ops, ok := splitArgs(rest)
			if !ok {
				a.errs.errf(SyntaxError, head.Line, head.Col, "malformed operand list for %s", head.Text)
				continue
			}
			st.ops = ops
		case TokDirective:
			st.Kind = stDirective
			st.Directive = head.Text
			if head.Text == dirEqv {
				// lexer emits name then raw expression, no commas
				for _, t := range rest {
					st.ops = append(st.ops, []Token{t})
				}
			} else {
				ops, ok := splitArgs(rest)
				if !ok {
					a.errs.errf(SyntaxError, head.Line, head.Col, "malformed operand list for %s", head.Text)
					continue
				}
				st.ops = ops
			}
		default:
			a.errs.errf(SyntaxError, head.Line, head.Col, "expected instruction or directive, got %s", head.Type)
			continue
		}
		stmts = append(stmts, st)
	}
	return stmts
}

// splitArgs divides operand tokens at commas. An empty group between
// commas or a trailing comma is malformed.
func splitArgs(toks []Token) ([][]Token, bool) {
	if len(toks) == 0 {
		return nil, true
	}
	var ops [][]Token
	start := 0
	for i, t := range toks {
		if t.Type != TokComma {
			continue
		}
		if i == start {
			return nil, false
		}
		ops = append(ops, toks[start:i])
		start = i + 1
	}
	if start >= len(toks) {
		return nil, false
	}
	ops = append(ops, toks[start:])
	return ops, true
}

// layout is pass 1: assign every statement an address, define labels
// and equates, and expand pseudo-instructions.
func (a *Assembler) layout(stmts []*Statement) {
	for _, st := range stmts {
		switch st.Kind {
		case stLabel:
			a.defineLabel(st.Label, st.Line)
		case stInstr:
			a.layoutInstr(st)
		case stDirective:
			a.layoutDirective(st)
		}
	}

	for _, t := range a.globls {
		if !a.syms.MarkGlobal(t.Text) {
			a.errs.errf(UnresolvedSymbol, t.Line, t.Col, "global symbol %q is never defined", t.Text)
		}
	}
	a.checkOverlap()
	if a.entrySymbol() == nil {
		a.errs.errf(MissingEntryPoint, 0, 0, "no global main or __start symbol")
	}
}

func (a *Assembler) defineLabel(name string, line int) {
	if name == "" {
		return
	}
	if _, dup := a.equates[name]; dup {
		a.errs.errf(DuplicateSymbol, line, 0, "%q already defined as an equate", name)
		return
	}
	if _, ok := a.syms.Define(name, a.cur.next, a.cur.kind, line); !ok {
		prev := a.syms.Lookup(name)
		a.errs.errf(DuplicateSymbol, line, 0, "%q already defined on line %d", name, prev.Line)
	}
}

func (a *Assembler) layoutInstr(st *Statement) {
	if a.cur.kind != cpu.SegText && a.cur.kind != cpu.SegKText {
		a.errs.errf(SyntaxError, st.Line, st.Col, "instruction outside a text segment")
		return
	}
	a.defineLabel(st.Label, st.Line)

	seq := []*Statement{st}
	if expand, ok := pseudoOps[st.Mnemonic]; ok {
		var diag *Diagnostic
		seq, diag = expand(a, st)
		if diag != nil {
			a.errs.add(diag)
			return
		}
	} else if st.Spec = cpu.Lookup(st.Mnemonic); st.Spec == nil {
		a.errs.errf(SyntaxError, st.Line, st.Col, "unknown instruction %q", st.Mnemonic)
		return
	}
	for _, ins := range seq {
		ins.Addr = a.cur.next
		ins.Seg = a.cur.kind
		a.lines[ins.Addr] = st.Line
		a.cur.stmts = append(a.cur.stmts, ins)
		a.cur.next += 4
	}
}

func (a *Assembler) layoutDirective(st *Statement) {
	name := st.Directive
	if !knownDirective(name) {
		a.errs.errf(SyntaxError, st.Line, st.Col, "unknown directive %s", name)
		return
	}

	if kind, ok := segmentFor(name); ok {
		a.defineLabel(st.Label, st.Line)
		a.switchSegment(st, kind)
		return
	}

	switch name {
	case dirGlobl, dirGlobal:
		a.defineLabel(st.Label, st.Line)
		if len(st.ops) == 0 {
			a.errs.errf(SyntaxError, st.Line, st.Col, "%s requires at least one symbol", name)
			return
		}
		for _, op := range st.ops {
			if lab, ok := opLabel(op); ok {
				a.globls = append(a.globls, lab)
			} else {
				a.errs.errf(SyntaxError, st.Line, st.Col, "%s operands must be symbols", name)
			}
		}

	case dirEqv:
		a.layoutEqv(st)

	case dirInclude:
		// Includes are spliced before lexing by AssembleFile; one
		// reaching this point came from a plain source string.
		a.errs.errf(SyntaxError, st.Line, st.Col,
			".include requires assembling from a file")

	case dirExtern:
		a.layoutExtern(st)

	case dirAlign:
		a.layoutAlign(st)

	case dirSpace:
		if !a.requireData(st) {
			return
		}
		n, ok := a.opConstant(argOp(st, 0))
		if len(st.ops) != 1 || !ok || n < 0 {
			a.errs.errf(SyntaxError, st.Line, st.Col, ".space requires a non-negative byte count")
			return
		}
		a.defineLabel(st.Label, st.Line)
		a.cur.next += uint32(n)

	default: // data-emitting directives
		if !a.requireData(st) {
			return
		}
		if unit, _ := dataDirective(name); unit > 1 {
			a.cur.next = alignUp(a.cur.next, uint32(unit/2)) // 2→1, 4→2
		}
		size := dataSize(st)
		if size < 0 {
			a.errs.errf(SyntaxError, st.Line, st.Col, "malformed operands for %s", name)
			return
		}
		a.defineLabel(st.Label, st.Line)
		st.Addr = a.cur.next
		st.Seg = a.cur.kind
		a.cur.stmts = append(a.cur.stmts, st)
		a.cur.next += uint32(size)
	}
}

func (a *Assembler) switchSegment(st *Statement, kind cpu.SegmentKind) {
	seg := a.segs[kind]
	a.cur = seg
	if len(st.ops) == 0 {
		return
	}
	addr, ok := a.opConstant(argOp(st, 0))
	if len(st.ops) != 1 || !ok || addr < 0 || addr > 0xffffffff {
		a.errs.errf(SyntaxError, st.Line, st.Col, "%s takes an optional address", st.Directive)
		return
	}
	at := uint32(addr)
	switch {
	case !seg.used() && len(seg.stmts) == 0:
		seg.base, seg.next = at, at
	case at >= seg.next:
		seg.next = at
	default:
		a.errs.errf(SegmentOverlap, st.Line, st.Col,
			"%s 0x%08x rewinds over already placed content", st.Directive, at)
	}
}

func (a *Assembler) layoutEqv(st *Statement) {
	if len(st.ops) != 2 {
		a.errs.errf(SyntaxError, st.Line, st.Col, ".eqv requires a name and an expression")
		return
	}
	name, ok1 := opLabel(st.ops[0])
	expr := argOp(st, 1)
	if !ok1 || len(expr) != 1 || expr[0].Type != TokString {
		a.errs.errf(SyntaxError, st.Line, st.Col, ".eqv requires a name and an expression")
		return
	}
	if _, dup := a.equates[name.Text]; dup {
		a.errs.errf(DuplicateSymbol, st.Line, st.Col, "equate %q already defined", name.Text)
		return
	}
	if a.syms.Lookup(name.Text) != nil {
		a.errs.errf(DuplicateSymbol, st.Line, st.Col, "%q already defined as a label", name.Text)
		return
	}
	v, err := evalConstExpr(expr[0].Text, a.equates)
	if err != nil {
		a.errs.errf(SyntaxError, st.Line, st.Col, "bad .eqv expression: %v", err)
		return
	}
	a.equates[name.Text] = v
	if a.Verbose {
		log.Printf("equate %s = %d", name.Text, v)
	}
}

func (a *Assembler) layoutExtern(st *Statement) {
	if len(st.ops) != 2 {
		a.errs.errf(SyntaxError, st.Line, st.Col, ".extern requires a symbol and a size")
		return
	}
	name, ok1 := opLabel(st.ops[0])
	size, ok2 := a.opConstant(st.ops[1])
	if !ok1 || !ok2 || size <= 0 {
		a.errs.errf(SyntaxError, st.Line, st.Col, ".extern requires a symbol and a positive size")
		return
	}
	ext := a.segs[cpu.SegExtern]
	if _, ok := a.syms.Define(name.Text, ext.next, cpu.SegExtern, st.Line); !ok {
		a.errs.errf(DuplicateSymbol, st.Line, st.Col, "%q already defined", name.Text)
		return
	}
	ext.next += uint32(size)
}

func (a *Assembler) layoutAlign(st *Statement) {
	n, ok := a.opConstant(argOp(st, 0))
	if len(st.ops) != 1 || !ok || n < 0 || n > 16 {
		a.errs.errf(SyntaxError, st.Line, st.Col, ".align requires an exponent between 0 and 16")
		return
	}
	a.cur.next = alignUp(a.cur.next, uint32(n))
	a.defineLabel(st.Label, st.Line)
}

func (a *Assembler) requireData(st *Statement) bool {
	if a.cur.kind == cpu.SegData || a.cur.kind == cpu.SegKData {
		return true
	}
	a.errs.errf(SyntaxError, st.Line, st.Col, "%s outside a data segment", st.Directive)
	return false
}

// checkOverlap verifies no two populated segments occupy overlapping
// address ranges.
func (a *Assembler) checkOverlap() {
	var used []*segment
	for _, seg := range a.segs {
		if seg.used() {
			used = append(used, seg)
		}
	}
	sort.Slice(used, func(i, j int) bool { return used[i].base < used[j].base })
	for i := 1; i < len(used); i++ {
		lo, hi := used[i-1], used[i]
		if lo.next > hi.base {
			a.errs.errf(SegmentOverlap, 0, 0,
				"%s segment [0x%08x,0x%08x) overlaps %s segment at 0x%08x",
				lo.kind, lo.base, lo.next, hi.kind, hi.base)
		}
	}
}

// entrySymbol picks the program entry point: a global main, or failing
// that a global __start.
func (a *Assembler) entrySymbol() *Symbol {
	for _, name := range []string{"main", "__start"} {
		if s := a.syms.Lookup(name); s != nil && s.Global {
			return s
		}
	}
	return nil
}

// emit is pass 2: encode instructions and serialize data values into
// each segment's byte buffer.
func (a *Assembler) emit() {
	for _, kind := range []cpu.SegmentKind{cpu.SegText, cpu.SegData, cpu.SegKText, cpu.SegKData} {
		seg := a.segs[kind]
		for _, st := range seg.stmts {
			if st.Kind == stInstr {
				word, ok := a.encodeInstr(st)
				if ok {
					var b [4]byte
					b[0] = byte(word)
					b[1] = byte(word >> 8)
					b[2] = byte(word >> 16)
					b[3] = byte(word >> 24)
					seg.write(st.Addr, b[:])
				}
				continue
			}
			a.emitData(st, seg)
		}
	}
}

func (a *Assembler) emitData(st *Statement, seg *segment) {
	switch st.Directive {
	case dirAscii, dirAsciiz:
		addr := st.Addr
		for _, op := range st.ops {
			text := op[0].Text
			seg.write(addr, []byte(text))
			addr += uint32(len(text))
			if st.Directive == dirAsciiz {
				seg.write(addr, []byte{0})
				addr++
			}
		}
	case dirWord, dirHalf, dirByte:
		unit, _ := dataDirective(st.Directive)
		addr := st.Addr
		for _, op := range st.ops {
			v, ok := a.resolveValue(op[0])
			if !ok {
				return
			}
			if !fitsUnit(v, unit) {
				a.errs.errf(ImmediateOverflow, op[0].Line, op[0].Col,
					"value %d does not fit in %d bytes", v, unit)
				return
			}
			b := make([]byte, unit)
			for i := 0; i < unit; i++ {
				b[i] = byte(v >> (8 * i))
			}
			seg.write(addr, b)
			addr += uint32(unit)
		}
	}
}

func fitsUnit(v int64, unit int) bool {
	switch unit {
	case 1:
		return v >= -128 && v <= 255
	case 2:
		return v >= -32768 && v <= 65535
	}
	return v >= -(1<<31) && v <= 0xffffffff
}

// resolveValue evaluates a data operand: a literal, character, equate
// or label address.
func (a *Assembler) resolveValue(t Token) (int64, bool) {
	switch t.Type {
	case TokImmediate, TokChar:
		return t.Val, true
	case TokLabel:
		if v, ok := a.equates[t.Text]; ok {
			return v, true
		}
		if s := a.syms.Lookup(t.Text); s != nil {
			return int64(s.Addr), true
		}
		a.errs.errf(UnresolvedSymbol, t.Line, t.Col, "undefined symbol %q", t.Text)
	}
	return 0, false
}
