package assembler

import (
	"github.com/mipsim/mips32/cpu"
)

// Symbol is one label with its resolved address.
type Symbol struct {
	Name    string
	Addr    uint32
	Segment cpu.SegmentKind
	Line    int
	Global  bool
}

// SymbolTable maps label names to addresses. Addresses are assigned in
// pass 1; pass 2 only looks symbols up, so a miss there is an
// unresolved forward reference to a name that was never defined.
type SymbolTable struct {
	syms map[string]*Symbol
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{syms: make(map[string]*Symbol)}
}

// Define records a label definition. Defining the same name twice is an
// error; the first definition wins.
func (t *SymbolTable) Define(name string, addr uint32, seg cpu.SegmentKind, line int) (*Symbol, bool) {
	if _, dup := t.syms[name]; dup {
		return nil, false
	}
	s := &Symbol{Name: name, Addr: addr, Segment: seg, Line: line}
	t.syms[name] = s
	return s, true
}

// Lookup returns the symbol for name, or nil.
func (t *SymbolTable) Lookup(name string) *Symbol {
	return t.syms[name]
}

// MarkGlobal flags a symbol as exported. Returns false if the name is
// not defined.
func (t *SymbolTable) MarkGlobal(name string) bool {
	s, ok := t.syms[name]
	if ok {
		s.Global = true
	}
	return ok
}

// Nearest maps an address back to the closest symbol defined at or
// below it, for fault displays. Returns nil when no symbol qualifies.
func (t *SymbolTable) Nearest(addr uint32) *Symbol {
	var best *Symbol
	for _, s := range t.syms {
		if s.Addr <= addr && (best == nil || s.Addr > best.Addr) {
			best = s
		}
	}
	return best
}
