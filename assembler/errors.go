package assembler

import (
	"strings"

	"github.com/mipsim/mips32/translate"
)

var f = translate.From

// DiagKind is the category of an assembly-time failure.
type DiagKind int

const (
	LexError DiagKind = iota
	SyntaxError
	DuplicateSymbol
	MissingEntryPoint
	UnresolvedSymbol
	ImmediateOverflow
	SegmentOverlap
)

func (k DiagKind) String() string {
	switch k {
	case LexError:
		return "lex error"
	case SyntaxError:
		return "syntax error"
	case DuplicateSymbol:
		return "duplicate symbol"
	case MissingEntryPoint:
		return "missing entry point"
	case UnresolvedSymbol:
		return "unresolved symbol"
	case ImmediateOverflow:
		return "immediate overflow"
	case SegmentOverlap:
		return "segment overlap"
	}
	return "error"
}

// Diagnostic is one structured assembly failure with its source
// location. Line and Col are 1-based; zero means not applicable.
type Diagnostic struct {
	Kind    DiagKind
	Message string
	Line    int
	Col     int
}

func (d *Diagnostic) Error() string {
	if d.Line > 0 {
		return f("line %d: %s: %s", d.Line, d.Kind, d.Message)
	}
	return f("%s: %s", d.Kind, d.Message)
}

// maxDiagnostics caps a single assembly's error batch.
const maxDiagnostics = 20

// ErrorList batches diagnostics so one assembly reports every error it
// can find rather than only the first.
type ErrorList struct {
	Diags     []*Diagnostic
	truncated bool
}

func (l *ErrorList) add(d *Diagnostic) {
	if len(l.Diags) >= maxDiagnostics {
		if !l.truncated {
			l.truncated = true
			l.Diags = append(l.Diags, &Diagnostic{
				Kind:    SyntaxError,
				Message: f("too many errors, further diagnostics suppressed"),
			})
		}
		return
	}
	l.Diags = append(l.Diags, d)
}

func (l *ErrorList) errf(kind DiagKind, line, col int, format string, args ...any) {
	l.add(&Diagnostic{Kind: kind, Message: f(format, args...), Line: line, Col: col})
}

func (l *ErrorList) empty() bool { return len(l.Diags) == 0 }

func (l *ErrorList) Error() string {
	var sb strings.Builder
	for i, d := range l.Diags {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(d.Error())
	}
	return sb.String()
}
