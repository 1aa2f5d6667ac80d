package assembler

import (
	"strconv"
	"strings"

	"github.com/mipsim/mips32/cpu"
)

const commentChar = '#'

var escapes = map[byte]byte{
	'n': '\n', 't': '\t', 'r': '\r', 'b': '\b',
	'0': 0, '\\': '\\', '"': '"', '\'': '\'',
}

// lexLines tokenizes source text line by line. Lex errors are recorded
// with their location and lexing continues on the next line, so a
// single pass can report every malformed token in the file.
func lexLines(src string, errs *ErrorList) [][]Token {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	var lines [][]Token
	for i, raw := range strings.Split(src, "\n") {
		lines = append(lines, lexLine(raw, i+1, errs))
	}
	return lines
}

type lineLexer struct {
	src  string
	pos  int
	line int
	errs *ErrorList
	toks []Token
}

func lexLine(src string, line int, errs *ErrorList) []Token {
	lx := &lineLexer{src: src, line: line, errs: errs}
	lx.run()
	return lx.toks
}

func (lx *lineLexer) col() int { return lx.pos + 1 }

func (lx *lineLexer) emit(t Token) {
	lx.toks = append(lx.toks, t)
}

func (lx *lineLexer) errf(col int, format string, args ...any) {
	lx.errs.errf(LexError, lx.line, col, format, args...)
}

func (lx *lineLexer) run() {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		col := lx.col()
		switch {
		case c == commentChar:
			return
		case c == ' ' || c == '\t':
			lx.pos++
		case c == ',':
			lx.emit(Token{Type: TokComma, Raw: ",", Line: lx.line, Col: col})
			lx.pos++
		case c == '(':
			lx.emit(Token{Type: TokLParen, Raw: "(", Line: lx.line, Col: col})
			lx.pos++
		case c == ')':
			lx.emit(Token{Type: TokRParen, Raw: ")", Line: lx.line, Col: col})
			lx.pos++
		case c == ':':
			lx.emit(Token{Type: TokColon, Raw: ":", Line: lx.line, Col: col})
			lx.pos++
		case c == '"':
			lx.lexString(col)
		case c == '\'':
			lx.lexChar(col)
		default:
			lx.lexWord(col)
		}
	}
}

// lexString consumes a quoted string literal with escape processing.
func (lx *lineLexer) lexString(col int) {
	start := lx.pos
	lx.pos++
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch c {
		case '"':
			lx.pos++
			lx.emit(Token{Type: TokString, Raw: lx.src[start:lx.pos], Text: sb.String(), Line: lx.line, Col: col})
			return
		case '\\':
			if lx.pos+1 >= len(lx.src) {
				lx.errf(col, "unterminated string literal")
				lx.pos = len(lx.src)
				return
			}
			e, ok := escapes[lx.src[lx.pos+1]]
			if !ok {
				lx.errf(lx.col(), "unknown escape '\\%c'", lx.src[lx.pos+1])
				lx.pos = len(lx.src)
				return
			}
			sb.WriteByte(e)
			lx.pos += 2
		default:
			sb.WriteByte(c)
			lx.pos++
		}
	}
	lx.errf(col, "unterminated string literal")
}

// lexChar consumes a character literal like 'a' or '\n'.
func (lx *lineLexer) lexChar(col int) {
	s := lx.src[lx.pos:]
	if len(s) >= 4 && s[1] == '\\' && s[3] == '\'' {
		if e, ok := escapes[s[2]]; ok {
			lx.emit(Token{Type: TokChar, Raw: s[:4], Val: int64(e), Line: lx.line, Col: col})
			lx.pos += 4
			return
		}
		lx.errf(col, "unknown escape in character literal")
		lx.pos = len(lx.src)
		return
	}
	if len(s) >= 3 && s[2] == '\'' {
		lx.emit(Token{Type: TokChar, Raw: s[:3], Val: int64(s[1]), Line: lx.line, Col: col})
		lx.pos += 3
		return
	}
	lx.errf(col, "malformed character literal")
	lx.pos = len(lx.src)
}

func wordBreak(c byte) bool {
	switch c {
	case ' ', '\t', ',', '(', ')', ':', commentChar, '"', '\'':
		return true
	}
	return false
}

func (lx *lineLexer) lexWord(col int) {
	start := lx.pos
	for lx.pos < len(lx.src) && !wordBreak(lx.src[lx.pos]) {
		lx.pos++
	}
	word := lx.src[start:lx.pos]

	switch {
	case word[0] == '.':
		lx.emit(Token{Type: TokDirective, Raw: word, Text: strings.ToLower(word), Line: lx.line, Col: col})
		// The .eqv right-hand side is a constant expression; hand the
		// rest of the line to the expression evaluator untouched.
		if strings.ToLower(word) == dirEqv {
			lx.lexEqvTail()
		}
	case word[0] == '$':
		n := cpu.RegisterNumber(word)
		if n < 0 {
			lx.errf(col, "invalid register name %q", word)
			return
		}
		lx.emit(Token{Type: TokRegister, Raw: word, Val: int64(n), Line: lx.line, Col: col})
	case word[0] >= '0' && word[0] <= '9' || word[0] == '-' || word[0] == '+':
		v, err := strconv.ParseInt(word, 0, 64)
		if err != nil {
			// Large hex constants such as 0xffffffff overflow int64
			// parsing only when negative-signed; retry unsigned.
			if u, uerr := strconv.ParseUint(word, 0, 32); uerr == nil {
				v = int64(u)
			} else {
				lx.errf(col, "malformed number %q", word)
				return
			}
		}
		lx.emit(Token{Type: TokImmediate, Raw: word, Val: v, Line: lx.line, Col: col})
	case cpu.Lookup(strings.ToLower(word)) != nil || isPseudo(strings.ToLower(word)):
		lx.emit(Token{Type: TokMnemonic, Raw: word, Text: strings.ToLower(word), Line: lx.line, Col: col})
	case validSymbol(word):
		lx.emit(Token{Type: TokLabel, Raw: word, Text: word, Line: lx.line, Col: col})
	default:
		lx.errf(col, "unexpected token %q", word)
	}
}

// lexEqvTail grabs everything after ".eqv NAME" as a raw expression
// string token.
func (lx *lineLexer) lexEqvTail() {
	// Skip whitespace, then the equate name as a normal token.
	for lx.pos < len(lx.src) && (lx.src[lx.pos] == ' ' || lx.src[lx.pos] == '\t') {
		lx.pos++
	}
	start := lx.pos
	for lx.pos < len(lx.src) && !wordBreak(lx.src[lx.pos]) {
		lx.pos++
	}
	name := lx.src[start:lx.pos]
	if name != "" {
		lx.emit(Token{Type: TokLabel, Raw: name, Text: name, Line: lx.line, Col: start + 1})
	}
	for lx.pos < len(lx.src) && (lx.src[lx.pos] == ' ' || lx.src[lx.pos] == '\t') {
		lx.pos++
	}
	expr := lx.src[lx.pos:]
	if i := strings.IndexByte(expr, commentChar); i >= 0 {
		expr = expr[:i]
	}
	expr = strings.TrimSpace(expr)
	if expr != "" {
		lx.emit(Token{Type: TokString, Raw: expr, Text: expr, Line: lx.line, Col: lx.col()})
	}
	lx.pos = len(lx.src)
}

// validSymbol reports whether a word can name a label. The first
// character must be a letter or underscore.
func validSymbol(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_') {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '_', c == '.', c == '$':
		default:
			return false
		}
	}
	return true
}
