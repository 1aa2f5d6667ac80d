package assembler

import "strconv"

// TokenType classifies one lexed token.
type TokenType int

const (
	TokMnemonic TokenType = iota
	TokRegister
	TokImmediate
	TokLabel // definition or reference; a following colon defines
	TokDirective
	TokString
	TokChar
	TokComma
	TokLParen
	TokRParen
	TokColon
	TokNewline
)

func (t TokenType) String() string {
	switch t {
	case TokMnemonic:
		return "mnemonic"
	case TokRegister:
		return "register"
	case TokImmediate:
		return "immediate"
	case TokLabel:
		return "label"
	case TokDirective:
		return "directive"
	case TokString:
		return "string"
	case TokChar:
		return "character"
	case TokComma:
		return "comma"
	case TokLParen:
		return "'('"
	case TokRParen:
		return "')'"
	case TokColon:
		return "colon"
	case TokNewline:
		return "newline"
	}
	return "?"
}

// Address part selectors for label operands produced by pseudo
// expansion: la splits an address into its upper and lower halves.
type addrPart int

const (
	partFull addrPart = iota
	partHi
	partLo
)

// Token is one lexical element, immutable once produced. Value holds
// the numeric payload for immediates, characters and registers; Text
// the processed string payload for strings and labels.
type Token struct {
	Type TokenType
	Raw  string
	Text string
	Val  int64
	Part addrPart
	Line int
	Col  int
}

// Synthetic token constructors used by pseudo-instruction expansion.

func regToken(n int, line int) Token {
	return Token{Type: TokRegister, Raw: "$" + strconv.Itoa(n), Val: int64(n), Line: line}
}

func immToken(v int64, line int) Token {
	return Token{Type: TokImmediate, Raw: strconv.FormatInt(v, 10), Val: v, Line: line}
}

func labelToken(name string, part addrPart, line int) Token {
	return Token{Type: TokLabel, Raw: name, Text: name, Part: part, Line: line}
}
