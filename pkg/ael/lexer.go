package ael

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenLBrace    TokenType = iota // {
	TokenRBrace                     // }
	TokenLParen                     // (
	TokenRParen                     // )
	TokenSemicolon                  // ;
	TokenComma                      // ,
	TokenColon                      // :
	TokenAssign                     // =
	TokenArrow                      // =>
	TokenAmp                        // &
	TokenPipe                       // |
	TokenAt                         // @
	TokenWord                       // unquoted word
	TokenString                     // "quoted string"
	TokenEOF
	TokenError
)

func (t TokenType) String() string {
	switch t {
	case TokenLBrace:
		return "'{'"
	case TokenRBrace:
		return "'}'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenSemicolon:
		return "';'"
	case TokenComma:
		return "','"
	case TokenColon:
		return "':'"
	case TokenAssign:
		return "'='"
	case TokenArrow:
		return "'=>'"
	case TokenAmp:
		return "'&'"
	case TokenPipe:
		return "'|'"
	case TokenAt:
		return "'@'"
	case TokenWord:
		return "word"
	case TokenString:
		return "string"
	case TokenEOF:
		return "EOF"
	case TokenError:
		return "error"
	default:
		return "unknown"
	}
}

// Token is a single lexer token.
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

func (t Token) String() string {
	if t.Type == TokenWord || t.Type == TokenString {
		return fmt.Sprintf("%s(%q)", t.Type, t.Value)
	}
	return t.Type.String()
}

// Lexer tokenizes dialplan script text. Besides tokens it can hand out raw
// text spans (conditions, argument lists, values) that the language treats
// as opaque.
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
}

// NewLexer creates a new Lexer for the given input string.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		column: 1,
	}
}

// Next returns the next token, advancing the position.
func (l *Lexer) Next() Token {
	l.skipWhitespaceAndComments()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Line: l.line, Column: l.column}
	}

	ch := l.input[l.pos]
	line, col := l.line, l.column

	single := func(tt TokenType) Token {
		l.advance()
		return Token{Type: tt, Value: string(ch), Line: line, Column: col}
	}

	switch ch {
	case '{':
		return single(TokenLBrace)
	case '}':
		return single(TokenRBrace)
	case '(':
		return single(TokenLParen)
	case ')':
		return single(TokenRParen)
	case ';':
		return single(TokenSemicolon)
	case ',':
		return single(TokenComma)
	case ':':
		return single(TokenColon)
	case '&':
		return single(TokenAmp)
	case '|':
		return single(TokenPipe)
	case '@':
		return single(TokenAt)
	case '=':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '>' {
			l.advance()
			l.advance()
			return Token{Type: TokenArrow, Value: "=>", Line: line, Column: col}
		}
		return single(TokenAssign)
	case '"':
		return l.readString(line, col)
	default:
		if isWordChar(ch) {
			return l.readWord(line, col)
		}
		l.advance()
		return Token{
			Type:   TokenError,
			Value:  fmt.Sprintf("unexpected character: %c", ch),
			Line:   line,
			Column: col,
		}
	}
}

// Peek returns the next token without advancing.
func (l *Lexer) Peek() Token {
	savedPos := l.pos
	savedLine := l.line
	savedCol := l.column
	tok := l.Next()
	l.pos = savedPos
	l.line = savedLine
	l.column = savedCol
	return tok
}

// Line returns the current line.
func (l *Lexer) Line() int { return l.line }

// ReadRaw returns the text up to (not including) the first stop byte found
// outside quotes and brackets. The stop byte is not consumed. ok is false
// when the input ends first.
func (l *Lexer) ReadRaw(stop byte) (text string, line int, ok bool) {
	l.skipWhitespaceAndComments()
	line = l.line
	start := l.pos
	depth := 0
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '"':
			l.skipQuoted()
			continue
		case ch == stop && depth == 0:
			return strings.TrimSpace(l.input[start:l.pos]), line, true
		case ch == '(' || ch == '[' || ch == '{':
			depth++
		case ch == ')' || ch == ']' || ch == '}':
			if depth == 0 {
				return strings.TrimSpace(l.input[start:l.pos]), line, false
			}
			depth--
		}
		l.advance()
	}
	return strings.TrimSpace(l.input[start:l.pos]), line, false
}

func (l *Lexer) skipQuoted() {
	l.advance() // opening quote
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		l.advance()
		if ch == '\\' {
			l.advance()
			continue
		}
		if ch == '"' {
			return
		}
	}
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			l.advance()
			continue
		}

		// Block comment: /* ... */
		if ch == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '*' {
			l.advance() // /
			l.advance() // *
			for l.pos+1 < len(l.input) {
				if l.input[l.pos] == '*' && l.input[l.pos+1] == '/' {
					l.advance() // *
					l.advance() // /
					break
				}
				l.advance()
			}
			continue
		}

		// Line comment: // ... \n
		if ch == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/' {
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
			continue
		}

		break
	}
}

func (l *Lexer) readString(line, col int) Token {
	l.advance() // opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.advance()
			switch l.input[l.pos] {
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				b.WriteByte('\\')
				b.WriteByte(l.input[l.pos])
			}
			l.advance()
			continue
		}
		if ch == '"' {
			l.advance()
			return Token{Type: TokenString, Value: b.String(), Line: line, Column: col}
		}
		b.WriteByte(ch)
		l.advance()
	}
	return Token{Type: TokenError, Value: "unterminated string", Line: line, Column: col}
}

// readWord reads an extension name, label or application name. Variable
// references (${...}, $[...]) and bracketed character sets are taken whole.
func (l *Lexer) readWord(line, col int) Token {
	start := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '$' && l.pos+1 < len(l.input) && (l.input[l.pos+1] == '{' || l.input[l.pos+1] == '[') {
			l.advance()
			l.skipBalanced()
			continue
		}
		if ch == '[' {
			l.skipBalanced()
			continue
		}
		if ch == '/' && l.pos+1 < len(l.input) && (l.input[l.pos+1] == '/' || l.input[l.pos+1] == '*') {
			break
		}
		if !isWordChar(ch) {
			break
		}
		l.advance()
	}
	return Token{Type: TokenWord, Value: l.input[start:l.pos], Line: line, Column: col}
}

// skipBalanced consumes a bracketed span starting at the current opener.
func (l *Lexer) skipBalanced() {
	depth := 0
	for l.pos < len(l.input) {
		switch l.input[l.pos] {
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			depth--
		}
		l.advance()
		if depth == 0 {
			return
		}
	}
}

// isWordChar reports whether ch may appear in an unquoted word: names,
// extension patterns (_NXX., [2-9]), caller-id suffixes (100/555) and the
// special extensions * and #.
func isWordChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_' || ch == '.' || ch == '/' ||
		ch == '*' || ch == '+' || ch == '!' || ch == '#' ||
		ch == '~' || ch == '$' || ch == '%' || ch == '^' ||
		ch == '\'' || ch == '?'
}
