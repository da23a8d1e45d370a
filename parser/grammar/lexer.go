package grammar

import (
	"fmt"
	"iter"
	"unicode"
	"unicode/utf8"
)

// Lexer splits SmithyQL source into tokens. It never stops on malformed
// input: problems are recorded in Errors and lexing carries on with the
// next byte.
type Lexer struct {
	src   string
	lines lineIndex
	pos   int
	errs  ErrorList
}

// NewLexer returns a lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, lines: newLineIndex(src)}
}

// Reset rewinds the lexer to the start of its input and clears errors.
func (l *Lexer) Reset() {
	l.pos = 0
	l.errs = nil
}

// Errors returns the lexical errors recorded so far.
func (l *Lexer) Errors() ErrorList { return l.errs }

// All returns a restartable sequence over every token including trivia.
// The sequence ends with the EOF token. Each iteration rewinds the lexer.
func (l *Lexer) All() iter.Seq[Token] {
	return func(yield func(Token) bool) {
		l.Reset()
		for {
			tok := l.Next()
			if !yield(tok) || tok.Kind == EOF {
				return
			}
		}
	}
}

// Tokenize lexes src completely, returning all tokens (trivia included,
// terminated by EOF) and the lexical errors.
func Tokenize(src string) ([]Token, ErrorList) {
	l := NewLexer(src)
	var toks []Token
	for tok := range l.All() {
		toks = append(toks, tok)
	}
	return toks, l.Errors()
}

// Next returns the next token. Once the input is exhausted it keeps
// returning EOF.
func (l *Lexer) Next() Token {
	if l.pos >= len(l.src) {
		return l.token(EOF, l.pos)
	}
	start := l.pos
	ch := l.src[l.pos]

	switch ch {
	case '{':
		return l.single(LBrace)
	case '}':
		return l.single(RBrace)
	case '[':
		return l.single(LBracket)
	case ']':
		return l.single(RBracket)
	case ',':
		return l.single(Comma)
	case '.':
		return l.single(Dot)
	case '#':
		return l.single(Hash)
	case '=':
		return l.single(Equals)
	case ':':
		return l.single(Colon)
	case '"':
		return l.lexString()
	case '/':
		if l.peekByte(1) == '/' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			return l.token(Comment, start)
		}
	}

	switch {
	case isIdentStart(ch):
		for l.pos < len(l.src) && isIdentChar(l.src[l.pos]) {
			l.pos++
		}
		return l.token(IdentifierToken, start)
	case ch == '-' || isDigit(ch):
		return l.lexNumber()
	}

	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	if unicode.IsSpace(r) {
		for l.pos < len(l.src) {
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if !unicode.IsSpace(r) {
				break
			}
			l.pos += size
		}
		return l.token(Whitespace, start)
	}

	l.pos += size
	tok := l.token(Invalid, start)
	msg := fmt.Sprintf("unexpected character %q", r)
	if r == utf8.RuneError && size == 1 {
		msg = fmt.Sprintf("invalid UTF-8 byte 0x%02x", ch)
	}
	l.errorf(ErrUnexpectedCharacter, start, l.pos, "%s", msg)
	return tok
}

func (l *Lexer) single(kind Kind) Token {
	l.pos++
	return l.token(kind, l.pos-1)
}

func (l *Lexer) token(kind Kind, start int) Token {
	return Token{Kind: kind, Text: l.src[start:l.pos], Span: l.lines.span(start, l.pos)}
}

func (l *Lexer) peekByte(ahead int) byte {
	if l.pos+ahead < len(l.src) {
		return l.src[l.pos+ahead]
	}
	return 0
}

func (l *Lexer) errorf(code ErrorCode, start, end int, format string, args ...any) {
	l.errs = append(l.errs, &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Span:    l.lines.span(start, end),
	})
}

// lexNumber scans -?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?. A redundant
// leading zero is consumed into the same token and reported.
func (l *Lexer) lexNumber() Token {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
		if !isDigit(l.peekByte(0)) {
			l.errorf(ErrUnexpectedCharacter, start, l.pos, "'-' must be followed by a digit")
			return l.token(Invalid, start)
		}
	}

	intStart := l.pos
	l.skipDigits()
	if l.src[intStart] == '0' && l.pos-intStart > 1 {
		l.errorf(ErrInvalidNumber, start, l.pos, "number has a redundant leading zero")
	}

	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		l.pos++
		l.skipDigits()
	}

	if c := l.peekByte(0); c == 'e' || c == 'E' {
		ahead := 1
		if s := l.peekByte(1); s == '+' || s == '-' {
			ahead = 2
		}
		if isDigit(l.peekByte(ahead)) {
			l.pos += ahead
			l.skipDigits()
		}
	}
	return l.token(NumberToken, start)
}

func (l *Lexer) skipDigits() {
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
}

// lexString scans a double-quoted string. An unterminated string stops at
// the end of the line so that the following lines still lex normally.
func (l *Lexer) lexString() Token {
	start := l.pos
	l.pos++ // opening quote
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; c {
		case '"':
			l.pos++
			return l.token(StringToken, start)
		case '\n':
			l.errorf(ErrUnterminatedString, start, l.pos, "unterminated string literal")
			return l.token(StringToken, start)
		case '\\':
			l.lexEscape()
		default:
			l.pos++
		}
	}
	l.errorf(ErrUnterminatedString, start, l.pos, "unterminated string literal")
	return l.token(StringToken, start)
}

func (l *Lexer) lexEscape() {
	start := l.pos
	l.pos++ // backslash
	if l.pos >= len(l.src) || l.src[l.pos] == '\n' {
		return
	}
	switch c := l.src[l.pos]; c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		l.pos++
	case 'u':
		l.pos++
		for i := 0; i < 4; i++ {
			if !isHex(l.peekByte(0)) {
				l.errorf(ErrInvalidEscape, start, l.pos, "invalid unicode escape")
				return
			}
			l.pos++
		}
	default:
		_, size := utf8.DecodeRuneInString(l.src[l.pos:])
		l.pos += size
		l.errorf(ErrInvalidEscape, start, l.pos, "invalid escape sequence %q", l.src[start:l.pos])
	}
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isHex(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
