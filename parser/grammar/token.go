// Package grammar implements the SmithyQL lexer and parser.
// token.go defines positions, spans and token kinds.
package grammar

import (
	"fmt"
	"sort"
)

// Pos is a location in a source buffer. Line and Column are 1-based;
// Column counts bytes from the start of the line.
type Pos struct {
	Offset int `json:"offset" yaml:"offset"`
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
}

// String returns a human-readable position
func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is the half-open byte range [Start, End) of a token or node.
type Span struct {
	Start Pos `json:"start" yaml:"start"`
	End   Pos `json:"end" yaml:"end"`
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End.Offset - s.Start.Offset }

// Contains reports whether offset lies inside the span. The end offset is
// included so that a cursor placed right after a node still selects it.
func (s Span) Contains(offset int) bool {
	return s.Start.Offset <= offset && offset <= s.End.Offset
}

func join(a, b Span) Span { return Span{Start: a.Start, End: b.End} }

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Invalid
	Whitespace
	Comment
	IdentifierToken
	NumberToken
	StringToken
	LBrace   // {
	RBrace   // }
	LBracket // [
	RBracket // ]
	Comma    // ,
	Dot      // .
	Hash     // #
	Equals   // =
	Colon    // :
)

var kindNames = [...]string{
	EOF:             "end of input",
	Invalid:         "invalid token",
	Whitespace:      "whitespace",
	Comment:         "comment",
	IdentifierToken: "identifier",
	NumberToken:     "number",
	StringToken:     "string",
	LBrace:          "'{'",
	RBrace:          "'}'",
	LBracket:        "'['",
	RBracket:        "']'",
	Comma:           "','",
	Dot:             "'.'",
	Hash:            "'#'",
	Equals:          "'='",
	Colon:           "':'",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsTrivia reports whether tokens of this kind are skipped by the parser.
func (k Kind) IsTrivia() bool { return k == Whitespace || k == Comment }

// IsPunctuation reports whether k is a single-character punctuation kind.
func (k Kind) IsPunctuation() bool { return k >= LBrace && k <= Colon }

// Keywords recognised contextually by the parser. They are lexed as
// identifiers.
const (
	KeywordUse     = "use"
	KeywordService = "service"
	KeywordLet     = "let"
	KeywordTrue    = "true"
	KeywordFalse   = "false"
	KeywordNull    = "null"
)

// Token is a lexeme with its kind and location. Text is always the exact
// source slice covered by Span.
type Token struct {
	Kind Kind   `json:"kind" yaml:"kind"`
	Text string `json:"text" yaml:"text"`
	Span Span   `json:"span" yaml:"span"`
}

// IsKeyword reports whether the token is an identifier spelled word.
func (t Token) IsKeyword(word string) bool {
	return t.Kind == IdentifierToken && t.Text == word
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return t.Kind.String()
	case IdentifierToken, NumberToken, StringToken, Invalid:
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	}
	return t.Kind.String()
}

// lineIndex maps byte offsets to line/column positions.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (idx lineIndex) pos(offset int) Pos {
	line := sort.Search(len(idx), func(i int) bool { return idx[i] > offset })
	return Pos{Offset: offset, Line: line, Column: offset - idx[line-1] + 1}
}

func (idx lineIndex) span(start, end int) Span {
	return Span{Start: idx.pos(start), End: idx.pos(end)}
}
