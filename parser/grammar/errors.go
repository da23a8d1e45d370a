package grammar

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode identifies the category of a diagnostic.
type ErrorCode string

// Lexical error codes.
const (
	ErrUnterminatedString  ErrorCode = "unterminated-string"
	ErrInvalidEscape       ErrorCode = "invalid-escape"
	ErrInvalidNumber       ErrorCode = "invalid-number"
	ErrUnexpectedCharacter ErrorCode = "unexpected-character"
)

// Syntactic error codes.
const (
	ErrUnexpectedToken            ErrorCode = "unexpected-token"
	ErrUnterminatedStruct         ErrorCode = "unterminated-struct"
	ErrUnterminatedList           ErrorCode = "unterminated-list"
	ErrInvalidQualifiedIdentifier ErrorCode = "invalid-qualified-identifier"
	ErrTrailingCommaInEmptyList   ErrorCode = "trailing-comma-in-empty-list"
	ErrMisplacedUseClause         ErrorCode = "misplaced-use-clause"
	ErrNestingTooDeep             ErrorCode = "nesting-too-deep"
)

// Lexical reports whether the code is produced by the lexer.
func (c ErrorCode) Lexical() bool {
	switch c {
	case ErrUnterminatedString, ErrInvalidEscape, ErrInvalidNumber, ErrUnexpectedCharacter:
		return true
	}
	return false
}

// Error is a single lexical or syntax diagnostic.
type Error struct {
	Code     ErrorCode `json:"code" yaml:"code"`
	Message  string    `json:"message" yaml:"message"`
	Span     Span      `json:"span" yaml:"span"`
	Expected string    `json:"expected,omitempty" yaml:"expected,omitempty"`
	Found    string    `json:"found,omitempty" yaml:"found,omitempty"`
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Span.Start, e.Message)
	if e.Expected != "" {
		fmt.Fprintf(&b, " (expected %s", e.Expected)
		if e.Found != "" {
			fmt.Fprintf(&b, ", found %s", e.Found)
		}
		b.WriteString(")")
	} else if e.Found != "" {
		fmt.Fprintf(&b, " (found %s)", e.Found)
	}
	return b.String()
}

// ErrorList is an ordered list of diagnostics. It implements error so that
// callers who only care about success can treat it as one.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0], len(l)-1)
}

// Err returns nil for an empty list and the list itself otherwise.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

// Sort orders diagnostics by start offset. Lexical errors come first at
// equal offsets; otherwise insertion order is kept.
func (l ErrorList) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i], l[j]
		if a.Span.Start.Offset != b.Span.Start.Offset {
			return a.Span.Start.Offset < b.Span.Start.Offset
		}
		return a.Code.Lexical() && !b.Code.Lexical()
	})
}

// Has reports whether the list contains a diagnostic with the given code.
func (l ErrorList) Has(code ErrorCode) bool {
	for _, e := range l {
		if e.Code == code {
			return true
		}
	}
	return false
}

// ErrHasComments is returned by Format for files that carry comments.
var ErrHasComments = errors.New("grammar: cannot format a file containing comments")
