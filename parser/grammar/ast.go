// Package grammar implements the SmithyQL lexer and parser.
// ast.go defines the syntax tree produced by Parse.
package grammar

import (
	"strconv"
	"strings"
)

// Node is implemented by every syntax tree node.
type Node interface {
	GetSpan() Span
}

// SourceFile is the root of a parsed file: an optional prelude of use
// clauses followed by statements in source order.
type SourceFile struct {
	Prelude    *Prelude    `json:"prelude,omitempty"`
	Statements []Statement `json:"statements"`
	// Comments holds every comment token in the file. They are not attached
	// to nodes.
	Comments []Token `json:"comments,omitempty"`
	// Errors holds the diagnostics reported while parsing the file.
	Errors ErrorList `json:"-"`
	Span   Span      `json:"span"`
}

func (f *SourceFile) GetSpan() Span { return f.Span }

// Prelude is the leading block of use clauses.
type Prelude struct {
	UseClauses []*UseClause `json:"use_clauses"`
	Span       Span         `json:"span"`
}

func (p *Prelude) GetSpan() Span { return p.Span }

// UseClause is `use service <qualified identifier>`.
type UseClause struct {
	Service *QualifiedIdentifier `json:"service"`
	Span    Span                 `json:"span"`
}

func (u *UseClause) GetSpan() Span { return u.Span }

// Identifier is a single name.
type Identifier struct {
	Name string `json:"name"`
	Span Span   `json:"span"`
}

func (i *Identifier) GetSpan() Span { return i.Span }

// QualifiedIdentifier is a dotted namespace followed by a #-separated
// selection, e.g. `com.example#Weather`. Path is never empty in a tree
// produced without InvalidQualifiedIdentifier errors.
type QualifiedIdentifier struct {
	Path      []*Identifier `json:"path"`
	Selection *Identifier   `json:"selection"`
	Span      Span          `json:"span"`
}

func (q *QualifiedIdentifier) GetSpan() Span { return q.Span }

// Namespace returns the dotted namespace, e.g. "com.example".
func (q *QualifiedIdentifier) Namespace() string {
	parts := make([]string, len(q.Path))
	for i, seg := range q.Path {
		parts[i] = seg.Name
	}
	return strings.Join(parts, ".")
}

func (q *QualifiedIdentifier) String() string {
	if q.Selection == nil {
		return q.Namespace() + "#"
	}
	return q.Namespace() + "#" + q.Selection.Name
}

// Statement interface for all top-level statements
type Statement interface {
	Node
	StatementType() string
}

// LetBinding is `let <binding>`.
type LetBinding struct {
	Binding *Binding `json:"binding"`
	Span    Span     `json:"span"`
}

func (s *LetBinding) StatementType() string { return "let" }
func (s *LetBinding) GetSpan() Span         { return s.Span }

// OperationCall invokes an operation with a struct input. Input is nil only
// when the parser could not find the opening brace.
type OperationCall struct {
	Name  *OperationName `json:"name"`
	Input *Struct        `json:"input"`
	Span  Span           `json:"span"`
}

func (s *OperationCall) StatementType() string { return "call" }
func (s *OperationCall) GetSpan() Span         { return s.Span }

// OperationName is an operation identifier with an optional service
// qualifier, e.g. `com.example#Weather.GetForecast`.
type OperationName struct {
	Qualifier *QualifiedIdentifier `json:"qualifier,omitempty"`
	Name      *Identifier          `json:"name"`
	Span      Span                 `json:"span"`
}

func (o *OperationName) GetSpan() Span { return o.Span }

func (o *OperationName) String() string {
	if o.Qualifier == nil {
		return o.Name.Name
	}
	return o.Qualifier.String() + "." + o.Name.Name
}

// BadStatement covers tokens skipped while recovering from a syntax error.
type BadStatement struct {
	Span Span `json:"span"`
}

func (s *BadStatement) StatementType() string { return "bad" }
func (s *BadStatement) GetSpan() Span         { return s.Span }

// Binding is a key/value pair. Separator is "=" or ":".
type Binding struct {
	Key       *Identifier `json:"key"`
	Separator string      `json:"separator"`
	Value     InputNode   `json:"value"`
	Span      Span        `json:"span"`
}

func (b *Binding) GetSpan() Span { return b.Span }

// InputNode is any literal value: struct, list or scalar.
type InputNode interface {
	Node
	NodeType() string
}

// Struct is `{ key = value, ... }`. Duplicate keys are kept as written.
type Struct struct {
	Fields []*Binding `json:"fields"`
	Span   Span       `json:"span"`
}

func (n *Struct) NodeType() string { return "struct" }
func (n *Struct) GetSpan() Span    { return n.Span }

// Field returns the first binding for key, or nil.
func (n *Struct) Field(key string) *Binding {
	for _, f := range n.Fields {
		if f.Key != nil && f.Key.Name == key {
			return f
		}
	}
	return nil
}

// List is `[ value, ... ]`.
type List struct {
	Items []InputNode `json:"items"`
	Span  Span        `json:"span"`
}

func (n *List) NodeType() string { return "list" }
func (n *List) GetSpan() Span    { return n.Span }

// Number keeps the literal exactly as written.
type Number struct {
	Value string `json:"value"`
	Span  Span   `json:"span"`
}

func (n *Number) NodeType() string { return "number" }
func (n *Number) GetSpan() Span    { return n.Span }

// IsInteger reports whether the literal has neither fraction nor exponent.
func (n *Number) IsInteger() bool {
	return !strings.ContainsAny(n.Value, ".eE")
}

func (n *Number) Int64() (int64, error)     { return strconv.ParseInt(n.Value, 10, 64) }
func (n *Number) Float64() (float64, error) { return strconv.ParseFloat(n.Value, 64) }

// String holds both the raw lexeme (quotes included) and the unescaped
// value. Escapes are interpreted when the tree is built; malformed escapes
// are kept verbatim in Value.
type String struct {
	Raw   string `json:"raw"`
	Value string `json:"value"`
	Span  Span   `json:"span"`
}

func (n *String) NodeType() string { return "string" }
func (n *String) GetSpan() Span    { return n.Span }

type Boolean struct {
	Value bool `json:"value"`
	Span  Span `json:"span"`
}

func (n *Boolean) NodeType() string { return "boolean" }
func (n *Boolean) GetSpan() Span    { return n.Span }

type Null struct {
	Span Span `json:"span"`
}

func (n *Null) NodeType() string { return "null" }
func (n *Null) GetSpan() Span    { return n.Span }

// BadInput stands in for a value that could not be parsed. A missing value
// is a zero-width BadInput placed where the value was expected.
type BadInput struct {
	Span Span `json:"span"`
}

func (n *BadInput) NodeType() string { return "bad" }
func (n *BadInput) GetSpan() Span    { return n.Span }
