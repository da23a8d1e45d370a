// Package grammar implements the SmithyQL lexer and parser.
// parser.go contains the parsing logic and helper routines.
package grammar

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// SmithyQL Grammar:
//   SourceFile          := Prelude? Statement*
//   Prelude             := UseClause+
//   UseClause           := 'use' 'service' QualifiedIdentifier
//   QualifiedIdentifier := IDENT { '.' IDENT } '#' IDENT
//   Statement           := LetBinding | OperationCall
//   LetBinding          := 'let' Binding [ ',' ]
//   OperationCall       := OperationName Struct
//   OperationName       := [ QualifiedIdentifier '.' ] IDENT
//   Struct              := '{' [ Binding { ',' Binding } [ ',' ] ] '}'
//   List                := '[' [ InputNode { ',' InputNode } [ ',' ] ] ']'
//   Binding             := IDENT ( '=' | ':' ) InputNode
//   InputNode           := Struct | List | NUMBER | STRING | 'true' | 'false' | 'null'
//
// Keywords are ordinary identifiers; 'use' and 'let' only act as keywords
// at statement start when another identifier follows.

// maxNesting bounds how deeply structs and lists may nest inside a value.
const maxNesting = 1000

type parser struct {
	src     string
	lines   lineIndex
	toks    []Token // significant tokens, always terminated by EOF
	pos     int
	lastEnd Pos
	depth   int
	errs    ErrorList
}

// Parse parses a complete source buffer. It always returns a tree; the
// error list holds lexical and syntax diagnostics sorted by position.
func Parse(src string) (*SourceFile, ErrorList) {
	lex := NewLexer(src)
	p := &parser{src: src, lines: lex.lines, lastEnd: lex.lines.pos(0)}

	var comments []Token
	for tok := range lex.All() {
		switch tok.Kind {
		case Comment:
			comments = append(comments, tok)
		case Whitespace, Invalid:
			// invalid tokens were already reported by the lexer
		default:
			p.toks = append(p.toks, tok)
		}
	}

	file := p.parseSourceFile()
	file.Comments = comments

	errs := make(ErrorList, 0, len(lex.Errors())+len(p.errs))
	errs = append(errs, lex.Errors()...)
	errs = append(errs, p.errs...)
	errs.Sort()
	file.Errors = errs
	return file, errs
}

// ParseString is an alias for Parse kept for symmetry with ParseReader.
func ParseString(s string) (*SourceFile, ErrorList) {
	return Parse(s)
}

// ParseReader reads r to the end and parses its content. The error return
// is only set for read failures; diagnostics are in the ErrorList.
func ParseReader(r io.Reader) (*SourceFile, ErrorList, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read source: %w", err)
	}
	file, errs := Parse(string(data))
	return file, errs, nil
}

func (p *parser) peek() Token { return p.peekAt(0) }

func (p *parser) peekAt(n int) Token {
	if i := p.pos + n; i < len(p.toks) {
		return p.toks[i]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	tok := p.peek()
	if tok.Kind != EOF {
		p.pos++
		p.lastEnd = tok.Span.End
	}
	return tok
}

func (p *parser) at(kind Kind) bool { return p.peek().Kind == kind }

func (p *parser) accept(kind Kind) (Token, bool) {
	if p.at(kind) {
		return p.next(), true
	}
	return Token{}, false
}

// spanFrom returns the span from start to the end of the last consumed
// token, or an empty span at start if nothing was consumed since.
func (p *parser) spanFrom(start Pos) Span {
	end := p.lastEnd
	if end.Offset < start.Offset {
		end = start
	}
	return Span{Start: start, End: end}
}

func (p *parser) errorAt(code ErrorCode, span Span, format string, args ...any) *Error {
	e := &Error{Code: code, Message: fmt.Sprintf(format, args...), Span: span}
	p.errs = append(p.errs, e)
	return e
}

// unexpected reports the current token as not matching expected.
func (p *parser) unexpected(expected string) {
	tok := p.peek()
	e := p.errorAt(ErrUnexpectedToken, tok.Span, "unexpected %s", tok)
	e.Expected = expected
	e.Found = tok.String()
}

// missing reports that expected is absent, anchored right after the last
// consumed token.
func (p *parser) missing(expected string) Span {
	span := Span{Start: p.lastEnd, End: p.lastEnd}
	e := p.errorAt(ErrUnexpectedToken, span, "missing %s", expected)
	e.Expected = expected
	e.Found = p.peek().String()
	return span
}

func (p *parser) ident() *Identifier {
	tok := p.next()
	return &Identifier{Name: tok.Text, Span: tok.Span}
}

// placeholder is an empty identifier standing in for a missing name.
func (p *parser) placeholder() *Identifier {
	return &Identifier{Span: Span{Start: p.lastEnd, End: p.lastEnd}}
}

func (p *parser) parseSourceFile() *SourceFile {
	file := &SourceFile{Statements: []Statement{}}

	if p.atUseClause() {
		prelude := &Prelude{}
		start := p.peek().Span.Start
		for p.atUseClause() {
			prelude.UseClauses = append(prelude.UseClauses, p.parseUseClause())
		}
		prelude.Span = p.spanFrom(start)
		file.Prelude = prelude
	}

	for !p.at(EOF) {
		if p.atUseClause() {
			use := p.parseUseClause()
			p.errorAt(ErrMisplacedUseClause, use.Span, "use clauses must precede all statements")
			continue
		}
		file.Statements = append(file.Statements, p.parseStatement())
	}

	file.Span = p.lines.span(0, len(p.src))
	return file
}

func (p *parser) atUseClause() bool {
	return p.peek().IsKeyword(KeywordUse) && p.peekAt(1).Kind == IdentifierToken
}

func (p *parser) parseUseClause() *UseClause {
	start := p.next().Span.Start // 'use'
	if p.peek().IsKeyword(KeywordService) {
		p.next()
	} else {
		p.unexpected("'service'")
	}
	qid := p.parseQualifiedIdentifier()
	return &UseClause{Service: qid, Span: p.spanFrom(start)}
}

func (p *parser) parseQualifiedIdentifier() *QualifiedIdentifier {
	start := p.peek().Span.Start
	qid := &QualifiedIdentifier{Path: []*Identifier{}}

	if !p.at(IdentifierToken) {
		p.errorAt(ErrInvalidQualifiedIdentifier, p.peek().Span,
			"expected qualified identifier, found %s", p.peek())
		qid.Span = p.spanFrom(start)
		return qid
	}
	qid.Path = append(qid.Path, p.ident())

	for p.at(Dot) {
		dot := p.next()
		if !p.at(IdentifierToken) {
			p.errorAt(ErrInvalidQualifiedIdentifier, dot.Span, "empty namespace segment after '.'")
			break
		}
		qid.Path = append(qid.Path, p.ident())
	}

	p.parseSelection(qid, start)
	return qid
}

// parseSelection parses the `#Selection` suffix of a qualified identifier
// whose path has already been consumed.
func (p *parser) parseSelection(qid *QualifiedIdentifier, start Pos) {
	if _, ok := p.accept(Hash); !ok {
		e := p.errorAt(ErrInvalidQualifiedIdentifier, p.spanFrom(start),
			"qualified identifier %q is missing a '#' selection", qid.Namespace())
		e.Expected = Hash.String()
		e.Found = p.peek().String()
		qid.Span = p.spanFrom(start)
		return
	}
	if p.at(IdentifierToken) {
		qid.Selection = p.ident()
	} else {
		p.errorAt(ErrInvalidQualifiedIdentifier, p.peek().Span, "empty selection after '#'")
	}
	qid.Span = p.spanFrom(start)
}

func (p *parser) parseStatement() Statement {
	tok := p.peek()
	if tok.Kind != IdentifierToken {
		p.unexpected("statement")
		return p.skipStatement(tok.Span.Start)
	}
	if tok.IsKeyword(KeywordLet) && p.peekAt(1).Kind == IdentifierToken {
		return p.parseLetBinding()
	}
	return p.parseOperationCall()
}

func (p *parser) parseLetBinding() *LetBinding {
	start := p.next().Span.Start // 'let'
	b := p.parseBinding()
	p.accept(Comma)
	return &LetBinding{Binding: b, Span: p.spanFrom(start)}
}

func (p *parser) parseOperationCall() *OperationCall {
	start := p.peek().Span.Start
	call := &OperationCall{Name: p.parseOperationName()}
	if p.at(LBrace) {
		call.Input = p.parseStruct()
	} else {
		p.unexpected("'{'")
		p.syncStatement()
	}
	call.Span = p.spanFrom(start)
	return call
}

// parseOperationName splits `a.b#Svc.Op` into qualifier and name. The
// dotted path is read first; a following '#' decides whether it was a
// qualifier or already the operation name.
func (p *parser) parseOperationName() *OperationName {
	start := p.peek().Span.Start
	path := []*Identifier{p.ident()}
	for p.at(Dot) && p.peekAt(1).Kind == IdentifierToken {
		p.next()
		path = append(path, p.ident())
	}

	name := &OperationName{}
	switch {
	case p.at(Hash):
		qid := &QualifiedIdentifier{Path: path}
		p.parseSelection(qid, start)
		name.Qualifier = qid
		if _, ok := p.accept(Dot); !ok {
			p.unexpected("'.' followed by an operation name")
			name.Name = p.placeholder()
		} else if p.at(IdentifierToken) {
			name.Name = p.ident()
		} else {
			p.unexpected("operation name")
			name.Name = p.placeholder()
		}
	case len(path) == 1:
		name.Name = path[0]
	default:
		qualifier := join(path[0].Span, path[len(path)-2].Span)
		e := p.errorAt(ErrInvalidQualifiedIdentifier, qualifier,
			"operation qualifier is missing a '#' selection")
		e.Expected = Hash.String()
		name.Name = path[len(path)-1]
	}
	name.Span = p.spanFrom(start)
	return name
}

func (p *parser) parseBinding() *Binding {
	start := p.peek().Span.Start
	b := &Binding{}
	if p.at(IdentifierToken) {
		b.Key = p.ident()
	} else {
		p.unexpected("identifier")
		b.Key = p.placeholder()
	}

	switch p.peek().Kind {
	case Equals, Colon:
		b.Separator = p.next().Text
		b.Value = p.parseInputNode()
	default:
		p.unexpected("'=' or ':'")
		if p.atValueStart() {
			b.Value = p.parseInputNode()
		} else {
			b.Value = &BadInput{Span: Span{Start: p.lastEnd, End: p.lastEnd}}
		}
	}
	b.Span = p.spanFrom(start)
	return b
}

func (p *parser) atValueStart() bool {
	switch p.peek().Kind {
	case LBrace, LBracket, NumberToken, StringToken:
		return true
	case IdentifierToken:
		// a key followed by a separator starts the next binding; a name
		// followed by '{', '.' or '#' starts the next operation call
		switch p.peekAt(1).Kind {
		case Equals, Colon, LBrace, Dot, Hash:
			return false
		}
		return true
	}
	return false
}

func (p *parser) parseInputNode() InputNode {
	tok := p.peek()
	switch tok.Kind {
	case LBrace, LBracket:
		if p.depth >= maxNesting {
			return p.tooDeep()
		}
		if tok.Kind == LBrace {
			return p.parseStruct()
		}
		return p.parseList()
	case NumberToken:
		p.next()
		return &Number{Value: tok.Text, Span: tok.Span}
	case StringToken:
		p.next()
		return &String{Raw: tok.Text, Value: unquote(tok.Text), Span: tok.Span}
	case IdentifierToken:
		switch tok.Text {
		case KeywordTrue, KeywordFalse:
			p.next()
			return &Boolean{Value: tok.Text == KeywordTrue, Span: tok.Span}
		case KeywordNull:
			p.next()
			return &Null{Span: tok.Span}
		}
		if p.atValueStart() {
			p.unexpected("value")
			p.next()
			return &BadInput{Span: tok.Span}
		}
	}
	return &BadInput{Span: p.missing("value")}
}

// tooDeep skips a bracketed group that would exceed maxNesting.
func (p *parser) tooDeep() *BadInput {
	start := p.peek().Span.Start
	p.skipBalanced()
	span := p.spanFrom(start)
	p.errorAt(ErrNestingTooDeep, span, "input nested deeper than %d levels", maxNesting)
	return &BadInput{Span: span}
}

func (p *parser) parseStruct() *Struct {
	p.depth++
	defer func() { p.depth-- }()
	open := p.next()
	s := &Struct{Fields: []*Binding{}}
	p.parseCommaList(open, RBrace, ErrUnterminatedStruct,
		func() bool { return p.at(IdentifierToken) },
		func() { s.Fields = append(s.Fields, p.parseBinding()) })
	s.Span = p.spanFrom(open.Span.Start)
	return s
}

func (p *parser) parseList() *List {
	p.depth++
	defer func() { p.depth-- }()
	open := p.next()
	l := &List{Items: []InputNode{}}
	p.parseCommaList(open, RBracket, ErrUnterminatedList,
		p.atValueStart,
		func() { l.Items = append(l.Items, p.parseInputNode()) })
	l.Span = p.spanFrom(open.Span.Start)
	return l
}

// parseCommaList parses `item {',' item} [',']` up to and including the
// closing bracket. Struct fields and list items share it. A lone comma
// between empty brackets is rejected.
func (p *parser) parseCommaList(open Token, closing Kind, unterminated ErrorCode, atItem func() bool, item func()) {
	if p.at(Comma) && p.peekAt(1).Kind == closing {
		tok := p.next()
		p.errorAt(ErrTrailingCommaInEmptyList, tok.Span, "trailing comma without preceding items")
	}

	for {
		switch {
		case p.at(closing):
			p.next()
			return
		case p.at(EOF):
			p.errorAt(unterminated, Span{Start: open.Span.Start, End: p.peek().Span.End},
				"missing closing %s for %s opened at %s", closing, open.Kind, open.Span.Start)
			return
		case !atItem():
			p.unexpected(fmt.Sprintf("item or %s", closing))
			p.skipBalanced()
			continue
		}

		before := p.pos
		item()
		if p.pos == before {
			p.skipBalanced()
		}

		if _, ok := p.accept(Comma); ok {
			for p.at(Comma) {
				p.unexpected(fmt.Sprintf("item or %s", closing))
				p.next()
			}
		} else if !p.at(closing) && !p.at(EOF) && atItem() {
			p.missing(fmt.Sprintf("',' or %s", closing))
		}
	}
}

// skipBalanced consumes one token, or a whole bracketed group if the token
// opens one.
func (p *parser) skipBalanced() {
	depth := 0
	for {
		tok := p.next()
		switch tok.Kind {
		case LBrace, LBracket:
			depth++
		case RBrace, RBracket:
			depth--
		case EOF:
			return
		}
		if depth <= 0 {
			return
		}
	}
}

// skipStatement consumes at least one token and then everything up to the
// next identifier outside brackets, returning the skipped region.
func (p *parser) skipStatement(start Pos) *BadStatement {
	p.skipBalanced()
	p.syncStatement()
	return &BadStatement{Span: p.spanFrom(start)}
}

// syncStatement skips to the next plausible statement start: an identifier
// at bracket depth zero, or end of input.
func (p *parser) syncStatement() {
	for !p.at(EOF) && !p.at(IdentifierToken) {
		p.skipBalanced()
	}
}

// unquote interprets the escapes of a raw string lexeme. The closing quote
// is optional so unterminated strings still produce a value.
func unquote(raw string) string {
	var b strings.Builder
	for i := 1; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case '"':
			return b.String()
		case '\\':
			if i+1 >= len(raw) {
				b.WriteByte(c)
				return b.String()
			}
			i++
			switch e := raw[i]; e {
			case '"', '\\', '/':
				b.WriteByte(e)
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'u':
				r, n := decodeUnicodeEscape(raw[i-1:])
				if n == 0 {
					b.WriteString(`\u`)
					continue
				}
				b.WriteRune(r)
				i += n - 2
			default:
				b.WriteByte('\\')
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// decodeUnicodeEscape decodes `\uXXXX`, joining a following low surrogate
// escape when present. It returns the rune and the bytes consumed, or 0
// bytes if s does not start with a valid escape.
func decodeUnicodeEscape(s string) (rune, int) {
	r, ok := hex4(s)
	if !ok {
		return 0, 0
	}
	if !utf16.IsSurrogate(r) {
		return r, 6
	}
	if low, ok := hex4(s[6:]); ok {
		if pair := utf16.DecodeRune(r, low); pair != utf8.RuneError {
			return pair, 12
		}
	}
	return utf8.RuneError, 6
}

func hex4(s string) (rune, bool) {
	if len(s) < 6 || s[0] != '\\' || s[1] != 'u' {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:6], 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(v), true
}
