package grammar

import (
	"errors"
	"strings"
)

// ErrSyntaxErrors is returned by Format for trees that were parsed with
// diagnostics or that contain placeholder nodes left behind by error
// recovery.
var ErrSyntaxErrors = errors.New("grammar: cannot format a file with syntax errors")

const indentUnit = "  "

// Format renders file in canonical layout: use clauses first, a blank
// line, then one statement per line. Non-empty structs are broken over
// lines with trailing commas; lists stay on one line when every item is a
// scalar. Binding separators are kept as written.
func Format(file *SourceFile) ([]byte, error) {
	if len(file.Comments) > 0 {
		return nil, ErrHasComments
	}
	if len(file.Errors) > 0 || hasBadNodes(file) {
		return nil, ErrSyntaxErrors
	}

	var b strings.Builder
	if file.Prelude != nil {
		for _, use := range file.Prelude.UseClauses {
			b.WriteString("use service ")
			b.WriteString(use.Service.String())
			b.WriteString("\n")
		}
		if len(file.Statements) > 0 {
			b.WriteString("\n")
		}
	}

	for _, stmt := range file.Statements {
		switch s := stmt.(type) {
		case *LetBinding:
			b.WriteString("let ")
			writeBinding(&b, s.Binding, 0)
		case *OperationCall:
			b.WriteString(s.Name.String())
			b.WriteString(" ")
			writeInput(&b, s.Input, 0)
		}
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

func hasBadNodes(file *SourceFile) bool {
	bad := false
	Inspect(file, func(n Node) bool {
		switch n := n.(type) {
		case *BadStatement, *BadInput:
			bad = true
		case *OperationCall:
			bad = bad || n.Input == nil
		case *QualifiedIdentifier:
			bad = bad || len(n.Path) == 0 || n.Selection == nil
		case *Identifier:
			bad = bad || n.Name == ""
		}
		return !bad
	})
	return bad
}

func writeBinding(b *strings.Builder, bind *Binding, depth int) {
	b.WriteString(bind.Key.Name)
	if bind.Separator == ":" {
		b.WriteString(": ")
	} else {
		b.WriteString(" = ")
	}
	writeInput(b, bind.Value, depth)
}

func writeInput(b *strings.Builder, node InputNode, depth int) {
	switch n := node.(type) {
	case *Struct:
		if len(n.Fields) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{\n")
		for _, f := range n.Fields {
			b.WriteString(strings.Repeat(indentUnit, depth+1))
			writeBinding(b, f, depth+1)
			b.WriteString(",\n")
		}
		b.WriteString(strings.Repeat(indentUnit, depth))
		b.WriteString("}")
	case *List:
		if len(n.Items) == 0 {
			b.WriteString("[]")
			return
		}
		if allScalars(n.Items) {
			b.WriteString("[")
			for i, item := range n.Items {
				if i > 0 {
					b.WriteString(", ")
				}
				writeInput(b, item, depth)
			}
			b.WriteString("]")
			return
		}
		b.WriteString("[\n")
		for _, item := range n.Items {
			b.WriteString(strings.Repeat(indentUnit, depth+1))
			writeInput(b, item, depth+1)
			b.WriteString(",\n")
		}
		b.WriteString(strings.Repeat(indentUnit, depth))
		b.WriteString("]")
	case *Number:
		b.WriteString(n.Value)
	case *String:
		b.WriteString(n.Raw)
	case *Boolean:
		if n.Value {
			b.WriteString(KeywordTrue)
		} else {
			b.WriteString(KeywordFalse)
		}
	case *Null:
		b.WriteString(KeywordNull)
	}
}

func allScalars(items []InputNode) bool {
	for _, item := range items {
		switch item.(type) {
		case *Struct, *List:
			return false
		}
	}
	return true
}
