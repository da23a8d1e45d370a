// Package export renders a parsed SmithyQL file as a YAML or JSON outline:
// the services it uses and each statement with its input as plain data.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/daveroberts0321/smithyql/parser/grammar"
	"gopkg.in/yaml.v2"
)

// Document is the outline of one source file.
type Document struct {
	Services   []string    `yaml:"services,omitempty" json:"services,omitempty"`
	Statements []Statement `yaml:"statements" json:"statements"`
}

// Statement is a let binding or an operation call.
type Statement struct {
	Kind    string `yaml:"kind" json:"kind"`
	Name    string `yaml:"name" json:"name"`
	Service string `yaml:"service,omitempty" json:"service,omitempty"`
	Line    int    `yaml:"line" json:"line"`
	Input   any    `yaml:"input" json:"input"`
}

// Outline converts file into a Document. Statements that failed to parse
// are left out.
func Outline(file *grammar.SourceFile) *Document {
	doc := &Document{Statements: []Statement{}}
	if file.Prelude != nil {
		for _, use := range file.Prelude.UseClauses {
			doc.Services = append(doc.Services, use.Service.String())
		}
	}

	for _, stmt := range file.Statements {
		switch s := stmt.(type) {
		case *grammar.LetBinding:
			doc.Statements = append(doc.Statements, Statement{
				Kind:  s.StatementType(),
				Name:  s.Binding.Key.Name,
				Line:  s.Span.Start.Line,
				Input: Value(s.Binding.Value),
			})
		case *grammar.OperationCall:
			out := Statement{
				Kind: s.StatementType(),
				Name: s.Name.Name.Name,
				Line: s.Span.Start.Line,
			}
			if s.Name.Qualifier != nil {
				out.Service = s.Name.Qualifier.String()
			}
			if s.Input != nil {
				out.Input = Value(s.Input)
			}
			doc.Statements = append(doc.Statements, out)
		}
	}
	return doc
}

// Value converts an input node into plain Go data: Object for structs,
// []any for lists, int64 or float64 for numbers, string, bool or nil.
// Numbers that overflow both are kept as their literal text.
func Value(node grammar.InputNode) any {
	switch n := node.(type) {
	case *grammar.Struct:
		obj := make(Object, 0, len(n.Fields))
		for _, f := range n.Fields {
			obj = append(obj, Field{Key: f.Key.Name, Value: Value(f.Value)})
		}
		return obj
	case *grammar.List:
		items := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			items = append(items, Value(item))
		}
		return items
	case *grammar.Number:
		if n.IsInteger() {
			if v, err := n.Int64(); err == nil {
				return v
			}
		}
		if v, err := n.Float64(); err == nil {
			return v
		}
		return n.Value
	case *grammar.String:
		return n.Value
	case *grammar.Boolean:
		return n.Value
	}
	return nil
}

// Object is a struct literal with its key order preserved.
type Object []Field

// Field is one key/value pair of an Object.
type Field struct {
	Key   string
	Value any
}

// MarshalYAML implements yaml.Marshaler.
func (o Object) MarshalYAML() (interface{}, error) {
	ms := make(yaml.MapSlice, len(o))
	for i, f := range o {
		ms[i] = yaml.MapItem{Key: f.Key, Value: f.Value}
	}
	return ms, nil
}

// MarshalJSON implements json.Marshaler.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// YAML renders the outline of file as YAML.
func YAML(file *grammar.SourceFile) ([]byte, error) {
	return yaml.Marshal(Outline(file))
}

// JSON renders the outline of file as indented JSON.
func JSON(file *grammar.SourceFile) ([]byte, error) {
	return json.MarshalIndent(Outline(file), "", "  ")
}

// Write renders file in format ("yaml" or "json") to w. These are the
// formats project.Config accepts for output_format.
func Write(w io.Writer, file *grammar.SourceFile, format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml":
		data, err = YAML(file)
	case "json":
		data, err = JSON(file)
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	if format == "json" {
		return ".json"
	}
	return ".yaml"
}
