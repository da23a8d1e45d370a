package grammar

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// shapeOnly compares trees while ignoring locations and comments.
var shapeOnly = cmp.Options{
	cmpopts.IgnoreTypes(Span{}),
	cmpopts.IgnoreFields(SourceFile{}, "Comments", "Errors"),
	cmpopts.EquateEmpty(),
}

func mustParse(t *testing.T, src string) *SourceFile {
	t.Helper()
	file, errs := Parse(src)
	if len(errs) != 0 {
		t.Fatalf("parse %q: unexpected errors: %v", src, errs)
	}
	return file
}

func onlyCall(t *testing.T, file *SourceFile) *OperationCall {
	t.Helper()
	if len(file.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(file.Statements))
	}
	call, ok := file.Statements[0].(*OperationCall)
	if !ok {
		t.Fatalf("expected OperationCall, got %T", file.Statements[0])
	}
	return call
}

func TestParseEmptyInputs(t *testing.T) {
	for _, src := range []string{"", "   ", "\n\t\r\n", "// only a comment", "// a\n// b\n"} {
		file, errs := Parse(src)
		if len(errs) != 0 {
			t.Fatalf("%q: unexpected errors: %v", src, errs)
		}
		if file.Prelude != nil || len(file.Statements) != 0 {
			t.Fatalf("%q: expected empty tree, got %#v", src, file)
		}
		if file.Span.End.Offset != len(src) {
			t.Fatalf("%q: file span %v does not cover input", src, file.Span)
		}
	}
}

func TestParseSimpleCall(t *testing.T) {
	call := onlyCall(t, mustParse(t, `GetWeather { city = "Oslo" }`))
	if call.Name.Qualifier != nil {
		t.Fatalf("expected no qualifier, got %v", call.Name.Qualifier)
	}
	if call.Name.Name.Name != "GetWeather" {
		t.Fatalf("unexpected operation name %q", call.Name.Name.Name)
	}
	city := call.Input.Field("city")
	if city == nil {
		t.Fatalf("missing binding city")
	}
	s, ok := city.Value.(*String)
	if !ok || s.Value != "Oslo" || s.Raw != `"Oslo"` {
		t.Fatalf("unexpected value %#v", city.Value)
	}
	if call.Span.Start.Offset != 0 || call.Span.End.Offset != len(`GetWeather { city = "Oslo" }`) {
		t.Fatalf("unexpected call span %v", call.Span)
	}
}

func TestParseQualifiedOperationName(t *testing.T) {
	call := onlyCall(t, mustParse(t, `ns.sub#Selection.OperationName {}`))
	q := call.Name.Qualifier
	if q == nil {
		t.Fatalf("expected a qualifier")
	}
	if q.String() != "ns.sub#Selection" {
		t.Fatalf("unexpected qualifier %q", q.String())
	}
	if q.Namespace() != "ns.sub" || q.Selection.Name != "Selection" {
		t.Fatalf("unexpected qualifier parts %q / %q", q.Namespace(), q.Selection.Name)
	}
	if call.Name.Name.Name != "OperationName" {
		t.Fatalf("unexpected operation name %q", call.Name.Name.Name)
	}
	if call.Name.String() != "ns.sub#Selection.OperationName" {
		t.Fatalf("unexpected rendered name %q", call.Name.String())
	}
	if len(call.Input.Fields) != 0 {
		t.Fatalf("expected empty input")
	}
}

func TestParseSingleSegmentQualifier(t *testing.T) {
	call := onlyCall(t, mustParse(t, `weather#Weather.GetCity {}`))
	if got := call.Name.Qualifier.String(); got != "weather#Weather" {
		t.Fatalf("unexpected qualifier %q", got)
	}
}

func TestParseNestedLiteral(t *testing.T) {
	call := onlyCall(t, mustParse(t, `Op { a = { b = [1, 2, "x", true, null] } }`))
	if call.Name.Name.Name != "Op" {
		t.Fatalf("unexpected name %q", call.Name.Name.Name)
	}
	if len(call.Input.Fields) != 1 || call.Input.Fields[0].Key.Name != "a" {
		t.Fatalf("expected single binding a, got %#v", call.Input.Fields)
	}
	inner, ok := call.Input.Fields[0].Value.(*Struct)
	if !ok || len(inner.Fields) != 1 || inner.Fields[0].Key.Name != "b" {
		t.Fatalf("expected struct with binding b, got %#v", call.Input.Fields[0].Value)
	}
	list, ok := inner.Fields[0].Value.(*List)
	if !ok {
		t.Fatalf("expected list, got %T", inner.Fields[0].Value)
	}
	var types []string
	for _, item := range list.Items {
		types = append(types, item.NodeType())
	}
	want := []string{"number", "number", "string", "boolean", "null"}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Fatalf("element types (-want +got):\n%s", diff)
	}
	if n := list.Items[1].(*Number); n.Value != "2" {
		t.Fatalf("unexpected second element %q", n.Value)
	}
	if b := list.Items[3].(*Boolean); !b.Value {
		t.Fatalf("expected true")
	}
}

func TestParseUsePrelude(t *testing.T) {
	file := mustParse(t, "use service ns#Svc\nuse service a.b.c#Other\n\nOp {}\n")
	if file.Prelude == nil || len(file.Prelude.UseClauses) != 2 {
		t.Fatalf("expected 2 use clauses, got %#v", file.Prelude)
	}
	if got := file.Prelude.UseClauses[0].Service.String(); got != "ns#Svc" {
		t.Fatalf("unexpected first service %q", got)
	}
	if got := file.Prelude.UseClauses[1].Service.Namespace(); got != "a.b.c" {
		t.Fatalf("unexpected second namespace %q", got)
	}
	call := onlyCall(t, file)
	if call.Name.Name.Name != "Op" {
		t.Fatalf("unexpected call %q", call.Name.String())
	}
}

func TestParseLetBindings(t *testing.T) {
	file := mustParse(t, "let token = \"abc\",\nlet limits: { max = 10 }\nOp { }")
	if len(file.Statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(file.Statements))
	}
	first, ok := file.Statements[0].(*LetBinding)
	if !ok || first.Binding.Key.Name != "token" || first.Binding.Separator != "=" {
		t.Fatalf("unexpected first statement %#v", file.Statements[0])
	}
	if first.Span.End.Offset != strings.Index("let token = \"abc\",", ",")+1 {
		t.Fatalf("expected let span to include the trailing comma, got %v", first.Span)
	}
	second, ok := file.Statements[1].(*LetBinding)
	if !ok || second.Binding.Separator != ":" {
		t.Fatalf("unexpected second statement %#v", file.Statements[1])
	}
	if _, ok := second.Binding.Value.(*Struct); !ok {
		t.Fatalf("expected struct value, got %T", second.Binding.Value)
	}
	if file.Statements[2].StatementType() != "call" {
		t.Fatalf("expected call, got %s", file.Statements[2].StatementType())
	}
}

func TestParseKeywordsAsIdentifiers(t *testing.T) {
	call := onlyCall(t, mustParse(t, `Op { let = 1, use = 2, service: true, null = null }`))
	var keys []string
	for _, f := range call.Input.Fields {
		keys = append(keys, f.Key.Name)
	}
	if diff := cmp.Diff([]string{"let", "use", "service", "null"}, keys); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}

	for _, src := range []string{"let {}", "use {}", "let.ns#Svc.Op {}"} {
		file := mustParse(t, src)
		if _, ok := file.Statements[0].(*OperationCall); !ok {
			t.Fatalf("%q: expected operation call, got %T", src, file.Statements[0])
		}
	}
}

func TestParseSeparatorsAreEquivalent(t *testing.T) {
	eq := mustParse(t, `Op { a = 1, b = { c = "x" } }`)
	colon := mustParse(t, `Op { a: 1, b: { c: "x" } }`)
	ignoreSep := append(shapeOnly, cmpopts.IgnoreFields(Binding{}, "Separator"))
	if diff := cmp.Diff(eq, colon, ignoreSep...); diff != "" {
		t.Fatalf("separator changed shape (-eq +colon):\n%s", diff)
	}
}

func TestParseDuplicateKeysKept(t *testing.T) {
	call := onlyCall(t, mustParse(t, `Op { a = 1, a = 2 }`))
	if len(call.Input.Fields) != 2 {
		t.Fatalf("expected both bindings, got %d", len(call.Input.Fields))
	}
	if got := call.Input.Field("a").Value.(*Number).Value; got != "1" {
		t.Fatalf("Field should return the first binding, got %q", got)
	}
}

func TestTrailingCommaEquivalence(t *testing.T) {
	pairs := [][2]string{
		{`Op {a=1,b=2}`, `Op {a=1,b=2,}`},
		{`Op {l=[1,2]}`, `Op {l=[1,2,]}`},
		{`Op {l=[{a=1}]}`, `Op {l=[{a=1,},],}`},
	}
	for _, pair := range pairs {
		a, b := mustParse(t, pair[0]), mustParse(t, pair[1])
		if diff := cmp.Diff(a, b, shapeOnly...); diff != "" {
			t.Fatalf("%q vs %q (-a +b):\n%s", pair[0], pair[1], diff)
		}
	}
}

func TestTriviaTransparency(t *testing.T) {
	compact := `use service a#B
let x={y=[1,true]}
a.b#C.Op{k="v",n=null}`
	toks, errs := Tokenize(compact)
	if len(errs) != 0 {
		t.Fatalf("unexpected lex errors: %v", errs)
	}
	var b strings.Builder
	for i, tok := range toks {
		if tok.Kind.IsTrivia() {
			continue
		}
		b.WriteString(tok.Text)
		b.WriteString(fmt.Sprintf(" // %d\n\t ", i))
	}

	want := mustParse(t, compact)
	got := mustParse(t, b.String())
	if diff := cmp.Diff(want, got, shapeOnly...); diff != "" {
		t.Fatalf("trivia changed the tree (-compact +spaced):\n%s", diff)
	}
	if len(got.Comments) == 0 {
		t.Fatalf("expected comments to be collected")
	}
}

func TestParseDeterministic(t *testing.T) {
	inputs := []string{
		`use service a#B Op { a = [1, {b = "c"}], d: null }`,
		`Op { a = } Next { b = 1 }`,
		"}{][,,@ \xff \"x",
	}
	for _, src := range inputs {
		f1, e1 := Parse(src)
		f2, e2 := Parse(src)
		if diff := cmp.Diff(f1, f2); diff != "" {
			t.Fatalf("%q: trees differ:\n%s", src, diff)
		}
		if diff := cmp.Diff(e1, e2); diff != "" {
			t.Fatalf("%q: errors differ:\n%s", src, diff)
		}
	}
}

func TestParseConcurrent(t *testing.T) {
	src := `use service a.b#C
let x = { y = [1, 2, 3] }
a.b#C.Op { k = "v", nested = { list = [true, false, null] } }`
	want, _ := Parse(src)

	var wg sync.WaitGroup
	results := make([]*SourceFile, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Parse(src)
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("result %d differs:\n%s", i, diff)
		}
	}
}

func TestParseRecoversFromMissingValue(t *testing.T) {
	src := "Op { a = }\nNext { b = 1 }"
	file, errs := Parse(src)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	afterEquals := strings.Index(src, "=") + 1
	if errs[0].Code != ErrUnexpectedToken || errs[0].Span.Start.Offset != afterEquals {
		t.Fatalf("unexpected error %#v", errs[0])
	}
	if len(file.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(file.Statements))
	}
	first := file.Statements[0].(*OperationCall)
	bad, ok := first.Input.Fields[0].Value.(*BadInput)
	if !ok {
		t.Fatalf("expected BadInput, got %T", first.Input.Fields[0].Value)
	}
	if bad.Span.Start.Offset != afterEquals || bad.Span.Len() != 0 {
		t.Fatalf("unexpected placeholder span %v", bad.Span)
	}
	second := file.Statements[1].(*OperationCall)
	if second.Name.Name.Name != "Next" || second.Input.Field("b") == nil {
		t.Fatalf("second statement not recovered: %#v", second)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		codes []ErrorCode
	}{
		{"unterminated struct", `Op { a = 1`, []ErrorCode{ErrUnterminatedStruct}},
		{"unterminated list", `Op { a = [1, 2`, []ErrorCode{ErrUnterminatedStruct, ErrUnterminatedList}},
		{"use without selection", `use service ns`, []ErrorCode{ErrInvalidQualifiedIdentifier}},
		{"use with empty selection", `use service ns#`, []ErrorCode{ErrInvalidQualifiedIdentifier}},
		{"use with empty segment", `use service ns.#X`, []ErrorCode{ErrInvalidQualifiedIdentifier}},
		{"use without service keyword", `use ns#X`, []ErrorCode{ErrUnexpectedToken}},
		{"dotted qualifier without hash", `ns.sub.Op {}`, []ErrorCode{ErrInvalidQualifiedIdentifier}},
		{"qualifier without operation", `ns#Svc {}`, []ErrorCode{ErrUnexpectedToken}},
		{"comma in empty struct", `Op {,}`, []ErrorCode{ErrTrailingCommaInEmptyList}},
		{"comma in empty list", `Op { a = [,] }`, []ErrorCode{ErrTrailingCommaInEmptyList}},
		{"double comma", `Op { a = 1,, b = 2 }`, []ErrorCode{ErrUnexpectedToken}},
		{"missing comma", `Op { a = 1 b = 2 }`, []ErrorCode{ErrUnexpectedToken}},
		{"missing separator", `Op { a 1 }`, []ErrorCode{ErrUnexpectedToken}},
		{"identifier value", `Op { a = b }`, []ErrorCode{ErrUnexpectedToken}},
		{"misplaced use", "Op {}\nuse service a#B", []ErrorCode{ErrMisplacedUseClause}},
		{"missing struct", `Op`, []ErrorCode{ErrUnexpectedToken}},
		{"stray closing brace", `} Op {}`, []ErrorCode{ErrUnexpectedToken}},
		{"unterminated string", `Op { a = "x }`, []ErrorCode{ErrUnterminatedStruct, ErrUnterminatedString}},
		{"leading zero", `Op { a = 01 }`, []ErrorCode{ErrInvalidNumber}},
		{"invalid escape", `Op { a = "\x" }`, []ErrorCode{ErrInvalidEscape}},
		{"unexpected character", `Op { a = @ }`, []ErrorCode{ErrUnexpectedToken, ErrUnexpectedCharacter}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errs := Parse(tt.input)
			var got []ErrorCode
			for _, e := range errs {
				got = append(got, e.Code)
			}
			if diff := cmp.Diff(tt.codes, got); diff != "" {
				t.Fatalf("error codes (-want +got):\n%s\nerrors: %v", diff, errs)
			}
		})
	}
}

func TestParseMissingCommaKeepsBothBindings(t *testing.T) {
	file, _ := Parse(`Op { a = 1 b = 2 }`)
	call := onlyCall(t, file)
	if len(call.Input.Fields) != 2 || call.Input.Field("b") == nil {
		t.Fatalf("expected both bindings, got %#v", call.Input.Fields)
	}
}

func TestParseResynchronisesAtNextStatement(t *testing.T) {
	file, errs := Parse("42 [1, {x}] Op { a = 1 }\nOther {}")
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if len(file.Statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(file.Statements))
	}
	if _, ok := file.Statements[0].(*BadStatement); !ok {
		t.Fatalf("expected BadStatement first, got %T", file.Statements[0])
	}
	for i, name := range []string{"Op", "Other"} {
		call := file.Statements[i+1].(*OperationCall)
		if call.Name.Name.Name != name {
			t.Fatalf("statement %d: expected %s, got %s", i+1, name, call.Name.String())
		}
	}
}

func TestParseMissingValueBeforeNextCall(t *testing.T) {
	file, errs := Parse("let x =\nOp { a = 1 }\n")
	if len(errs) != 1 || errs[0].Code != ErrUnexpectedToken {
		t.Fatalf("expected a single missing-value error, got %v", errs)
	}
	if len(file.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(file.Statements))
	}
	let, ok := file.Statements[0].(*LetBinding)
	if !ok {
		t.Fatalf("expected LetBinding first, got %T", file.Statements[0])
	}
	if bad, ok := let.Binding.Value.(*BadInput); !ok || bad.Span.Len() != 0 {
		t.Fatalf("expected an empty BadInput value, got %#v", let.Binding.Value)
	}
	call, ok := file.Statements[1].(*OperationCall)
	if !ok || call.Name.String() != "Op" || call.Input.Field("a") == nil {
		t.Fatalf("expected call Op with field a, got %#v", file.Statements[1])
	}

	for _, src := range []string{"let x =\nns.Op {}", "let x =\nns#Svc.Op {}"} {
		file, _ := Parse(src)
		if len(file.Statements) != 2 {
			t.Fatalf("%q: expected 2 statements, got %d", src, len(file.Statements))
		}
		if _, ok := file.Statements[1].(*OperationCall); !ok {
			t.Fatalf("%q: expected OperationCall second, got %T", src, file.Statements[1])
		}
	}
}

func TestParseDeepNesting(t *testing.T) {
	n := 100_000
	src := "Op { a = " + strings.Repeat("[", n) + strings.Repeat("]", n) + " }\nNext {}"
	file, errs := Parse(src)
	if len(errs) != 1 || errs[0].Code != ErrNestingTooDeep {
		t.Fatalf("expected one %s error, got %d errors: %v", ErrNestingTooDeep, len(errs), errs)
	}
	if len(file.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(file.Statements))
	}

	depth := 0
	var innermost InputNode = onlyFirstCall(t, file).Input.Field("a").Value
	for {
		l, ok := innermost.(*List)
		if !ok {
			break
		}
		depth++
		innermost = l.Items[0]
	}
	if _, ok := innermost.(*BadInput); !ok {
		t.Fatalf("expected BadInput below the limit, got %T", innermost)
	}
	if depth != maxNesting-1 {
		t.Fatalf("expected %d nested lists, got %d", maxNesting-1, depth)
	}

	// unterminated nesting still returns a tree
	file, errs = Parse("Op { a = " + strings.Repeat("[", n))
	if file == nil || !errs.Has(ErrNestingTooDeep) {
		t.Fatalf("expected a tree and %s, got %v", ErrNestingTooDeep, errs.Err())
	}
	assertWellFormed(t, "Op { a = "+strings.Repeat("[{b=", 5_000))
}

func onlyFirstCall(t *testing.T, file *SourceFile) *OperationCall {
	t.Helper()
	call, ok := file.Statements[0].(*OperationCall)
	if !ok {
		t.Fatalf("expected OperationCall, got %T", file.Statements[0])
	}
	return call
}

func TestParseUnterminatedSpan(t *testing.T) {
	src := "Op {\n  a = 1\n"
	_, errs := Parse(src)
	if len(errs) != 1 || errs[0].Code != ErrUnterminatedStruct {
		t.Fatalf("unexpected errors %v", errs)
	}
	if errs[0].Span.Start.Offset != 3 || errs[0].Span.End.Offset != len(src) {
		t.Fatalf("unexpected span %v", errs[0].Span)
	}
}

func TestErrorsAreSorted(t *testing.T) {
	_, errs := Parse("Op { a = @, b = 01, c = }\n} use service x")
	if len(errs) < 3 {
		t.Fatalf("expected several errors, got %v", errs)
	}
	for i := 1; i < len(errs); i++ {
		if errs[i-1].Span.Start.Offset > errs[i].Span.Start.Offset {
			t.Fatalf("errors out of order: %v before %v", errs[i-1], errs[i])
		}
	}
	if errs.Err() == nil {
		t.Fatalf("expected Err to be non-nil")
	}
	if ErrorList(nil).Err() != nil {
		t.Fatalf("expected nil Err for an empty list")
	}
}

func TestParseAnyInput(t *testing.T) {
	inputs := []string{
		"", " ", "{", "}", "[", "]", ",", "#", ".", "=", ":", "\"", "-", "use", "let", "use service",
		"let x", "let x =", "Op {", "Op { a", "Op { a =", "Op { a = [", "a.#.b", "a#b.", "a#b.c",
		"[[[[[[[[", "}}}}]]]]", "\x00\x01\x02", "\xff\xfe", "use service a#B use service",
		"Op {a=[{b=[{c=[{}]}]}]}", strings.Repeat("{", 500), strings.Repeat("Op {} ", 50),
	}
	for _, src := range inputs {
		assertWellFormed(t, src)
	}
}

func FuzzParse(f *testing.F) {
	f.Add(`use service a.b#C Op { a = [1, "x", true, null], b: {} }`)
	f.Add(`let x = 1, Op { a = }`)
	f.Add("\"\\u12 01 -")
	f.Fuzz(func(t *testing.T, src string) {
		assertWellFormed(t, src)
	})
}

// assertWellFormed checks the invariants every parse result must hold.
func assertWellFormed(t *testing.T, src string) {
	t.Helper()
	file, errs := Parse(src)
	if file == nil {
		t.Fatalf("%q: nil tree", src)
	}
	Inspect(file, func(n Node) bool {
		span := n.GetSpan()
		if span.Start.Offset < 0 || span.End.Offset > len(src) || span.Start.Offset > span.End.Offset {
			t.Fatalf("%q: %T has invalid span %v", src, n, span)
		}
		return true
	})
	for i, e := range errs {
		if e.Span.End.Offset > len(src) {
			t.Fatalf("%q: error span out of range: %v", src, e)
		}
		if i > 0 && errs[i-1].Span.Start.Offset > e.Span.Start.Offset {
			t.Fatalf("%q: errors not sorted", src)
		}
	}
}

func TestStringValuesAreUnescaped(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"plain"`, "plain"},
		{`"a\nb\tc"`, "a\nb\tc"},
		{`"q\"q"`, `q"q`},
		{`"\\ \/"`, `\ /`},
		{`"é"`, "é"},
		{`"😀"`, "😀"},
		{`"\ud83d"`, "�"},
		{`"\q"`, `\q`},
		{`"\u12"`, `\u12`},
		{`"open`, "open"},
	}
	for _, tt := range tests {
		if got := unquote(tt.raw); got != tt.want {
			t.Fatalf("unquote(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNumberConversions(t *testing.T) {
	call := onlyCall(t, mustParse(t, `Op { i = -42, f = 2.5e2 }`))
	i := call.Input.Field("i").Value.(*Number)
	if v, err := i.Int64(); err != nil || v != -42 || !i.IsInteger() {
		t.Fatalf("unexpected int conversion %d, %v", v, err)
	}
	f := call.Input.Field("f").Value.(*Number)
	if v, err := f.Float64(); err != nil || v != 250 || f.IsInteger() {
		t.Fatalf("unexpected float conversion %v, %v", v, err)
	}
}

func TestErrorMessage(t *testing.T) {
	_, errs := Parse("Op { a = 1 ]")
	var unexpected *Error
	for _, e := range errs {
		if e.Code == ErrUnexpectedToken {
			unexpected = e
		}
	}
	if unexpected == nil {
		t.Fatalf("expected an unexpected-token error, got %v", errs)
	}
	msg := unexpected.Error()
	if !strings.Contains(msg, "1:12") || !strings.Contains(msg, "expected") {
		t.Fatalf("unexpected message %q", msg)
	}
}
