package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/daveroberts0321/smithyql/parser/grammar"
)

// styles holds the colours used for diagnostics. Colours are dropped
// automatically when the writer is not a terminal.
type styles struct {
	location lipgloss.Style
	severity lipgloss.Style
	code     lipgloss.Style
	gutter   lipgloss.Style
	caret    lipgloss.Style
	summary  lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		location: r.NewStyle().Bold(true),
		severity: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444")),
		code:     r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		gutter:   r.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
		caret:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F59E0B")),
		summary:  r.NewStyle().Bold(true),
	}
}

// printDiagnostics writes each error with the offending source line and a
// caret under its span:
//
//	query.smithyql:1:9: error[unexpected-token]: missing value (expected value, found '}')
//	   1 | Op { a = }
//	     |         ^
func printDiagnostics(w io.Writer, name, src string, errs grammar.ErrorList) {
	st := newStyles(w)
	lines := strings.Split(src, "\n")

	for _, e := range errs {
		msg := strings.TrimPrefix(e.Error(), e.Span.Start.String()+": ")
		fmt.Fprintf(w, "%s %s %s\n",
			st.location.Render(fmt.Sprintf("%s:%s:", name, e.Span.Start)),
			st.severity.Render("error")+st.code.Render("["+string(e.Code)+"]:"),
			msg)

		line := e.Span.Start.Line
		if line < 1 || line > len(lines) {
			continue
		}
		text := strings.TrimRight(lines[line-1], "\r")
		num := fmt.Sprintf("%4d", line)
		fmt.Fprintf(w, "%s %s\n", st.gutter.Render(num+" |"), text)

		col := min(e.Span.Start.Column-1, len(text))
		pad := strings.Map(func(r rune) rune {
			if r == '\t' {
				return '\t'
			}
			return ' '
		}, text[:col])
		width := 1
		if e.Span.End.Line == line && e.Span.Len() > 1 {
			width = e.Span.Len()
		}
		fmt.Fprintf(w, "%s %s%s\n", st.gutter.Render(strings.Repeat(" ", len(num))+" |"), pad, st.caret.Render(strings.Repeat("^", width)))
	}
}

func printSummary(w io.Writer, files, failed, total int) {
	st := newStyles(w)
	if total == 0 {
		fmt.Fprintln(w, st.summary.Render(fmt.Sprintf("%d files checked, no errors", files)))
		return
	}
	fmt.Fprintln(w, st.summary.Render(fmt.Sprintf("%d errors in %d of %d files", total, failed, files)))
}
