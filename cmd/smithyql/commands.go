package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/daveroberts0321/smithyql/export"
	"github.com/daveroberts0321/smithyql/parser/grammar"
	"github.com/spf13/cobra"
)

func newParseCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a query file and print its outline",
		Long: `Parse a query file ("-" for stdin). With --output yaml or json the
outline of services and statements is printed; --output ast prints the full
syntax tree as JSON, including spans.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			file, err := parseSource(cmd, args[0], src)
			if err != nil {
				return err
			}
			if output == "ast" {
				data, err := json.MarshalIndent(file, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return export.Write(cmd.OutOrStdout(), file, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "yaml", `output format: "yaml", "json" or "ast"`)
	return cmd
}

func newFmtCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "fmt <file>",
		Short: "Rewrite a query file in canonical layout",
		Long: `Format a query file ("-" for stdin). Files containing comments or
syntax errors are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			file, err := parseSource(cmd, args[0], src)
			if err != nil {
				return err
			}
			out, err := grammar.Format(file)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if !write || args[0] == "-" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if bytes.Equal(out, []byte(src)) {
				return nil
			}
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			return os.WriteFile(args[0], out, info.Mode().Perm())
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")
	return cmd
}

func newTokensCmd() *cobra.Command {
	var trivia bool

	cmd := &cobra.Command{
		Use:   "tokens <file>",
		Short: "Print the token stream of a query file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readSource(cmd, args[0])
			if err != nil {
				return err
			}
			toks, errs := grammar.Tokenize(src)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, tok := range toks {
				if tok.Kind.IsTrivia() && !trivia {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%q\n", tok.Span, tok.Kind, tok.Text)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(errs) > 0 {
				printDiagnostics(cmd.ErrOrStderr(), args[0], src, errs)
				return errDiagnostics
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&trivia, "trivia", false, "include whitespace and comment tokens")
	return cmd
}
