package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/daveroberts0321/smithyql/internal/ctxlog"
	"github.com/daveroberts0321/smithyql/parser/grammar"
	"github.com/daveroberts0321/smithyql/project"
	"github.com/spf13/cobra"
)

// errDiagnostics is returned by commands that already printed syntax
// errors, so main only needs to set the exit status.
var errDiagnostics = errors.New("syntax errors found")

type options struct {
	configFile string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "smithyql",
		Short: "SmithyQL query tooling",
		Long: `smithyql reads SmithyQL query files: a prelude of "use service"
clauses followed by let bindings and operation calls.

It reports lexical and syntax errors with source positions, formats files
into canonical layout, and writes YAML or JSON outlines of each query.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogger(cmd, "")
		},
	}

	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: smithyql.yaml or smithyql.toml in the project root)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default: from config, else info)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		newParseCmd(),
		newCheckCmd(opts),
		newFmtCmd(),
		newTokensCmd(),
		newBuildCmd(opts),
		newWatchCmd(opts),
		newInitCmd(),
		newGenCmd(),
		newVersionCmd(),
	)
	return root
}

// setupLogger installs a logger on the command context. The --log-level
// flag wins over fallback, which comes from the project config.
func (o *options) setupLogger(cmd *cobra.Command, fallback string) error {
	level := o.logLevel
	if level == "" {
		level = fallback
	}
	lvl, err := ctxlog.ParseLevel(level)
	if err != nil {
		return err
	}
	logger, err := ctxlog.New(cmd.ErrOrStderr(), o.logFormat, lvl)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(ctxlog.WithLogger(ctx, logger))
	return nil
}

// loadProject resolves the config for the project rooted at dir. An
// explicit --config file makes its directory the project root.
func (o *options) loadProject(cmd *cobra.Command, dir string) (*project.Config, string, error) {
	var (
		cfg  *project.Config
		path string
		err  error
	)
	if o.configFile != "" {
		path = o.configFile
		cfg, err = project.LoadConfig(path)
		dir = filepath.Dir(path)
	} else {
		cfg, path, err = project.FindConfig(dir)
	}
	if err != nil {
		return nil, "", err
	}
	if err := o.setupLogger(cmd, cfg.LogLevel); err != nil {
		return nil, "", err
	}
	ctxlog.FromContext(cmd.Context()).Debug("Loaded project", "root", dir, "config", path, "sources", cfg.Sources)
	return cfg, dir, nil
}

// readSource reads a query file, or standard input when path is "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

// parseSource parses src and prints any diagnostics to stderr.
func parseSource(cmd *cobra.Command, name, src string) (*grammar.SourceFile, error) {
	file, errs := grammar.Parse(src)
	if len(errs) > 0 {
		printDiagnostics(cmd.ErrOrStderr(), name, src, errs)
		return file, errDiagnostics
	}
	return file, nil
}
