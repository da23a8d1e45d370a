package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/daveroberts0321/smithyql/generator"
	"github.com/daveroberts0321/smithyql/internal/ctxlog"
	"github.com/daveroberts0321/smithyql/project"
	"github.com/daveroberts0321/smithyql/watch"
	"github.com/spf13/cobra"
)

var (
	Version   = "0.1.0"
	GitCommit = "development"
	BuildDate = "unknown"
)

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Report syntax errors in every query file of a project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			cfg, root, err := opts.loadProject(cmd, dir)
			if err != nil {
				return err
			}
			results, err := project.Check(cmd.Context(), cfg, root)
			if err != nil {
				return err
			}
			return report(cmd, results)
		},
	}
}

func newBuildCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "build [dir]",
		Short: "Write an outline of every query file to the output directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			cfg, root, err := opts.loadProject(cmd, dir)
			if err != nil {
				return err
			}
			return build(cmd, cfg, root)
		},
	}
}

func newWatchCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Rebuild whenever a query file changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			cfg, root, err := opts.loadProject(cmd, dir)
			if err != nil {
				return err
			}

			if err := build(cmd, cfg, root); err != nil && !errors.Is(err, errDiagnostics) {
				return fmt.Errorf("initial build failed: %w", err)
			}

			dirs := make([]string, len(cfg.Sources))
			for i, src := range cfg.Sources {
				dirs[i] = filepath.Join(root, src)
			}
			return watch.Watch(cmd.Context(), dirs, cfg.Extension, func(ctx context.Context) error {
				err := build(cmd, cfg, root)
				if errors.Is(err, errDiagnostics) {
					return nil
				}
				return err
			})
		},
	}
}

// build runs project.Build and prints diagnostics for the failed files.
func build(cmd *cobra.Command, cfg *project.Config, root string) error {
	results, err := project.Build(cmd.Context(), cfg, root)
	if err != nil && !errors.Is(err, project.ErrDiagnostics) {
		return err
	}
	return report(cmd, results)
}

// report prints diagnostics for each result and a summary line.
func report(cmd *cobra.Command, results []project.Result) error {
	w := cmd.ErrOrStderr()
	failed, total := 0, 0
	for _, res := range results {
		if len(res.Errors) == 0 {
			continue
		}
		failed++
		total += len(res.Errors)
		src, err := os.ReadFile(res.Path)
		if err != nil {
			return err
		}
		printDiagnostics(w, res.Path, string(src), res.Errors)
	}
	printSummary(w, len(results), failed, total)
	if failed > 0 {
		return errDiagnostics
	}
	return nil
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <name>",
		Short: "Create a new SmithyQL project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := project.Init(args[0]); err != nil {
				return err
			}
			ctxlog.FromContext(cmd.Context()).Info("Project created", "dir", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s\n", args[0])
			return nil
		},
	}
}

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate query scaffolding",
	}

	var dir string
	query := &cobra.Command{
		Use:   "query <service> <operation>",
		Short: "Write a starter query calling operation on service (namespace#Name)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := generator.GenerateQuery(dir, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Query %s generated at %s\n", args[1], path)
			return nil
		},
	}
	query.Flags().StringVar(&dir, "dir", "queries", "directory to write the query file to")

	var outDir, format string
	outline := &cobra.Command{
		Use:   "outline <file>",
		Short: "Write the outline of one query file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := generator.GenerateOutline(args[0], outDir, format)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Outline written to %s\n", path)
			return nil
		},
	}
	outline.Flags().StringVar(&outDir, "out", "generated", "output directory")
	outline.Flags().StringVarP(&format, "output", "o", "yaml", `output format: "yaml" or "json"`)

	cmd.AddCommand(query, outline)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "smithyql v%s\n", Version)
			fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
			fmt.Fprintf(w, "  Build Date: %s\n", BuildDate)
			fmt.Fprintf(w, "  Go Version: %s\n", runtime.Version())
			fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
