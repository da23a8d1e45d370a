package project

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/daveroberts0321/smithyql/export"
	"github.com/daveroberts0321/smithyql/internal/ctxlog"
	"github.com/daveroberts0321/smithyql/parser/grammar"
	"golang.org/x/sync/errgroup"
)

//go:embed templates/*
var templates embed.FS

// ErrDiagnostics is returned by Build when at least one file has syntax
// errors. Outlines for the files that parsed cleanly are still written.
var ErrDiagnostics = errors.New("query files have syntax errors")

// Init creates a new SmithyQL project with scaffolding
func Init(name string) error {
	if err := os.MkdirAll(filepath.Join(name, "queries"), 0755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	example := filepath.Join("queries", "example"+DefaultExtension)
	templateFiles := map[string]string{
		ConfigYAML:   "templates/smithyql.yaml",
		example:      "templates/example.smithyql",
		"README.md":  "templates/README.md",
		".gitignore": "templates/gitignore",
	}

	for filePath, templatePath := range templateFiles {
		if err := writeTemplateFile(name, filePath, templatePath, filepath.Base(name)); err != nil {
			return fmt.Errorf("failed to write %s: %w", filePath, err)
		}
	}

	return nil
}

func writeTemplateFile(projectDir, filePath, templatePath, projectName string) error {
	content, err := templates.ReadFile(templatePath)
	if err != nil {
		return err
	}

	contentStr := strings.ReplaceAll(string(content), "{{.ProjectName}}", projectName)

	fullPath := filepath.Join(projectDir, filePath)
	if _, err := os.Stat(fullPath); err == nil {
		return fmt.Errorf("%s already exists", fullPath)
	}
	return os.WriteFile(fullPath, []byte(contentStr), 0644)
}

// ParseFile reads and parses one query file. The error is non-nil only
// when the file cannot be read; syntax problems are in the ErrorList.
func ParseFile(path string) (*grammar.SourceFile, grammar.ErrorList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return grammar.ParseReader(f)
}

// FindQueryFiles returns the sorted paths of all files under cfg.Sources
// (relative to root) that carry cfg.Extension. The output directory and
// any path whose base name is listed in cfg.Exclude are skipped.
func FindQueryFiles(root string, cfg *Config) ([]string, error) {
	outDir := filepath.Clean(filepath.Join(root, cfg.OutputDir))
	seen := make(map[string]bool)
	var files []string

	for _, src := range cfg.Sources {
		dir := filepath.Join(root, src)
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != dir && (filepath.Clean(path) == outDir || strings.HasPrefix(d.Name(), ".")) {
					return filepath.SkipDir
				}
				if slices.Contains(cfg.Exclude, d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if slices.Contains(cfg.Exclude, d.Name()) || filepath.Ext(path) != cfg.Extension {
				return nil
			}
			if !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}
	}

	slices.Sort(files)
	return files, nil
}

// Result is the outcome of parsing one file.
type Result struct {
	Path   string
	File   *grammar.SourceFile
	Errors grammar.ErrorList
}

// Check parses every query file of the project concurrently. Results come
// back in the order of FindQueryFiles. Unreadable files abort the check.
func Check(ctx context.Context, cfg *Config, root string) ([]Result, error) {
	logger := ctxlog.FromContext(ctx)

	paths, err := FindQueryFiles(root, cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("Found query files", "count", len(paths), "root", root)

	results := make([]Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			file, errs, err := ParseFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			results[i] = Result{Path: path, File: file, Errors: errs}
			logger.Debug("Parsed query file", "path", path, "statements", len(file.Statements), "errors", len(errs))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Build checks the project and writes an outline for every clean file to
// cfg.OutputDir. It returns the check results alongside ErrDiagnostics when
// any file had syntax errors.
func Build(ctx context.Context, cfg *Config, root string) ([]Result, error) {
	logger := ctxlog.FromContext(ctx)

	results, err := Check(ctx, cfg, root)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		logger.Info("No query files found", "extension", cfg.Extension)
		return results, nil
	}

	outDir := filepath.Join(root, cfg.OutputDir)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	failed := 0
	for _, res := range results {
		if len(res.Errors) > 0 {
			failed++
			logger.Warn("Skipping file with syntax errors", "path", res.Path, "errors", len(res.Errors))
			continue
		}
		if err := writeOutline(outDir, root, res, cfg.OutputFormat); err != nil {
			return nil, err
		}
	}

	logger.Info("Built query files", "files", len(results)-failed, "failed", failed, "output", outDir)
	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d files", ErrDiagnostics, failed, len(results))
	}
	return results, nil
}

func writeOutline(outDir, root string, res Result, format string) error {
	rel, err := filepath.Rel(root, res.Path)
	if err != nil {
		rel = filepath.Base(res.Path)
	}
	outPath := filepath.Join(outDir, strings.TrimSuffix(rel, filepath.Ext(rel))+export.Extension(format))
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(outPath), err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", outPath, err)
	}
	if err := export.Write(f, res.File, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to write outline for %s: %w", res.Path, err)
	}
	return f.Close()
}
