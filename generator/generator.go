// Package generator writes starter query files.
package generator

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daveroberts0321/smithyql/export"
	"github.com/daveroberts0321/smithyql/parser/grammar"
	"github.com/daveroberts0321/smithyql/project"
)

// GenerateQuery writes <dir>/<operation>.smithyql containing a use clause
// for service and an empty call to operation. When the file already exists
// the call is appended instead. The result is parsed back and rejected if
// it does not parse cleanly, in which case nothing is written.
func GenerateQuery(dir, service, operation string) (string, error) {
	svc, errs := grammar.ParseString("use service " + service)
	if len(errs) > 0 || svc.Prelude == nil || len(svc.Statements) > 0 || len(svc.Prelude.UseClauses) != 1 {
		return "", fmt.Errorf("invalid service %q: expected namespace#Name", service)
	}
	if !isIdentifier(operation) {
		return "", fmt.Errorf("invalid operation name %q", operation)
	}

	call := fmt.Sprintf("%s {\n}\n", operation)
	filename := filepath.Join(dir, operation+project.DefaultExtension)

	var content string
	if existing, err := os.ReadFile(filename); err == nil {
		content = string(existing)
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += "\n" + call
	} else if errors.Is(err, os.ErrNotExist) {
		content = fmt.Sprintf("use service %s\n\n", svc.Prelude.UseClauses[0].Service) + call
	} else {
		return "", err
	}

	if _, errs := grammar.ParseString(content); len(errs) > 0 {
		return "", fmt.Errorf("generated query for %s does not parse: %w", filename, errs.Err())
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write query template: %w", err)
	}
	return filename, nil
}

// GenerateOutline parses the query file at path and writes its outline to
// outDir in format. It returns the written path.
func GenerateOutline(path, outDir, format string) (string, error) {
	file, errs, err := project.ParseFile(path)
	if err != nil {
		return "", err
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("%s: %w", path, errs.Err())
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, file, format); err != nil {
		return "", err
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(outDir, base+export.Extension(format))
	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		return "", err
	}
	return outPath, nil
}

func isIdentifier(s string) bool {
	toks, errs := grammar.Tokenize(s)
	return len(errs) == 0 && len(toks) == 2 && toks[0].Kind == grammar.IdentifierToken
}
