// Command catalog-check validates the embedded dataset catalog against its
// documentation: every dataset must carry a "## <key>" section in
// docs/datasets.md, the docs must not describe datasets the catalog lacks,
// and every declared view must materialize.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"panelcore/internal/catalog"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("catalog-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var docsPath string
	fs.StringVar(&docsPath, "docs", "docs/datasets.md", "path to the dataset documentation")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := run(docsPath); err != nil {
		fmt.Fprintf(stderr, "Catalog validation failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Catalog validation passed.")
	return 0
}

func run(docsPath string) error {
	safePath, err := validatePath(docsPath)
	if err != nil {
		return err
	}

	cat, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	documented, err := readDocumentedKeys(safePath)
	if err != nil {
		return err
	}

	for _, key := range cat.Keys() {
		if _, ok := documented[key]; !ok {
			return fmt.Errorf("dataset %s has no section in %s", key, docsPath)
		}
	}
	known := make(map[string]struct{}, cat.Len())
	for _, key := range cat.Keys() {
		known[key] = struct{}{}
	}
	for key := range documented {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("%s documents unknown dataset %s", docsPath, key)
		}
	}

	for _, dataset := range cat.Datasets() {
		for _, view := range dataset.Views() {
			table, err := dataset.View(view)
			if err != nil {
				return fmt.Errorf("dataset %s view %s: %w", dataset.Key(), view, err)
			}
			if table.NumRows() == 0 {
				return fmt.Errorf("dataset %s view %s produced no rows", dataset.Key(), view)
			}
		}
	}

	return nil
}

// validatePath keeps the docs path inside the repository tree.
func validatePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("absolute paths not allowed: %s", p)
	}
	clean := filepath.Clean(p)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", p)
	}
	return clean, nil
}

// readDocumentedKeys collects the "## <key>" section headers from the docs
// file. Deeper headers and prose are ignored.
func readDocumentedKeys(path string) (keys map[string]struct{}, err error) {
	file, err := os.Open(path) // #nosec G304: path validated by validatePath
	if err != nil {
		return nil, fmt.Errorf("read docs: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close docs: %w", cerr)
		}
	}()

	keys = make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "## ") || strings.HasPrefix(line, "### ") {
			continue
		}
		key := strings.TrimSpace(strings.TrimPrefix(line, "## "))
		if key == "" {
			continue
		}
		keys[key] = struct{}{}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		return nil, scanErr
	}
	return keys, nil
}
