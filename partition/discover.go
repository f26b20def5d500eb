package partition

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/mod/modfile"
)

// DiscoverGo walks a Go module and yields one batch per package that
// contains test functions. Batch args carry the package import path after a
// "--" separator so the worker command can forward them untouched, and the
// predicted test count is the number of top-level Test* functions.
func DiscoverGo(dir string) ([]ManifestBatch, error) {
	goModPath := filepath.Join(dir, "go.mod")
	goModContent, err := os.ReadFile(goModPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read go.mod: %w", err)
	}

	modFile, err := modfile.Parse(goModPath, goModContent, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse go.mod: %w", err)
	}

	if modFile.Module == nil || modFile.Module.Mod.Path == "" {
		return nil, fmt.Errorf("could not find module name in go.mod")
	}
	moduleName := modFile.Module.Mod.Path

	var batches []ManifestBatch
	fset := token.NewFileSet()

	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && skipDir(d.Name()) {
			return fs.SkipDir
		}

		count, err := countTestFunctions(fset, p)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		pkg := moduleName
		name := path.Base(moduleName)
		if rel != "." {
			pkg = moduleName + "/" + filepath.ToSlash(rel)
			name = filepath.ToSlash(rel)
		}

		batches = append(batches, ManifestBatch{
			Name:  name,
			Args:  []string{"--", pkg},
			Tests: count,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking module %s: %w", dir, err)
	}
	return batches, nil
}

// skipDir filters directories the go tool itself would never build.
func skipDir(name string) bool {
	return name == "testdata" || name == "vendor" ||
		strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

// countTestFunctions parses every _test.go file in one directory and counts
// its top-level test functions.
func countTestFunctions(fset *token.FileSet, pkgDir string) (int, error) {
	entries, err := os.ReadDir(pkgDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read package directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		filePath := filepath.Join(pkgDir, entry.Name())
		f, err := parser.ParseFile(fset, filePath, nil, 0)
		if err != nil {
			return 0, fmt.Errorf("failed to parse %s: %w", entry.Name(), err)
		}

		for _, decl := range f.Decls {
			funcDecl, ok := decl.(*ast.FuncDecl)
			if !ok || funcDecl.Recv != nil {
				continue
			}
			// Test functions start with "Test"; TestMain is the harness.
			if strings.HasPrefix(funcDecl.Name.Name, "Test") && funcDecl.Name.Name != "TestMain" {
				count++
			}
		}
	}
	return count, nil
}
