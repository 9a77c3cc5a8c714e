package arch_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"testing"
)

const internalImport = "github.com/papapumpkin/stratum/internal/"

// internalDir returns <repo>/internal, located relative to this file.
func internalDir(t *testing.T) string {
	t.Helper()
	_, self, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Dir(filepath.Dir(self))
}

// internalPackages lists the directories under internal/ that hold Go code,
// arch_test excluded.
func internalPackages(t *testing.T) []string {
	t.Helper()
	dir := internalDir(t)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var pkgs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "arch_test" {
			continue
		}
		if len(sourceFiles(t, filepath.Join(dir, e.Name()), false)) > 0 {
			pkgs = append(pkgs, e.Name())
		}
	}
	sort.Strings(pkgs)
	return pkgs
}

// sourceFiles returns the .go files in dir, with or without tests.
func sourceFiles(t *testing.T, dir string, withTests bool) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading %s: %v", dir, err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") {
			continue
		}
		if !withTests && strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files
}

// parsedFile is one non-test source file of an internal package.
type parsedFile struct {
	path string
	fset *token.FileSet
	file *ast.File
}

// parsePackage parses every non-test file of the named internal package.
func parsePackage(t *testing.T, pkg string) []parsedFile {
	t.Helper()
	var out []parsedFile
	for _, path := range sourceFiles(t, filepath.Join(internalDir(t), pkg), false) {
		fset := token.NewFileSet()
		f, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			t.Fatalf("parsing %s: %v", path, err)
		}
		out = append(out, parsedFile{path: path, fset: fset, file: f})
	}
	return out
}

// internalImports returns the internal packages pkg imports, deduplicated.
func internalImports(t *testing.T, pkg string) []string {
	t.Helper()
	seen := make(map[string]bool)
	for _, pf := range parsePackage(t, pkg) {
		for _, imp := range pf.file.Imports {
			path := strings.Trim(imp.Path.Value, `"`)
			rel, ok := strings.CutPrefix(path, internalImport)
			if !ok {
				continue
			}
			rel, _, _ = strings.Cut(rel, "/")
			seen[rel] = true
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// globalVar is one name declared in a package-level var block.
type globalVar struct {
	pos   string
	name  string
	typ   ast.Expr
	value ast.Expr

	// embedded marks a var filled by a go:embed directive.
	embedded bool
}

// packageVars returns every named package-level var in files.
func packageVars(files []parsedFile) []globalVar {
	var out []globalVar
	for _, pf := range files {
		for _, decl := range pf.file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.VAR {
				continue
			}
			for _, spec := range gd.Specs {
				vs := spec.(*ast.ValueSpec)
				for i, name := range vs.Names {
					if name.Name == "_" {
						continue
					}
					g := globalVar{
						pos:      relPath(pf.path) + ":" + strconv.Itoa(pf.fset.Position(name.Pos()).Line),
						name:     name.Name,
						typ:      vs.Type,
						embedded: hasEmbed(gd.Doc) || hasEmbed(vs.Doc),
					}
					if i < len(vs.Values) {
						g.value = vs.Values[i]
					}
					out = append(out, g)
				}
			}
		}
	}
	return out
}

func hasEmbed(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.HasPrefix(c.Text, "//go:embed ") {
			return true
		}
	}
	return false
}

func relPath(path string) string {
	if _, rest, ok := strings.Cut(filepath.ToSlash(path), "internal/"); ok {
		return "internal/" + rest
	}
	return filepath.Base(path)
}

func TestInternalImports(t *testing.T) {
	t.Parallel()

	imports := internalImports(t, "session")
	for _, want := range []string{"prompt", "stability"} {
		i := sort.SearchStrings(imports, want)
		if i == len(imports) || imports[i] != want {
			t.Errorf("session imports %v, missing %s", imports, want)
		}
	}
}
