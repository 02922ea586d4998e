// Package loader resolves `import "path"` statements into a single merged
// ast.File before the checker ever sees one, the way a preprocessor splices
// headers in rather than the checker itself tracking module boundaries.
// Grounded on pkg/vfs/vfs.go's shape: a mutex-guarded map keyed by a
// normalized name, entries read once and cached, writes rejected by a
// validation pattern up front (there, a filename regex; here, the OS path
// cleaning plus an in-progress set standing in for vfs's duplicate-write
// guard, repurposed to catch import cycles instead of disk quota). Path
// cleaning itself reuses pkg/utils.GetPathInfo, the same helper
// cmd/console/main.go and cmd/desktop/main.go call on their own entry file.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"anzu/pkg/ast"
	"anzu/pkg/diag"
	"anzu/pkg/parser"
	"anzu/pkg/utils"
)

// cycleError is returned (carrying the cycle's path) when an import chain
// revisits a file that is still being loaded.
type cycleError struct {
	path string
}

func (e *cycleError) Error() string { return fmt.Sprintf("import cycle at %q", e.path) }

// Loader caches parsed files by cleaned absolute path so a file imported by
// two different modules is read and parsed only once, mirroring
// VirtualDisk's map-plus-mutex cache rather than re-touching disk per import.
type Loader struct {
	mu       sync.Mutex
	parsed   map[string]*ast.File
	inFlight map[string]bool
}

// New creates an empty Loader.
func New() *Loader {
	return &Loader{parsed: map[string]*ast.File{}, inFlight: map[string]bool{}}
}

// Load reads entryPath, recursively resolves every import it (transitively)
// reaches, and returns one merged ast.File: every FunctionDecl and
// StructDecl from the entry file and all of its imports, in the order they
// were first reached by a depth-first walk, with ImportStmt nodes themselves
// dropped once they've done their job of pulling in declarations.
func (l *Loader) Load(entryPath string) (*ast.File, error) {
	var merged ast.File
	seen := map[string]bool{}
	if err := l.load(entryPath, seen, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

func (l *Loader) load(path string, seen map[string]bool, merged *ast.File) error {
	clean, _, err := utils.GetPathInfo(path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.inFlight[clean] {
		l.mu.Unlock()
		return &cycleError{path: clean}
	}
	file, cached := l.parsed[clean]
	l.inFlight[clean] = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.inFlight, clean)
		l.mu.Unlock()
	}()

	if !cached {
		file, err = l.parseFile(clean)
		if err != nil {
			return err
		}
		l.mu.Lock()
		l.parsed[clean] = file
		l.mu.Unlock()
	}

	if seen[clean] {
		return nil
	}
	seen[clean] = true

	dir := filepath.Dir(clean)
	for _, d := range file.Decls {
		imp, ok := d.(*ast.ImportStmt)
		if !ok {
			continue
		}
		importPath := imp.Path
		if !filepath.IsAbs(importPath) {
			importPath = filepath.Join(dir, importPath)
		}
		if err := l.load(importPath, seen, merged); err != nil {
			return err
		}
	}
	for _, d := range file.Decls {
		if _, ok := d.(*ast.ImportStmt); ok {
			continue
		}
		merged.Decls = append(merged.Decls, d)
	}
	return nil
}

func (l *Loader) parseFile(clean string) (*ast.File, error) {
	src, err := os.ReadFile(clean)
	if err != nil {
		return nil, diag.Errorf(diag.Syntax, 0, 0, "cannot read %q: %v", clean, err)
	}
	file, err := parser.ParseFile(src)
	if err != nil {
		return nil, err
	}
	return file, nil
}
