package interp

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/ebitengine/purego"
)

// importedModule is a cached import result: either a .ptrs script's
// top-level symbol table or a native shared library's resolved
// symbols, keyed by canonical path (spec.md §6.1/§6.4, Testable
// Property 7 "idempotence of import"). mu guards symbols for a native
// module, since resolveNativeSymbol lazily populates it after the
// module itself is already cached and visible to concurrent callers.
type importedModule struct {
	mu       sync.Mutex
	symbols  map[string]Var
	isNative bool
	handle   uintptr
}

// ScriptLoader is the external collaborator that turns a `.ptrs`
// source file into an evaluated top-level Scope (spec.md §1: the
// lexer/parser is out of scope here; this package only consumes its
// output). A driver (cmd/ptrs) supplies a concrete ScriptLoader that
// parses and evaluates the file, returning its exported symbol table.
type ScriptLoader func(path string) (map[string]Var, error)

// importPath implements spec.md §6.4's import resolution: a `.ptrs`
// suffix resolves relative to the importing file, is canonicalized,
// parsed/evaluated once and cached by canonical path; anything else
// is treated as a native shared library opened with lazy binding,
// each requested identifier resolved as a read-only Native symbol.
// Concurrent resolutions of the same canonical path are collapsed via
// singleflight per SPEC_FULL.md §1/§2 (golang.org/x/sync), matching
// original_source/interpreter/statements.c's importCachedScript cache
// but made safe under concurrent callers.
func (it *Interpreter) importPath(s *Scope, path string, symbols []string) error {
	canonical, isNative := it.canonicalizeImportPath(s, path)

	v, err, _ := it.sf.Do(canonical, func() (interface{}, error) {
		it.mutex.Lock()
		if m, ok := it.importCache[canonical]; ok {
			it.mutex.Unlock()
			return m, nil
		}
		it.mutex.Unlock()

		var m *importedModule
		var err error
		if isNative {
			m, err = it.importNative(canonical)
		} else {
			m, err = it.importScript(canonical)
		}
		if err != nil {
			return nil, err
		}
		it.mutex.Lock()
		it.importCache[canonical] = m
		it.mutex.Unlock()
		return m, nil
	})
	if err != nil {
		return wrapFault(err, KindImportError, "import %q failed", path)
	}
	mod := v.(*importedModule)

	for _, name := range symbols {
		var sym Var
		var err error
		if mod.isNative {
			sym, err = it.resolveNativeSymbol(mod, name)
		} else {
			var ok bool
			sym, ok = mod.symbols[name]
			if !ok {
				err = newFault(KindImportError, "symbol %q not found in %q", name, path)
			}
		}
		if err != nil {
			return err
		}
		if _, err := s.declare(sym); err != nil {
			return err
		}
	}
	return nil
}

// canonicalizeImportPath resolves a `.ptrs` path relative to the
// importing file's directory (dirname + filepath.Abs, after
// original_source/interpreter/statements.c's resolveRelPath); symbolic
// links are not resolved. Any other path is treated as a native
// library name/path verbatim.
func (it *Interpreter) canonicalizeImportPath(s *Scope, path string) (canonical string, isNative bool) {
	if !strings.HasSuffix(path, ".ptrs") {
		return path, true
	}
	dir := "."
	if s.callAST != nil {
		dir = filepath.Dir(s.callAST.Pos().File)
	}
	abs := filepath.Join(dir, path)
	clean, err := filepath.Abs(abs)
	if err != nil {
		return abs, false
	}
	return clean, false
}

// Loader is consulted by importScript; set by the driver
// (cmd/ptrs/main.go) since parsing .ptrs source is the parser's job,
// an external collaborator per spec.md §1.
var Loader ScriptLoader

func (it *Interpreter) importScript(canonical string) (*importedModule, error) {
	if Loader == nil {
		return nil, newFault(KindImportError, "no script loader configured for %q", canonical)
	}
	syms, err := Loader(canonical)
	if err != nil {
		return nil, wrapFault(err, KindImportError, "evaluating %q failed", canonical)
	}
	return &importedModule{symbols: syms}, nil
}

// importNative opens a shared library with lazy binding and resolves
// symbols on demand (spec.md §6.4 branch 2), using purego's cgo-free
// Dlopen/Dlsym (SPEC_FULL.md §2 DOMAIN STACK).
func (it *Interpreter) importNative(path string) (*importedModule, error) {
	if !it.opt.Unrestricted {
		return nil, newFault(KindAccessDenied, "native import %q denied: run with Unrestricted to allow native library loading", path)
	}
	handle, err := purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, wrapFault(err, KindImportError, "dlopen %q failed", path)
	}
	return &importedModule{symbols: make(map[string]Var), isNative: true, handle: handle}, nil
}

// resolveNativeSymbol lazily resolves one symbol from an already
// opened native module, caching the result as a read-only Native Var
// (spec.md §6.4: "each identifier is resolved as a native symbol
// (value stored as Native read-only)").
func (it *Interpreter) resolveNativeSymbol(mod *importedModule, name string) (Var, error) {
	mod.mu.Lock()
	defer mod.mu.Unlock()
	if v, ok := mod.symbols[name]; ok {
		return v, nil
	}
	addr, err := purego.Dlsym(mod.handle, name)
	if err != nil {
		return Undefined, newFault(KindImportError, "symbol %q not found", name)
	}
	v := nativeSymbolVar(addr)
	mod.symbols[name] = v
	return v, nil
}

func wrapFault(err error, kind ErrorKind, format string, args ...interface{}) error {
	if f, ok := err.(*Fault); ok {
		return f
	}
	f := newFault(kind, format, args...)
	f.cause = err
	return f
}
