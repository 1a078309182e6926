// Package pysrc loads a tree of Python source files into module namespaces
// without running an interpreter. Each module's top-level statements are
// replayed in order: definitions and assignments bind values, and imports
// load their targets and bind them the way the import system would.
package pysrc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/jward/apitree/internal/pyast"
)

// ErrNotFound is returned by Import for a module that is not part of the
// source tree.
var ErrNotFound = errors.New("pysrc: module not found")

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for unresolved names.
func WithLogger(l *slog.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// Loader holds the parsed files of one source root and the modules loaded
// from them so far.
type Loader struct {
	root   string
	logger *slog.Logger

	files map[string]*sourceFile // by module name
	dirs  map[string]bool        // directories holding Python files, by dotted name

	mu       sync.Mutex
	modules  map[string]*Module
	external map[string]*Module
}

// Open discovers and parses every Python file below root.
func Open(ctx context.Context, root string, opts ...Option) (*Loader, error) {
	l := &Loader{
		root:     root,
		logger:   slog.Default(),
		files:    make(map[string]*sourceFile),
		dirs:     make(map[string]bool),
		modules:  make(map[string]*Module),
		external: make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(l)
	}

	rels, err := discover(root)
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", root, err)
	}
	files, err := parseFiles(ctx, root, rels)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if prev, ok := l.files[f.module]; ok && prev.isInit {
			// pkg/__init__.py shadows a sibling pkg.py.
			continue
		}
		l.files[f.module] = f
		for dir := path.Dir(f.rel); dir != "."; dir = path.Dir(dir) {
			l.dirs[strings.ReplaceAll(dir, "/", ".")] = true
		}
	}
	l.logger.Debug("python sources parsed", "root", root, "files", len(files))
	return l, nil
}

// Root returns the directory the loader was opened on.
func (l *Loader) Root() string { return l.root }

// Modules returns the names of every module in the source tree, sorted.
func (l *Loader) Modules() []string {
	seen := make(map[string]bool, len(l.files)+len(l.dirs))
	for name := range l.files {
		seen[name] = true
	}
	for name := range l.dirs {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Import loads the named module, and its parent packages, from the source
// tree. Import is safe for concurrent use; loaded modules are shared.
func (l *Loader) Import(name string) (*Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return m, nil
}

func (l *Loader) has(name string) bool {
	_, isFile := l.files[name]
	return isFile || l.dirs[name]
}

// load returns the module named name, executing it on first use. A module
// that is still executing is returned as is.
func (l *Loader) load(name string) (*Module, bool) {
	if m, ok := l.modules[name]; ok {
		return m, true
	}
	if !l.has(name) {
		return nil, false
	}

	var parent *Module
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		p, ok := l.load(name[:i])
		if !ok {
			return nil, false
		}
		parent = p
		// The parent may have imported this module while executing.
		if m, ok := l.modules[name]; ok {
			return m, true
		}
	}

	m := newModule(name)
	l.modules[name] = m
	f, isFile := l.files[name]
	switch {
	case isFile:
		m.pkg = f.isInit
		m.file = f.rel
		m.src, m.hasSrc = f.src, true
	default:
		// A directory without __init__.py is an implicit namespace package.
		m.pkg = true
	}
	l.setMagic(m, f)
	if isFile {
		l.exec(m, f)
	}

	if parent != nil {
		parent.set(name[strings.LastIndexByte(name, '.')+1:], m)
	}
	return m, true
}

// importModule loads name from the source tree, or returns the external
// module standing in for it.
func (l *Loader) importModule(name string) *Module {
	if m, ok := l.load(name); ok {
		return m
	}
	if m, ok := l.external[name]; ok {
		return m
	}
	m := newModule(name)
	m.external = true
	l.external[name] = m
	return m
}

func (l *Loader) setMagic(m *Module, f *sourceFile) {
	pkgName := m.name
	if !m.pkg {
		pkgName = parentName(m.name)
	}
	var doc any
	var file any
	if f != nil {
		if f.doc != "" {
			doc = f.doc
		}
		file = f.rel
	}
	m.set("__name__", m.name)
	m.set("__doc__", doc)
	m.set("__package__", pkgName)
	m.set("__loader__", nil)
	m.set("__spec__", nil)
	if m.pkg {
		m.set("__path__", []string{strings.ReplaceAll(m.name, ".", "/")})
	}
	m.set("__file__", file)
	m.set("__cached__", nil)
	m.set("__builtins__", nil)
}

func (l *Loader) exec(m *Module, f *sourceFile) {
	for _, s := range f.stmts {
		switch s.kind {
		case stmtDef:
			for _, name := range s.names {
				m.set(name, &Definition{Qual: m.name + "." + name, Type: s.defKind, Line: s.line})
			}
		case stmtAssign:
			for _, name := range s.names {
				m.set(name, &Constant{Expr: s.text})
			}
		case stmtImport:
			l.execImport(m, s.imp)
		}
	}
}

func (l *Loader) execImport(m *Module, st pyast.Statement) {
	if !st.From {
		for _, n := range st.Names {
			target := l.importModule(n.Path)
			if n.As != "" {
				m.set(n.As, target)
				continue
			}
			// import a.b.c binds a.
			top, _, _ := strings.Cut(n.Path, ".")
			m.set(top, l.importModule(top))
		}
		return
	}

	if st.Future {
		for _, n := range st.Names {
			m.set(st.Binding(n), &Feature{Name: n.Path})
		}
		return
	}

	base, ok := l.resolve(m, st)
	if !ok {
		l.logger.Warn("relative import beyond top-level package",
			"module", m.name, "line", st.Line, "from", st.Base())
		return
	}
	src := l.importModule(base)

	if st.Wildcard {
		if src.external {
			return
		}
		for _, mem := range src.members {
			if !strings.HasPrefix(mem.Name, "_") {
				m.set(mem.Name, mem.Value)
			}
		}
	}

	for _, n := range st.Names {
		local := st.Binding(n)
		if src.external {
			m.set(local, &Definition{Qual: base + "." + n.Path, Type: "external"})
			continue
		}
		if v, ok := src.Get(n.Path); ok {
			m.set(local, v)
			continue
		}
		if sub, ok := l.load(base + "." + n.Path); ok {
			m.set(local, sub)
			continue
		}
		l.logger.Warn("cannot import name",
			"module", m.name, "line", st.Line, "name", n.Path, "from", base)
	}
}

// resolve returns the absolute module named by the from clause of st.
func (l *Loader) resolve(m *Module, st pyast.Statement) (string, bool) {
	if st.Level == 0 {
		return st.Module, true
	}
	pkg := m.name
	if !m.pkg {
		pkg = parentName(m.name)
	}
	for range st.Level - 1 {
		if pkg == "" {
			return "", false
		}
		pkg = parentName(pkg)
	}
	if pkg == "" {
		return "", false
	}
	if st.Module == "" {
		return pkg, true
	}
	return pkg + "." + st.Module, true
}

func parentName(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return name[:i]
}
