// Package runtime evaluates user-supplied Risor exclusion expressions
// against classified symbols.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/apitree/internal/store"
)

// ErrNotBool is wrapped by Eval when an expression yields neither a bool
// nor nil.
var ErrNotBool = errors.New("runtime: expression must evaluate to a bool")

// Symbol is the view of a classified symbol that expressions can see.
type Symbol struct {
	Name       string
	QualName   string
	Kind       string
	Rule       string
	RulePath   string
	Container  string
	IsImported bool
	IsPackage  bool
	IsModule   bool
}

func (s Symbol) globals() map[string]any {
	return map[string]any{
		"name":        s.Name,
		"qualname":    s.QualName,
		"kind":        s.Kind,
		"rule":        s.Rule,
		"rule_path":   s.RulePath,
		"container":   s.Container,
		"is_imported": s.IsImported,
		"is_package":  s.IsPackage,
		"is_module":   s.IsModule,
	}
}

// Runtime embeds a Risor VM and evaluates exclusion expressions. A symbol
// is excluded when any expression evaluates to true.
type Runtime struct {
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	logger     *slog.Logger
	exprs      []string
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS resolves Risor import statements and scripts against fsys.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithScriptsDir resolves Risor import statements and relative script
// paths against dir.
func WithScriptsDir(dir string) RuntimeOption {
	return func(r *Runtime) {
		r.scriptsDir = dir
	}
}

// WithStore exposes read-only SQL access to previously built trees as the
// db_query global.
func WithStore(s *store.Store) RuntimeOption {
	return func(r *Runtime) {
		r.store = s
	}
}

// WithLogger routes the log global to l.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.logger = l
	}
}

// NewRuntime creates a Runtime for the given expressions.
func NewRuntime(exprs []string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		logger: slog.Default(),
		exprs:  append([]string(nil), exprs...),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Expressions returns the configured expressions in evaluation order.
func (r *Runtime) Expressions() []string {
	return append([]string(nil), r.exprs...)
}

// AddScript loads a .risor file and appends its source as an expression.
func (r *Runtime) AddScript(path string) error {
	src, err := r.LoadScript(path)
	if err != nil {
		return err
	}
	r.exprs = append(r.exprs, src)
	return nil
}

// Exclude reports whether any expression evaluates to true for sym.
// Expressions run in order and evaluation stops at the first true result.
func (r *Runtime) Exclude(ctx context.Context, sym Symbol) (bool, error) {
	for i, expr := range r.exprs {
		hide, err := r.Eval(ctx, expr, sym)
		if err != nil {
			return false, fmt.Errorf("exclude expression %d: %w", i+1, err)
		}
		if hide {
			r.logger.Debug("symbol excluded", "qualname", sym.QualName, "expression", i+1)
			return true, nil
		}
	}
	return false, nil
}

// Check evaluates every expression against an empty symbol, so syntax
// errors and non-bool results surface before a build starts.
func (r *Runtime) Check(ctx context.Context) error {
	for i, expr := range r.exprs {
		if _, err := r.Eval(ctx, expr, Symbol{}); err != nil {
			return fmt.Errorf("exclude expression %d: %w", i+1, err)
		}
	}
	return nil
}

// Eval evaluates one expression with sym exposed as globals. A nil result
// counts as false.
func (r *Runtime) Eval(ctx context.Context, expr string, sym Symbol) (bool, error) {
	result, err := r.RunSource(ctx, expr, sym.globals())
	if err != nil {
		return false, err
	}
	switch v := result.(type) {
	case *object.Bool:
		return v.Value(), nil
	case *object.NilType:
		return false, nil
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("%w, got %s", ErrNotBool, result.Type())
}

// RunSource executes Risor source code with the standard globals plus any
// extra globals and returns the value of its last expression.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) (object.Object, error) {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	return result, nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on that filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to Risor scripts.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"log": mustProxy(&logObject{logger: r.logger}),
	}
	if r.store != nil {
		for name, fn := range storeFuncs(r.store) {
			globals[name] = fn
		}
	}
	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
