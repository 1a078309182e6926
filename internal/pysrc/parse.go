package pysrc

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/apitree/internal/pyast"
)

type stmtKind int

const (
	stmtDef stmtKind = iota
	stmtAssign
	stmtImport
)

// stmt is one module-scope statement that binds names.
type stmt struct {
	kind    stmtKind
	names   []string // bound names of a def or assignment
	defKind string   // "function" or "class"
	text    string   // right-hand side of an assignment
	line    int
	imp     pyast.Statement
}

// sourceFile is a parsed .py file.
type sourceFile struct {
	rel    string // slash-separated, relative to the loader root
	module string // dotted module name
	isInit bool
	src    []byte
	doc    string
	stmts  []stmt
}

// moduleName maps a relative file path to its module name. pkg/__init__.py
// is the package pkg itself.
func moduleName(rel string) (string, bool) {
	trimmed := strings.TrimSuffix(rel, ".py")
	isInit := path.Base(trimmed) == "__init__"
	if isInit {
		trimmed = path.Dir(trimmed)
	}
	return strings.ReplaceAll(trimmed, "/", "."), isInit
}

// parseFiles reads and parses rels concurrently.
func parseFiles(ctx context.Context, root string, rels []string) ([]*sourceFile, error) {
	if len(rels) == 0 {
		return nil, nil
	}

	numWorkers := min(runtime.NumCPU(), len(rels))
	if numWorkers < 1 {
		numWorkers = 1
	}

	workCh := make(chan int, len(rels))
	for i := range rels {
		workCh <- i
	}
	close(workCh)

	files := make([]*sourceFile, len(rels))
	errs := make([]error, len(rels))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				files[i], errs[i] = parseFile(ctx, root, rels[i])
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", rels[i], err)
		}
	}
	return files, nil
}

func parseFile(ctx context.Context, root, rel string) (*sourceFile, error) {
	src, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	tree, err := pyast.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	name, isInit := moduleName(rel)
	f := &sourceFile{rel: rel, module: name, isInit: isInit, src: src}
	rootNode := tree.RootNode()
	f.doc = docstring(rootNode, src)
	pyast.WalkModule(rootNode, func(node *sitter.Node) {
		if s, ok := decodeStmt(node, src); ok {
			f.stmts = append(f.stmts, s)
		}
	})
	return f, nil
}

func decodeStmt(node *sitter.Node, src []byte) (stmt, bool) {
	line := pyast.Line(node)
	switch node.Type() {
	case pyast.ImportStatement, pyast.ImportFromStatement, pyast.FutureImportStatement:
		imp, ok := pyast.DecodeImport(node, src)
		return stmt{kind: stmtImport, imp: imp, line: line}, ok

	case pyast.DecoratedDefinition:
		def := node.ChildByFieldName("definition")
		if def == nil {
			return stmt{}, false
		}
		return decodeStmt(def, src)

	case pyast.FunctionDefinition, pyast.ClassDefinition:
		name := node.ChildByFieldName("name")
		if name == nil {
			return stmt{}, false
		}
		kind := "function"
		if node.Type() == pyast.ClassDefinition {
			kind = "class"
		}
		return stmt{kind: stmtDef, names: []string{pyast.Text(name, src)}, defKind: kind, line: line}, true

	case pyast.ExpressionStatement:
		if node.NamedChildCount() == 0 {
			return stmt{}, false
		}
		expr := node.NamedChild(0)
		if expr.Type() != "assignment" {
			return stmt{}, false
		}
		var names []string
		for expr != nil && expr.Type() == "assignment" {
			right := expr.ChildByFieldName("right")
			if right == nil {
				// A bare annotation binds nothing.
				break
			}
			names = append(names, targets(expr.ChildByFieldName("left"), src)...)
			if right.Type() != "assignment" {
				return stmt{kind: stmtAssign, names: names, text: pyast.Text(right, src), line: line}, len(names) > 0
			}
			expr = right
		}
		return stmt{}, false
	}
	return stmt{}, false
}

// targets lists the plain names assigned by an assignment target.
func targets(node *sitter.Node, src []byte) []string {
	if node == nil {
		return nil
	}
	switch node.Type() {
	case "identifier":
		return []string{pyast.Text(node, src)}
	case "pattern_list", "tuple_pattern", "list_pattern", "expression_list":
		var out []string
		for i := 0; i < int(node.NamedChildCount()); i++ {
			out = append(out, targets(node.NamedChild(i), src)...)
		}
		return out
	}
	// Attribute and subscript targets bind nothing in the module.
	return nil
}

// docstring returns the string literal that opens the module, if any.
func docstring(root *sitter.Node, src []byte) string {
	if root == nil || root.NamedChildCount() == 0 {
		return ""
	}
	first := root.NamedChild(0)
	if first.Type() != pyast.ExpressionStatement || first.NamedChildCount() == 0 {
		return ""
	}
	lit := first.NamedChild(0)
	if lit.Type() != "string" {
		return ""
	}
	text := pyast.Text(lit, src)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			return strings.TrimSpace(text[len(q) : len(text)-len(q)])
		}
	}
	return text
}
