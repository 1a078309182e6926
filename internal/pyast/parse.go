// Package pyast parses Python source with tree-sitter and exposes the
// module-level view of a file: the statements that run when the module is
// first imported.
package pyast

import (
	"context"
	"fmt"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var (
	grammar     *sitter.Language
	grammarOnce sync.Once
)

// Language returns the tree-sitter Python grammar.
func Language() *sitter.Language {
	grammarOnce.Do(func() {
		grammar = python.GetLanguage()
	})
	return grammar
}

// Parse parses src as a Python module. Each call uses its own parser, so
// Parse is safe to call from several goroutines.
func Parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("pyast: tree-sitter parse failed: %w", err)
	}
	return tree, nil
}

// Statement node types reported by WalkModule.
const (
	ImportStatement       = "import_statement"
	ImportFromStatement   = "import_from_statement"
	FutureImportStatement = "future_import_statement"
	FunctionDefinition    = "function_definition"
	ClassDefinition       = "class_definition"
	DecoratedDefinition   = "decorated_definition"
	ExpressionStatement   = "expression_statement"
)

var reported = map[string]bool{
	ImportStatement:       true,
	ImportFromStatement:   true,
	FutureImportStatement: true,
	FunctionDefinition:    true,
	ClassDefinition:       true,
	DecoratedDefinition:   true,
	ExpressionStatement:   true,
}

// WalkModule calls fn, in source order, for every statement that executes at
// module scope. Compound statements (if, with, try, for, while, match) are
// descended into; function, class and lambda bodies are not, because names
// bound there never land in the module namespace.
func WalkModule(root *sitter.Node, fn func(*sitter.Node)) {
	if root == nil {
		return
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child == nil {
			continue
		}
		t := child.Type()
		if reported[t] {
			fn(child)
			continue
		}
		if t == "lambda" {
			continue
		}
		WalkModule(child, fn)
	}
}

// Text returns the source text spanned by node.
func Text(node *sitter.Node, src []byte) string {
	if node == nil {
		return ""
	}
	return node.Content(src)
}

// Line returns the 1-based line on which node starts.
func Line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}
