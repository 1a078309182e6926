package pyast

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Alias is one name introduced by an import statement: the fully dotted
// origin and the name it is bound to locally. Wildcard imports report
// "<module>.*" bound to "*".
type Alias struct {
	Origin string
	Name   string
}

// ImportedName is one entry of an import list.
type ImportedName struct {
	Path string // dotted path as written
	As   string // explicit alias, "" when absent
}

// Statement is the structured form of a single import statement.
type Statement struct {
	From     bool   // from X import ...
	Module   string // X in "from X import"; "" for plain imports and bare relative imports
	Level    int    // number of leading dots of a relative import
	Names    []ImportedName
	Wildcard bool
	Future   bool // from __future__ import ...
	Line     int
}

// Binding returns the local name that n is bound to.
//
//	import a.b.c      -> a
//	import a.b as x   -> x
//	from m import y   -> y
func (s Statement) Binding(n ImportedName) string {
	if n.As != "" {
		return n.As
	}
	if s.From {
		return n.Path
	}
	if i := strings.IndexByte(n.Path, '.'); i >= 0 {
		return n.Path[:i]
	}
	return n.Path
}

// Base returns the module part of a from-import with its relative prefix.
func (s Statement) Base() string {
	return strings.Repeat(".", s.Level) + s.Module
}

// Aliases flattens the statement into (origin, local name) pairs.
func (s Statement) Aliases() []Alias {
	var out []Alias
	if !s.From {
		for _, n := range s.Names {
			out = append(out, Alias{Origin: n.Path, Name: s.Binding(n)})
		}
		return out
	}
	base := s.Base()
	for _, n := range s.Names {
		out = append(out, Alias{Origin: joinOrigin(s.Module, base, n.Path), Name: s.Binding(n)})
	}
	if s.Wildcard {
		out = append(out, Alias{Origin: joinOrigin(s.Module, base, "*"), Name: "*"})
	}
	return out
}

func joinOrigin(module, base, name string) string {
	if module == "" {
		return base + name
	}
	return base + "." + name
}

// DecodeImport decodes an import_statement, import_from_statement or
// future_import_statement node. ok is false for any other node.
func DecodeImport(node *sitter.Node, src []byte) (Statement, bool) {
	switch node.Type() {
	case ImportStatement:
		st := Statement{Line: Line(node)}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if n, ok := decodeName(node.NamedChild(i), src); ok {
				st.Names = append(st.Names, n)
			}
		}
		return st, true

	case ImportFromStatement, FutureImportStatement:
		st := Statement{From: true, Line: Line(node)}
		moduleNode := node.ChildByFieldName("module_name")
		if node.Type() == FutureImportStatement {
			st.Module = "__future__"
			st.Future = true
		} else if moduleNode != nil {
			st.Module, st.Level = decodeModule(moduleNode, src)
		}
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if moduleNode != nil && sameNode(child, moduleNode) {
				continue
			}
			if child.Type() == "wildcard_import" {
				st.Wildcard = true
				continue
			}
			if n, ok := decodeName(child, src); ok {
				st.Names = append(st.Names, n)
			}
		}
		return st, true
	}
	return Statement{}, false
}

func decodeName(node *sitter.Node, src []byte) (ImportedName, bool) {
	switch node.Type() {
	case "dotted_name", "identifier":
		return ImportedName{Path: Text(node, src)}, true
	case "aliased_import":
		return ImportedName{
			Path: Text(node.ChildByFieldName("name"), src),
			As:   Text(node.ChildByFieldName("alias"), src),
		}, true
	}
	return ImportedName{}, false
}

// decodeModule returns the dotted module and the relative level of the
// module_name field of a from-import.
func decodeModule(node *sitter.Node, src []byte) (string, int) {
	if node.Type() != "relative_import" {
		return Text(node, src), 0
	}
	var module string
	var level int
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "import_prefix":
			level = strings.Count(Text(child, src), ".")
		case "dotted_name":
			module = Text(child, src)
		}
	}
	return module, level
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// Imports returns every import statement executed at module scope.
func Imports(root *sitter.Node, src []byte) []Statement {
	var out []Statement
	WalkModule(root, func(node *sitter.Node) {
		if st, ok := DecodeImport(node, src); ok {
			out = append(out, st)
		}
	})
	return out
}

// GlobalImports parses src and returns, in source order, every name bound by
// an import statement reachable from module scope. Imports nested in
// function or class bodies are not reported.
func GlobalImports(ctx context.Context, src []byte) ([]Alias, error) {
	tree, err := Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	var out []Alias
	for _, st := range Imports(tree.RootNode(), src) {
		out = append(out, st.Aliases()...)
	}
	return out, nil
}
