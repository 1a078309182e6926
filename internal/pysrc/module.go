package pysrc

import (
	"github.com/jward/apitree"
)

// Module is the namespace a Python module ends up with once its top-level
// statements have run.
type Module struct {
	name     string
	file     string // relative path of the source file; "" without source
	pkg      bool
	external bool
	src      []byte
	hasSrc   bool

	members []apitree.Member
	index   map[string]int
}

func newModule(name string) *Module {
	return &Module{name: name, index: make(map[string]int)}
}

// Members returns the module attributes in binding order.
func (m *Module) Members() ([]apitree.Member, error) {
	out := make([]apitree.Member, len(m.members))
	copy(out, m.members)
	return out, nil
}

// Get returns the value bound to name.
func (m *Module) Get(name string) (any, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.members[i].Value, true
}

// set binds name, keeping the position of an earlier binding.
func (m *Module) set(name string, value any) {
	if i, ok := m.index[name]; ok {
		m.members[i].Value = value
		return
	}
	m.index[name] = len(m.members)
	m.members = append(m.members, apitree.Member{Name: name, Value: value})
}

func (m *Module) IsPackage() bool       { return m.pkg }
func (m *Module) QualifiedName() string { return m.name }

// SourceText returns the module source. Namespace packages and external
// modules have none.
func (m *Module) SourceText() ([]byte, bool) {
	return m.src, m.hasSrc
}

// File returns the source path relative to the loader root, or "".
func (m *Module) File() string { return m.file }

// External reports whether the module lies outside the loaded source tree.
func (m *Module) External() bool { return m.external }

func (m *Module) String() string { return "<module " + m.name + ">" }

// Definition is a function or class defined by a def or class statement.
type Definition struct {
	Qual string
	Type string // "function", "class" or "external"
	Line int
}

func (d *Definition) QualifiedName() string { return d.Qual }
func (d *Definition) Kind() string          { return d.Type }

// Constant is a value bound by an assignment. It does not know where it was
// defined.
type Constant struct {
	Expr string
}

func (c *Constant) Kind() string { return "constant" }

// Feature is the placeholder a from __future__ import binds.
type Feature struct {
	Name string
}

func (f *Feature) FeatureName() string { return f.Name }
