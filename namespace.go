package apitree

// Namespace is a module- or package-like container whose members are
// documented. Any introspectable structure can satisfy it: a Python source
// tree (see internal/pysrc), a plugin registry, or a declared project layout.
// Comparable namespaces, such as pointers, are told apart by identity; other
// values are told apart by QualifiedName.
type Namespace interface {
	// Members returns the namespace's bindings in insertion order.
	Members() ([]Member, error)
	// IsPackage reports whether the namespace is a package root rather than
	// a plain module.
	IsPackage() bool
	// QualifiedName returns the fully dotted name of the namespace.
	QualifiedName() string
	// SourceText returns the source the namespace was executed from. ok is
	// false for implicit or compiled namespaces.
	SourceText() (src []byte, ok bool)
}

// Member is one binding of a Namespace.
type Member struct {
	Name  string
	Value any
}

// Qualified is implemented by values that know their definition site.
type Qualified interface {
	QualifiedName() string
}

// FeatureFlag is implemented by placeholder values that only switch on a
// language feature, such as the names bound by "from __future__ import".
type FeatureFlag interface {
	FeatureName() string
}

// Kinder lets values report a more precise kind than "value".
type Kinder interface {
	Kind() string
}

// ModuleInfo identifies the root namespace of a tree.
type ModuleInfo struct {
	// Name is the real qualified name of the root namespace.
	Name string
	// Alias is the name the documentation displays for the root. Empty means
	// Name.
	Alias string
	// Source optionally records where the namespace was loaded from.
	Source string
}

// DisplayName returns Alias when set, otherwise Name.
func (m ModuleInfo) DisplayName() string {
	if m.Alias != "" {
		return m.Alias
	}
	return m.Name
}
