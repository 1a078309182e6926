package apitree

import (
	"context"
	"log/slog"
	"reflect"
	"strings"

	"github.com/jward/apitree/internal/pyast"
)

// ImportAlias is one (origin, local name) pair reported by an ImportFeed.
type ImportAlias = pyast.Alias

// ImportFeed lists the names bound by module-scope import statements of a
// source unit.
type ImportFeed func(ctx context.Context, src []byte) ([]ImportAlias, error)

// ExcludeFunc can hide a symbol that the rules would otherwise document.
type ExcludeFunc func(ctx context.Context, s *Symbol, m Match) (bool, error)

// traversal is shared by every Symbol and Node of one tree build.
type traversal struct {
	ctx     context.Context
	info    ModuleInfo
	index   *RefIndex
	feed    ImportFeed
	rules   *Rule
	exclude ExcludeFunc
	logger  *slog.Logger

	// imported caches the names bound by imports, per namespaceKey.
	imported map[any]map[string]bool
}

// qualifiedKey stands in for a namespace whose dynamic value cannot be
// compared.
type qualifiedKey struct{ name string }

// namespaceKey identifies ns. Comparable values, pointers included, are
// their own key; any other namespace is identified by its qualified name.
func namespaceKey(ns Namespace) any {
	if reflect.ValueOf(ns).Comparable() {
		return ns
	}
	return qualifiedKey{ns.QualifiedName()}
}

func (t *traversal) importedNames(ns Namespace) map[string]bool {
	key := namespaceKey(ns)
	if names, ok := t.imported[key]; ok {
		return names
	}
	names := make(map[string]bool)
	t.imported[key] = names

	src, ok := ns.SourceText()
	if !ok {
		return names
	}
	aliases, err := t.feed(t.ctx, src)
	if err != nil {
		t.logger.Warn("import feed failed, assuming no imports",
			"namespace", ns.QualifiedName(), "error", err)
		return names
	}
	for _, a := range aliases {
		names[a.Name] = true
	}
	return names
}

// memo holds a value computed at most once.
type memo[T any] struct {
	done bool
	v    T
}

func (m *memo[T]) get(compute func() T) T {
	if !m.done {
		m.v = compute()
		m.done = true
	}
	return m.v
}

// Symbol describes one attribute discovered while traversing a namespace.
// Derived facts are computed lazily and cached for the Symbol's lifetime.
type Symbol struct {
	name      string
	value     any
	container Namespace // nil for the root
	parent    *Symbol   // symbol of the container itself; nil for the root
	tr        *traversal

	isImported memo[bool]
	isPackage  memo[bool]
	belongs    memo[bool]
	revisits   memo[bool]
	qualName   memo[string]
	rawName    memo[string]
}

func newSymbol(name string, value any, container Namespace, parent *Symbol, tr *traversal) *Symbol {
	return &Symbol{
		name:      name,
		value:     value,
		container: container,
		parent:    parent,
		tr:        tr,
	}
}

// Name returns the local binding name.
func (s *Symbol) Name() string { return s.name }

// Value returns the bound object.
func (s *Symbol) Value() any { return s.value }

// Container returns the namespace whose members produced s.
func (s *Symbol) Container() Namespace { return s.container }

// Parent returns the symbol of the containing namespace.
func (s *Symbol) Parent() *Symbol { return s.parent }

// Info returns the root description of the traversal.
func (s *Symbol) Info() ModuleInfo { return s.tr.info }

// IsRoot reports whether s is the synthetic root symbol.
func (s *Symbol) IsRoot() bool { return s.parent == nil }

// IsModule reports whether the value is itself a namespace.
func (s *Symbol) IsModule() bool {
	_, ok := s.value.(Namespace)
	return ok
}

// IsImported reports whether the name was bound in its container by an
// import statement. Containers without source never import anything.
func (s *Symbol) IsImported() bool {
	return s.isImported.get(func() bool {
		if s.container == nil {
			return false
		}
		return s.tr.importedNames(s.container)[s.name]
	})
}

// IsPackage reports whether the value is a package root.
func (s *Symbol) IsPackage() bool {
	return s.isPackage.get(func() bool {
		ns, ok := s.value.(Namespace)
		return ok && ns.IsPackage()
	})
}

// BelongsToNamespace reports whether the value's qualified name lies inside
// the root namespace being documented.
func (s *Symbol) BelongsToNamespace() bool {
	return s.belongs.get(func() bool {
		q, ok := s.value.(Qualified)
		if !ok {
			return false
		}
		name, root := q.QualifiedName(), s.tr.info.Name
		return name == root || strings.HasPrefix(name, root+".")
	})
}

// Revisits reports whether the value is a namespace that is already being
// expanded further up the chain of parents.
func (s *Symbol) Revisits() bool {
	return s.revisits.get(func() bool {
		ns, ok := s.value.(Namespace)
		if !ok {
			return false
		}
		key := namespaceKey(ns)
		for p := s.parent; p != nil; p = p.parent {
			if pns, ok := p.value.(Namespace); ok && namespaceKey(pns) == key {
				return true
			}
		}
		return false
	})
}

// QualName returns the dotted path of s from the displayed root name.
func (s *Symbol) QualName() string {
	return s.qualName.get(func() string {
		if s.parent == nil {
			return s.name
		}
		return s.parent.QualName() + "." + s.name
	})
}

// QualNameNoAlias returns the dotted path of s from the real root name.
func (s *Symbol) QualNameNoAlias() string {
	return s.rawName.get(func() string {
		if s.parent == nil {
			return s.tr.info.Name
		}
		return s.parent.QualNameNoAlias() + "." + s.name
	})
}

// CanonicalName returns the name of the value at its definition site, or
// QualNameNoAlias when the value does not know where it was defined.
func (s *Symbol) CanonicalName() string {
	if q, ok := s.value.(Qualified); ok {
		if name := q.QualifiedName(); name != "" {
			return name
		}
	}
	return s.QualNameNoAlias()
}

// Kind returns a short description of the value: package, module, feature,
// the value's own Kind when it implements Kinder, or "value".
func (s *Symbol) Kind() string {
	switch v := s.value.(type) {
	case Namespace:
		if v.IsPackage() {
			return "package"
		}
		return "module"
	case FeatureFlag:
		return "feature"
	case Kinder:
		return v.Kind()
	}
	return "value"
}

// RefNames returns the distinct names s is registered under in a RefIndex:
// the qualified name, its last component, the alias-free name and the
// canonical definition-site name.
func (s *Symbol) RefNames() []string {
	qual := s.QualName()
	candidates := []string{qual}
	if i := strings.LastIndexByte(qual, '.'); i >= 0 {
		candidates = append(candidates, qual[i+1:])
	}
	candidates = append(candidates, s.QualNameNoAlias(), s.CanonicalName())

	seen := make(map[string]bool, len(candidates))
	names := candidates[:0]
	for _, name := range candidates {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func (s *Symbol) String() string {
	return s.QualName()
}
