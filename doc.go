// Package apitree decides which symbols of a Python package belong in its
// public API documentation, and where each one is written.
//
// # Pipeline
//
// A tree is built in two phases:
//
//  1. Classify: starting from a root [Namespace], every member is wrapped in
//     a [Symbol] and matched against a refinement tree of [Rule] values.
//     The matched leaf says whether the symbol is documented, whether its
//     own members are visited, and which output path it gets.
//
//  2. Store: the [Builder] flattens the realized tree in pre-order and
//     replaces the stored tree of that module in SQLite, together with every
//     reference name each node answers to.
//
// # Usage
//
// Load a package, build its tree and resolve references:
//
//	b, err := apitree.New("apitree.db", apitree.WithExcludes(`name == "VERSION"`))
//	if err != nil { ... }
//	defer b.Close()
//
//	loader, err := pysrc.Open(ctx, "path/to/src")
//	mod, err := loader.Import("shop")
//	root, err := b.Build(ctx, mod, apitree.ModuleInfo{Name: "shop"})
//
//	for n := range root.DocumentedNodes() {
//		fmt.Println(n.Symbol().QualName(), n.Filename())
//	}
//	path, ok, err := b.Lookup("shop.Order")
//
// # Rules
//
// [DefaultRules] separates modules from values, then public from private
// names, then names defined in the package from imported ones. Siblings must
// be mutually exclusive ([ConflictError]) and classification must end on a
// concrete leaf ([CoverageError]). Attributes left unset on a rule inherit
// from its parent.
//
// # References
//
// A [RefIndex] registers each node under its qualified name, its last name
// component, its name with the alias undone, and the name of the object it
// points at. A reference resolves only when exactly one node answers to it.
//
// # Concurrency
//
// Trees, symbols and a [RefIndex] are single-goroutine values: memoized
// facts are filled in on first use without locking. Build trees for
// different packages on separate goroutines only with separate indexes.
package apitree
