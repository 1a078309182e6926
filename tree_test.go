package apitree

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/apitree/internal/pyast"
)

type classified struct {
	rule       string
	documented bool
	recurse    bool
}

func TestBuildTree_Classification(t *testing.T) {
	t.Parallel()
	root, _ := buildFixture(t, ModuleInfo{Name: "pkg"})

	sub := child(t, root, "sub")
	mod := child(t, sub, "mod")
	core := child(t, root, "core")

	tests := []struct {
		node *Node
		want classified
	}{
		{root, classified{RootModule, true, true}},
		{child(t, root, "__name__"), classified{MagicModuleAttribute, false, false}},
		{child(t, root, "__doc__"), classified{MagicModuleAttribute, false, false}},
		{child(t, root, "annotations"), classified{FutureAnnotationPlaceholder, false, false}},
		{child(t, root, "os"), classified{ExternalModule, false, false}},
		{sub, classified{ApiPackage, true, true}},
		{mod, classified{ApiModule, true, true}},
		{child(t, mod, "deep"), classified{ApiModule, false, false}},
		{child(t, mod, "Model"), classified{ImportedValue, false, false}},
		{child(t, mod, "Thing"), classified{DocumentedValue, true, false}},
		{child(t, sub, "pkg"), classified{CircularModule, true, false}},
		{child(t, sub, "extra"), classified{ImplicitlyImportedModule, false, false}},
		{child(t, root, "_internal"), classified{PrivateModule, false, false}},
		{core, classified{ApiModule, true, true}},
		{child(t, core, "Model"), classified{DocumentedValue, true, false}},
		{child(t, root, "Model"), classified{ImportedValue, true, false}},
		{child(t, root, "VERSION"), classified{DocumentedValue, true, false}},
		{child(t, root, "_helper"), classified{PrivateValue, false, false}},
	}
	for _, tt := range tests {
		m := tt.node.Match()
		got := classified{m.Rule.Name, m.Documented, m.Recurse}
		assert.Equal(t, tt.want, got, tt.node.Symbol().QualName())
	}
}

func TestBuildTree_Filenames(t *testing.T) {
	t.Parallel()
	root, _ := buildFixture(t, ModuleInfo{Name: "pkg"})

	var got []string
	for n := range root.DocumentedNodes() {
		got = append(got, n.Symbol().QualName()+" "+n.Filename())
	}
	assert.Equal(t, []string{
		"pkg pkg/index",
		"pkg.sub pkg/sub/index",
		"pkg.sub.mod pkg/sub/mod/index",
		"pkg.sub.mod.Thing pkg/sub/mod/Thing",
		"pkg.sub.pkg pkg/sub/pkg/index",
		"pkg.core pkg/core/index",
		"pkg.core.Model pkg/core/Model",
		"pkg.core.helper pkg/core/helper",
		"pkg.Model pkg/Model",
		"pkg.VERSION pkg/VERSION",
	}, got)
}

func TestBuildTree_AliasDrivesDisplayPaths(t *testing.T) {
	t.Parallel()
	root, idx := buildFixture(t, ModuleInfo{Name: "pkg", Alias: "p"})

	assert.Equal(t, "p", root.Symbol().Name())
	assert.Equal(t, "p/index", root.Filename())

	model := child(t, root, "Model")
	assert.Equal(t, "p.Model", model.Symbol().QualName())
	assert.Equal(t, "pkg.Model", model.Symbol().QualNameNoAlias())
	assert.Equal(t, "pkg.core.Model", model.Symbol().CanonicalName())

	// Sub-namespaces still belong to the real root name.
	assert.Equal(t, ApiPackage, child(t, root, "sub").Match().Rule.Name)

	for _, name := range []string{"p.Model", "pkg.Model"} {
		file, ok := idx.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, "p/Model", file)
	}
}

func TestBuildTree_Deterministic(t *testing.T) {
	t.Parallel()
	snapshot := func() []string {
		root, _ := buildFixture(t, ModuleInfo{Name: "pkg"})
		var out []string
		var walk func(n *Node)
		walk = func(n *Node) {
			m := n.Match()
			out = append(out, n.Symbol().QualName()+"|"+m.Path()+"|"+n.Filename())
			children, err := n.Children()
			require.NoError(t, err)
			for _, c := range children {
				walk(c)
			}
		}
		walk(root)
		return out
	}
	assert.Equal(t, snapshot(), snapshot())
}

func TestClassify_Idempotent(t *testing.T) {
	t.Parallel()
	root, _ := buildFixture(t, ModuleInfo{Name: "pkg"})
	s := child(t, root, "Model").Symbol()

	first, err := Classify(DefaultRules, s)
	require.NoError(t, err)
	second, err := Classify(DefaultRules, s)
	require.NoError(t, err)
	assert.Equal(t, first.Path(), second.Path())
	assert.Equal(t, first.Documented, second.Documented)
	assert.Equal(t, first.Recurse, second.Recurse)
	assert.Equal(t, "Any/Value/PublicValue/ImportedValue", first.Path())
}

func TestChildren_NonRecursingNodeHasNone(t *testing.T) {
	t.Parallel()
	root, _ := buildFixture(t, ModuleInfo{Name: "pkg"})

	for _, name := range []string{"os", "VERSION", "_internal"} {
		children, err := child(t, root, name).Children()
		require.NoError(t, err)
		assert.Empty(t, children, name)
	}
	circular := child(t, child(t, root, "sub"), "pkg")
	children, err := circular.Children()
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestChildren_PreservesMemberOrder(t *testing.T) {
	t.Parallel()
	root, _ := buildFixture(t, ModuleInfo{Name: "pkg"})

	children, err := root.Children()
	require.NoError(t, err)
	var names []string
	for _, c := range children {
		names = append(names, c.Symbol().Name())
	}
	assert.Equal(t, []string{
		"__name__", "__doc__", "annotations", "os", "sub",
		"_internal", "core", "Model", "VERSION", "_helper",
	}, names)

	again, err := root.Children()
	require.NoError(t, err)
	assert.Same(t, children[0], again[0])
}

func TestChildren_UnenumerableNamespaceIsEmpty(t *testing.T) {
	t.Parallel()
	broken := newPackage("pkg", "from pkg import sub\n")
	sub := newPackage("pkg.sub", "")
	sub.err = errors.New("permission denied")
	broken.add("sub", sub)

	root, err := BuildTree(context.Background(), broken, ModuleInfo{Name: "pkg"}, WithIndex(NewRefIndex()))
	require.NoError(t, err)

	subNode := child(t, root, "sub")
	assert.Equal(t, ApiPackage, subNode.Match().Rule.Name)
	children, err := subNode.Children()
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestSymbol_MissingSourceMeansNoImports(t *testing.T) {
	t.Parallel()
	implicit := &fakeModule{name: "pkg", pkg: true} // namespace package, no source
	implicit.add("core", newModule("pkg.core", "")).add("VERSION", "2")

	root, err := BuildTree(context.Background(), implicit, ModuleInfo{Name: "pkg"}, WithIndex(NewRefIndex()))
	require.NoError(t, err)

	core := child(t, root, "core")
	assert.False(t, core.Symbol().IsImported())
	assert.Equal(t, ImplicitlyImportedModule, core.Match().Rule.Name)
	assert.Equal(t, DocumentedValue, child(t, root, "VERSION").Match().Rule.Name)
}

func TestSymbol_FeedErrorMeansNoImports(t *testing.T) {
	t.Parallel()
	failing := func(context.Context, []byte) ([]ImportAlias, error) {
		return nil, errors.New("boom")
	}
	root, err := BuildTree(context.Background(), newFixture(), ModuleInfo{Name: "pkg"},
		WithIndex(NewRefIndex()), WithImportFeed(failing))
	require.NoError(t, err)

	assert.Equal(t, ImplicitlyImportedModule, child(t, root, "sub").Match().Rule.Name)
	assert.Equal(t, DocumentedValue, child(t, root, "Model").Match().Rule.Name)
}

func TestSymbol_FeedRunsOncePerContainer(t *testing.T) {
	t.Parallel()
	calls := map[string]int{}
	counting := func(ctx context.Context, src []byte) ([]ImportAlias, error) {
		calls[string(src)]++
		return nil, nil
	}
	_, err := BuildTree(context.Background(), newFixture(), ModuleInfo{Name: "pkg"},
		WithIndex(NewRefIndex()), WithImportFeed(counting))
	require.NoError(t, err)
	for src, n := range calls {
		assert.Equal(t, 1, n, src)
	}
}

// valueModule is a Namespace held by value; its slice field makes it
// incomparable.
type valueModule struct {
	name    string
	pkg     bool
	source  string
	members []Member
}

func (m valueModule) Members() ([]Member, error) { return m.members, nil }
func (m valueModule) IsPackage() bool            { return m.pkg }
func (m valueModule) QualifiedName() string      { return m.name }
func (m valueModule) SourceText() ([]byte, bool) { return []byte(m.source), true }

func TestBuildTree_IncomparableNamespaces(t *testing.T) {
	t.Parallel()
	root := valueModule{name: "vpkg", pkg: true, source: "from vpkg import sub\n"}
	sub := valueModule{name: "vpkg.sub", pkg: true, source: "import vpkg\n",
		members: []Member{{Name: "vpkg", Value: root}}}
	root.members = []Member{{Name: "sub", Value: sub}, {Name: "VERSION", Value: "1"}}

	calls := 0
	counting := func(ctx context.Context, src []byte) ([]ImportAlias, error) {
		calls++
		return pyast.GlobalImports(ctx, src)
	}
	tree, err := BuildTree(context.Background(), root, ModuleInfo{Name: "vpkg"},
		WithIndex(NewRefIndex()), WithImportFeed(counting))
	require.NoError(t, err)

	subNode := child(t, tree, "sub")
	assert.Equal(t, ApiPackage, subNode.Match().Rule.Name)
	assert.Equal(t, CircularModule, child(t, subNode, "vpkg").Match().Rule.Name)
	assert.Equal(t, DocumentedValue, child(t, tree, "VERSION").Match().Rule.Name)
	assert.Equal(t, 2, calls)
}

func TestBelongsToNamespace_RequiresDottedPrefix(t *testing.T) {
	t.Parallel()
	root := newPackage("pkg", "import pkg2\nfrom pkg import tools\n").
		add("pkg2", newPackage("pkg2", "")).
		add("tools", newModule("pkg.tools", ""))

	tree, err := BuildTree(context.Background(), root, ModuleInfo{Name: "pkg"}, WithIndex(NewRefIndex()))
	require.NoError(t, err)
	assert.Equal(t, ExternalModule, child(t, tree, "pkg2").Match().Rule.Name)
	assert.Equal(t, ApiModule, child(t, tree, "tools").Match().Rule.Name)
}

func TestReExport_OnlyAtPackageBoundary(t *testing.T) {
	t.Parallel()
	value := &fakeDef{qual: "lib.impl.func", kind: "function"}
	plain := newModule("lib.api", "from lib.impl import func\n").add("func", value)
	pkg := newPackage("lib", "from lib.impl import func\nfrom lib import api\n").
		add("func", value).
		add("api", plain)

	tree, err := BuildTree(context.Background(), pkg, ModuleInfo{Name: "lib"}, WithIndex(NewRefIndex()))
	require.NoError(t, err)

	atPackage := child(t, tree, "func")
	assert.Equal(t, ImportedValue, atPackage.Match().Rule.Name)
	assert.True(t, atPackage.Documented())

	api := child(t, tree, "api")
	require.True(t, api.Match().Recurse)
	inModule := child(t, api, "func")
	assert.Equal(t, ImportedValue, inModule.Match().Rule.Name)
	assert.False(t, inModule.Documented())
}

func TestPrivateNames_NeverDocumented(t *testing.T) {
	t.Parallel()
	root := newPackage("pkg", "from pkg import _impl\nfrom pkg._impl import _fn\n").
		add("_impl", newPackage("pkg._impl", "")).
		add("_fn", &fakeDef{qual: "pkg._impl._fn"}).
		add("_CONST", 3)

	tree, err := BuildTree(context.Background(), root, ModuleInfo{Name: "pkg"}, WithIndex(NewRefIndex()))
	require.NoError(t, err)
	children, err := tree.Children()
	require.NoError(t, err)
	require.Len(t, children, 3)
	for _, c := range children {
		assert.False(t, c.Documented(), c.Symbol().QualName())
	}
}

func TestBuildTree_ExcludeHidesDocumentedSymbols(t *testing.T) {
	t.Parallel()
	var seen []string
	exclude := func(_ context.Context, s *Symbol, m Match) (bool, error) {
		seen = append(seen, s.QualName())
		return s.Name() == "VERSION" || s.Name() == "core", nil
	}
	root, idx := buildFixture(t, ModuleInfo{Name: "pkg"}, WithExclude(exclude))

	version := child(t, root, "VERSION")
	assert.Equal(t, Excluded, version.Match().Rule.Name)
	assert.False(t, version.Documented())
	assert.Equal(t, "pkg/VERSION", version.Filename())

	core := child(t, root, "core")
	assert.False(t, core.Match().Recurse)
	children, err := core.Children()
	require.NoError(t, err)
	assert.Empty(t, children)

	assert.NotContains(t, seen, "pkg._helper", "undocumented symbols are not offered")
	_, ok := idx.Lookup("pkg.core.helper")
	assert.False(t, ok)
}

func TestBuildTree_ExcludeErrorIsFatal(t *testing.T) {
	t.Parallel()
	exclude := func(context.Context, *Symbol, Match) (bool, error) {
		return false, errors.New("bad expression")
	}
	_, err := BuildTree(context.Background(), newFixture(), ModuleInfo{Name: "pkg"},
		WithIndex(NewRefIndex()), WithExclude(exclude))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad expression")
}

func TestBuildTree_FailedBuildLeavesIndexUntouched(t *testing.T) {
	t.Parallel()
	idx := NewRefIndex()
	exclude := func(_ context.Context, s *Symbol, _ Match) (bool, error) {
		if s.Name() == "Thing" {
			return false, errors.New("bad expression")
		}
		return false, nil
	}
	_, err := BuildTree(context.Background(), newFixture(), ModuleInfo{Name: "pkg"},
		WithIndex(idx), WithExclude(exclude))
	require.Error(t, err)
	assert.Zero(t, idx.Len())

	_, err = BuildTree(context.Background(), newFixture(), ModuleInfo{Name: "pkg"}, WithIndex(idx))
	require.NoError(t, err)
	file, ok := idx.Lookup("pkg.VERSION")
	require.True(t, ok)
	assert.Equal(t, "pkg/VERSION", file)
}

func TestDocumentedNodes_Restartable(t *testing.T) {
	t.Parallel()
	root, _ := buildFixture(t, ModuleInfo{Name: "pkg"})

	collect := func() []*Node {
		var out []*Node
		for n := range root.DocumentedNodes() {
			out = append(out, n)
		}
		return out
	}
	first := collect()
	assert.Equal(t, first, collect())

	var firstTwo []string
	for n := range root.DocumentedNodes() {
		firstTwo = append(firstTwo, n.Symbol().QualName())
		if len(firstTwo) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"pkg", "pkg.sub"}, firstTwo)
}

func TestWalkDocumented_StopsOnError(t *testing.T) {
	t.Parallel()
	root, _ := buildFixture(t, ModuleInfo{Name: "pkg"})
	stop := errors.New("stop")

	var visited int
	err := root.WalkDocumented(func(n *Node) error {
		visited++
		if n.Symbol().Name() == "mod" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 3, visited)
}

func TestNode_String(t *testing.T) {
	t.Parallel()
	root, _ := buildFixture(t, ModuleInfo{Name: "pkg"})
	sub := child(t, root, "sub")
	assert.Equal(t, `sub=ApiPackage
  mod=ApiModule
    Thing=DocumentedValue
  pkg=CircularModule
`, sub.String())
}
