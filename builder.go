package apitree

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jward/apitree/internal/runtime"
	"github.com/jward/apitree/internal/store"
)

// Builder builds module trees, filters them through Risor exclusion
// expressions and persists them, with their reference names, to SQLite.
type Builder struct {
	store   *store.Store
	runtime *runtime.Runtime
	index   *RefIndex
	shared  bool
	rules   *Rule

	// trees holds the index of the last successful build per module and
	// alias, in first-build order.
	trees     map[treeKey]*RefIndex
	treeOrder []treeKey

	logger  *slog.Logger

	excludes       []string
	excludeScripts []string
	scriptsDir     string
	scriptsFS      fs.FS
}

type treeKey struct{ name, alias string }

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used by the Builder and the trees it builds.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = l
	}
}

// WithExcludes adds Risor expressions that hide otherwise documented
// symbols.
func WithExcludes(exprs ...string) Option {
	return func(b *Builder) {
		b.excludes = append(b.excludes, exprs...)
	}
}

// WithExcludeScripts adds .risor files whose source is used as an exclusion
// expression.
func WithExcludeScripts(paths ...string) Option {
	return func(b *Builder) {
		b.excludeScripts = append(b.excludeScripts, paths...)
	}
}

// WithScriptsDir resolves Risor imports and relative script paths against
// dir.
func WithScriptsDir(dir string) Option {
	return func(b *Builder) {
		b.scriptsDir = dir
	}
}

// WithScriptsFS resolves Risor imports and scripts against fsys instead of
// the disk. This enables embedding scripts via go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(b *Builder) {
		b.scriptsFS = fsys
	}
}

// WithRefIndex registers the nodes of every build in x, which then
// accumulates across rebuilds. By default a rebuild of a module replaces its
// previous nodes in Index.
func WithRefIndex(x *RefIndex) Option {
	return func(b *Builder) {
		b.index = x
		b.shared = true
	}
}

// WithRuleSet classifies with r instead of DefaultRules.
func WithRuleSet(r *Rule) Option {
	return func(b *Builder) {
		b.rules = r
	}
}

// New creates a Builder backed by a SQLite database at dbPath. Exclusion
// expressions are checked here, so a broken expression fails before any
// tree is built.
func New(dbPath string, opts ...Option) (*Builder, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("apitree: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("apitree: migrate: %w", err)
	}

	b := &Builder{
		store:  s,
		rules:  DefaultRules,
		logger: slog.Default(),
		trees:  make(map[treeKey]*RefIndex),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.index == nil {
		b.index = NewRefIndex()
	}

	rtOpts := []runtime.RuntimeOption{runtime.WithLogger(b.logger), runtime.WithStore(s)}
	if b.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(b.scriptsFS))
	} else if b.scriptsDir != "" {
		rtOpts = append(rtOpts, runtime.WithScriptsDir(b.scriptsDir))
	}
	b.runtime = runtime.NewRuntime(b.excludes, rtOpts...)
	for _, path := range b.excludeScripts {
		if err := b.runtime.AddScript(path); err != nil {
			s.Close()
			return nil, fmt.Errorf("apitree: %w", err)
		}
	}
	if err := b.runtime.Check(context.Background()); err != nil {
		s.Close()
		return nil, fmt.Errorf("apitree: %w", err)
	}
	return b, nil
}

// Close releases the Builder's database resources.
func (b *Builder) Close() error {
	return b.store.Close()
}

// Store returns the underlying Store for direct access.
func (b *Builder) Store() *Store {
	return b.store
}

// Index returns the in-memory reference index of the latest tree of every
// module built so far, or the index given to WithRefIndex.
func (b *Builder) Index() *RefIndex {
	return b.index
}

// Build classifies root and every namespace it recurses into, then
// replaces any stored tree for the same module and alias with the result.
// Nothing is persisted when classification fails.
func (b *Builder) Build(ctx context.Context, root Namespace, info ModuleInfo) (*Node, error) {
	index := b.index
	if !b.shared {
		index = NewRefIndex()
	}
	opts := []TreeOption{
		WithIndex(index),
		WithRules(b.rules),
		WithTreeLogger(b.logger),
	}
	if len(b.runtime.Expressions()) > 0 {
		opts = append(opts, WithExclude(b.exclude))
	}

	tree, err := BuildTree(ctx, root, info, opts...)
	if err != nil {
		return nil, fmt.Errorf("apitree: build %s: %w", info.Name, err)
	}

	batch, err := b.batch(tree, info)
	if err != nil {
		return nil, fmt.Errorf("apitree: build %s: %w", info.Name, err)
	}
	treeID, err := b.store.ReplaceTree(batch)
	if err != nil {
		return nil, fmt.Errorf("apitree: store %s: %w", info.Name, err)
	}
	if !b.shared {
		b.replaceIndex(treeKey{info.Name, info.Alias}, index)
	}

	b.logger.Info("tree built",
		"module", info.Name,
		"alias", info.Alias,
		"tree_id", treeID,
		"nodes", len(batch.Nodes),
		"refs", len(batch.Refs))
	return tree, nil
}

// batch flattens the realized tree in pre-order.
func (b *Builder) batch(tree *Node, info ModuleInfo) (*store.TreeBatch, error) {
	batch := store.NewTreeBatch(info.Name, info.Alias, info.Source)
	ids := make(map[*Node]int64)
	depths := make(map[*Node]int)

	err := tree.Walk(func(n *Node) error {
		row := &store.Node{
			Name:       n.symbol.Name(),
			QualName:   n.symbol.QualName(),
			Kind:       n.symbol.Kind(),
			Rule:       n.match.Rule.Name,
			RulePath:   n.match.Path(),
			Documented: n.match.Documented,
			Recurse:    n.match.Recurse,
			Filename:   n.Filename(),
		}
		if n.parent != nil {
			parentID, ok := ids[n.parent]
			if !ok {
				return fmt.Errorf("node %s visited before its parent", row.QualName)
			}
			row.ParentID = &parentID
			row.Depth = depths[n.parent] + 1
		}
		id := batch.AddNode(row)
		ids[n] = id
		depths[n] = row.Depth
		for _, name := range n.symbol.RefNames() {
			batch.AddRef(name, id)
		}
		return nil
	})
	return batch, err
}

func (b *Builder) exclude(ctx context.Context, s *Symbol, m Match) (bool, error) {
	var container string
	if s.Parent() != nil {
		container = s.Parent().QualName()
	}
	return b.runtime.Exclude(ctx, runtime.Symbol{
		Name:       s.Name(),
		QualName:   s.QualName(),
		Kind:       s.Kind(),
		Rule:       m.Rule.Name,
		RulePath:   m.Path(),
		Container:  container,
		IsImported: s.IsImported(),
		IsPackage:  s.IsPackage(),
		IsModule:   s.IsModule(),
	})
}

// Lookup resolves a reference name against every stored tree and returns
// the output path of the single node registered under it.
func (b *Builder) Lookup(name string) (string, bool, error) {
	n, err := b.store.LookupRef(name)
	if err != nil {
		return "", false, fmt.Errorf("apitree: lookup %s: %w", name, err)
	}
	if n == nil {
		return "", false, nil
	}
	return n.Filename, true, nil
}

// replaceIndex swaps the nodes of one module for those of its latest build.
func (b *Builder) replaceIndex(key treeKey, index *RefIndex) {
	if _, ok := b.trees[key]; !ok {
		b.treeOrder = append(b.treeOrder, key)
	}
	b.trees[key] = index

	merged := NewRefIndex()
	for _, k := range b.treeOrder {
		merged.merge(b.trees[k])
	}
	b.index = merged
}
