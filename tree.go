package apitree

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/jward/apitree/internal/pyast"
)

// TreeOption configures BuildTree.
type TreeOption func(*traversal)

// WithIndex registers the nodes of the tree in x instead of the process-wide
// DefaultIndex.
func WithIndex(x *RefIndex) TreeOption {
	return func(t *traversal) { t.index = x }
}

// WithImportFeed replaces the tree-sitter Python import feed.
func WithImportFeed(f ImportFeed) TreeOption {
	return func(t *traversal) { t.feed = f }
}

// WithRules replaces DefaultRules.
func WithRules(r *Rule) TreeOption {
	return func(t *traversal) { t.rules = r }
}

// WithExclude hides documented symbols for which f reports true.
func WithExclude(f ExcludeFunc) TreeOption {
	return func(t *traversal) { t.exclude = f }
}

// WithTreeLogger sets the logger used for recoverable conditions.
func WithTreeLogger(l *slog.Logger) TreeOption {
	return func(t *traversal) { t.logger = l }
}

// Node is a classified Symbol and its lazily expanded children.
type Node struct {
	symbol *Symbol
	match  Match
	parent *Node

	expanded bool
	children []*Node
	err      error

	filename memo[string]
}

// NewRoot classifies root and returns its node without expanding it. Nodes
// are registered in the index as they are expanded. Most callers want
// BuildTree instead.
func NewRoot(ctx context.Context, root Namespace, info ModuleInfo, opts ...TreeOption) (*Node, error) {
	return newTraversal(ctx, info, opts).root(root)
}

// BuildTree classifies root and expands every recursing node, so that
// classification errors surface here rather than halfway through rendering.
// The nodes are registered in the index only once the whole tree is built;
// a failed build leaves the index untouched.
func BuildTree(ctx context.Context, root Namespace, info ModuleInfo, opts ...TreeOption) (*Node, error) {
	tr := newTraversal(ctx, info, opts)
	target := tr.index
	tr.index = NewRefIndex()

	n, err := tr.root(root)
	if err != nil {
		return nil, err
	}
	if err := n.Realize(); err != nil {
		return nil, err
	}
	target.merge(tr.index)
	tr.index = target
	return n, nil
}

func newTraversal(ctx context.Context, info ModuleInfo, opts []TreeOption) *traversal {
	tr := &traversal{
		ctx:      ctx,
		info:     info,
		index:    defaultIndex,
		feed:     pyast.GlobalImports,
		rules:    DefaultRules,
		logger:   slog.Default(),
		imported: make(map[any]map[string]bool),
	}
	for _, opt := range opts {
		opt(tr)
	}
	return tr
}

func (t *traversal) root(ns Namespace) (*Node, error) {
	return newNode(newSymbol(t.info.DisplayName(), ns, nil, nil, t), nil)
}

func newNode(s *Symbol, parent *Node) (*Node, error) {
	m, err := Classify(s.tr.rules, s)
	if err != nil {
		return nil, err
	}
	if m.Documented && s.tr.exclude != nil {
		hide, err := s.tr.exclude(s.tr.ctx, s, m)
		if err != nil {
			return nil, fmt.Errorf("apitree: exclude %s: %w", s.QualName(), err)
		}
		if hide {
			m = m.excluded()
		}
	}
	n := &Node{symbol: s, match: m, parent: parent}
	s.tr.index.Add(n)
	return n, nil
}

// Symbol returns the classified symbol.
func (n *Node) Symbol() *Symbol { return n.symbol }

// Match returns the classification of the node.
func (n *Node) Match() Match { return n.match }

// Parent returns the node of the containing namespace, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Documented reports whether the node belongs in the public tree.
func (n *Node) Documented() bool { return n.match.Documented }

// Filename returns the output path of the node, relative to the output root
// and without extension.
func (n *Node) Filename() string {
	return n.filename.get(func() string {
		var parentFile string
		if n.parent != nil {
			parentFile = n.parent.Filename()
		}
		return n.match.Filename(n.symbol, parentFile)
	})
}

// Children returns one node per member of the namespace, in member order.
// Nodes that do not recurse have no children. The result, including a
// classification error, is computed once.
func (n *Node) Children() ([]*Node, error) {
	if n.expanded {
		return n.children, n.err
	}
	n.expanded = true
	if !n.match.Recurse {
		return nil, nil
	}
	ns, ok := n.symbol.value.(Namespace)
	if !ok {
		return nil, nil
	}

	tr := n.symbol.tr
	members, err := ns.Members()
	if err != nil {
		tr.logger.Warn("cannot list namespace members, treating as empty",
			"namespace", n.symbol.QualName(), "error", err)
		return nil, nil
	}

	children := make([]*Node, 0, len(members))
	for _, m := range members {
		child, err := newNode(newSymbol(m.Name, m.Value, ns, n.symbol, tr), n)
		if err != nil {
			n.err = err
			return nil, err
		}
		children = append(children, child)
	}
	n.children = children
	tr.logger.Debug("expanded namespace", "namespace", n.symbol.QualName(), "members", len(children))
	return children, nil
}

// DocumentedChildren returns the children that belong in the public tree.
func (n *Node) DocumentedChildren() ([]*Node, error) {
	children, err := n.Children()
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, c := range children {
		if c.match.Documented {
			out = append(out, c)
		}
	}
	return out, nil
}

// Realize expands every recursing node below n.
func (n *Node) Realize() error {
	children, err := n.Children()
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := c.Realize(); err != nil {
			return err
		}
	}
	return nil
}

// Walk calls fn for n and then, depth first, for every descendant,
// documented or not.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	children, err := n.Children()
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// WalkDocumented calls fn for n and then, depth first, for every documented
// descendant reachable through documented nodes.
func (n *Node) WalkDocumented(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	children, err := n.DocumentedChildren()
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := c.WalkDocumented(fn); err != nil {
			return err
		}
	}
	return nil
}

// DocumentedNodes yields n followed by the documented nodes of its
// documented children, in pre-order. The sequence can be iterated any number
// of times. Expansion errors end the sequence early; use BuildTree or
// WalkDocumented to observe them.
func (n *Node) DocumentedNodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		n.yieldDocumented(yield)
	}
}

func (n *Node) yieldDocumented(yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	children, err := n.DocumentedChildren()
	if err != nil {
		return false
	}
	for _, c := range children {
		if !c.yieldDocumented(yield) {
			return false
		}
	}
	return true
}

// String renders the documented tree below n, one "name=Rule" line per node.
func (n *Node) String() string {
	var b strings.Builder
	n.format(&b, 0)
	return b.String()
}

func (n *Node) format(b *strings.Builder, depth int) {
	fmt.Fprintf(b, "%s%s=%s\n", strings.Repeat("  ", depth), n.symbol.name, n.match)
	children, _ := n.DocumentedChildren()
	for _, c := range children {
		c.format(b, depth+1)
	}
}
