package apitree

import (
	"sort"
	"strings"
)

// RefIndex maps reference names to the nodes that define them. It only
// grows: entries accumulate across every tree built with it. RefIndex is not
// safe for concurrent use.
type RefIndex struct {
	refs map[string][]*Node
}

// NewRefIndex returns an empty index.
func NewRefIndex() *RefIndex {
	return &RefIndex{refs: make(map[string][]*Node)}
}

var defaultIndex = NewRefIndex()

// DefaultIndex returns the process-wide index used by BuildTree unless
// WithIndex is given.
func DefaultIndex() *RefIndex {
	return defaultIndex
}

// Add registers n under every name in n.Symbol().RefNames().
func (x *RefIndex) Add(n *Node) {
	for _, name := range n.symbol.RefNames() {
		x.refs[name] = append(x.refs[name], n)
	}
}

// merge appends every registration of o, keeping its order per name.
func (x *RefIndex) merge(o *RefIndex) {
	for name, nodes := range o.refs {
		x.refs[name] = append(x.refs[name], nodes...)
	}
}

// Nodes returns every node registered under name.
func (x *RefIndex) Nodes(name string) []*Node {
	return x.refs[name]
}

// Resolve returns the node registered under name when there is exactly one.
// A leading "@", as in decorator references, is ignored.
func (x *RefIndex) Resolve(name string) (*Node, bool) {
	nodes := x.refs[strings.TrimPrefix(name, "@")]
	if len(nodes) != 1 {
		return nil, false
	}
	return nodes[0], true
}

// Lookup returns the output path of the node registered under name. ok is
// false when no node or more than one node is registered.
func (x *RefIndex) Lookup(name string) (string, bool) {
	n, ok := x.Resolve(name)
	if !ok {
		return "", false
	}
	return n.Filename(), true
}

// Names returns every registered name, sorted.
func (x *RefIndex) Names() []string {
	names := make([]string, 0, len(x.refs))
	for name := range x.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered names.
func (x *RefIndex) Len() int {
	return len(x.refs)
}

// LookupReference resolves name against DefaultIndex.
func LookupReference(name string) (string, bool) {
	return defaultIndex.Lookup(name)
}
