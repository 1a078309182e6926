package store

import "sync"

// TreeBatch buffers the rows of one tree in memory using fake (negative)
// IDs, so a tree can be collected while it is walked and written in a
// single transaction by ReplaceTree.
type TreeBatch struct {
	mu sync.Mutex

	Tree  Tree
	Nodes []Node
	Refs  []Ref

	nextFakeID int64 // starts at -1, decrements
}

// NewTreeBatch creates an empty batch for the tree of module shown as alias.
func NewTreeBatch(module, alias, sourceRoot string) *TreeBatch {
	return &TreeBatch{
		Tree:       Tree{Module: module, Alias: alias, SourceRoot: sourceRoot},
		nextFakeID: -1,
	}
}

func (b *TreeBatch) allocFakeID() int64 {
	id := b.nextFakeID
	b.nextFakeID--
	return id
}

// AddNode buffers n and returns its fake ID. A node's parent must be added
// before the node itself. Ordinal is assigned from insertion order.
func (b *TreeBatch) AddNode(n *Node) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	n.ID = b.allocFakeID()
	n.Ordinal = len(b.Nodes)
	b.Nodes = append(b.Nodes, *n)
	return n.ID
}

// AddRef buffers a reference from name to the node with the given fake ID.
func (b *TreeBatch) AddRef(name string, nodeID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Refs = append(b.Refs, Ref{Name: name, NodeID: nodeID})
}
