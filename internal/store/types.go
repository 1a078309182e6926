package store

import "time"

// Tree is one built module tree.
type Tree struct {
	ID         int64
	Module     string
	Alias      string
	SourceRoot string
	BuiltAt    time.Time
	NodeCount  int
}

// DisplayName returns the alias, or the module name when there is none.
func (t *Tree) DisplayName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Module
}

// Node is one classified symbol of a tree. Ordinal is the pre-order position
// of the node within its tree.
type Node struct {
	ID         int64
	TreeID     int64
	ParentID   *int64
	Ordinal    int
	Depth      int
	Name       string
	QualName   string
	Kind       string
	Rule       string
	RulePath   string
	Documented bool
	Recurse    bool
	Filename   string
}

// Ref registers a node under a reference name.
type Ref struct {
	Name   string
	NodeID int64
}
