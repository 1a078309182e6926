package apitree

import "github.com/jward/apitree/internal/store"

// Public type aliases for the internal store types returned by Builder.Store.

type Store = store.Store
type StoredTree = store.Tree
type StoredNode = store.Node
