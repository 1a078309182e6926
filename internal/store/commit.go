package store

import (
	"database/sql"
	"fmt"
	"time"
)

// ReplaceTree writes all buffered rows of batch within a single transaction,
// first removing any tree previously stored for the same module and alias.
// Fake (negative) IDs are remapped to the IDs assigned by SQLite. It returns
// the ID of the new tree.
func (s *Store) ReplaceTree(batch *TreeBatch) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("replace tree: begin: %w", err)
	}
	defer tx.Rollback()

	t := batch.Tree
	if err := deleteTreeTx(tx, t.Module, t.Alias); err != nil {
		return 0, fmt.Errorf("replace tree: %w", err)
	}

	if t.BuiltAt.IsZero() {
		t.BuiltAt = time.Now().UTC().Truncate(time.Second)
	}
	res, err := tx.Exec(
		"INSERT INTO trees (module, alias, source_root, built_at) VALUES (?, ?, ?, ?)",
		t.Module, t.Alias, t.SourceRoot, t.BuiltAt,
	)
	if err != nil {
		return 0, fmt.Errorf("replace tree: insert tree: %w", err)
	}
	treeID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("replace tree: last insert id: %w", err)
	}

	fakeToReal := make(map[int64]int64, len(batch.Nodes))
	for _, n := range batch.Nodes {
		if n.ParentID != nil && *n.ParentID < 0 {
			realID, ok := fakeToReal[*n.ParentID]
			if !ok {
				return 0, fmt.Errorf("replace tree: node %q added before its parent", n.QualName)
			}
			n.ParentID = &realID
		}
		n.TreeID = treeID
		realID, err := insertNodeTx(tx, &n)
		if err != nil {
			return 0, fmt.Errorf("replace tree: node %q: %w", n.QualName, err)
		}
		fakeToReal[n.ID] = realID
	}

	for _, r := range batch.Refs {
		nodeID := r.NodeID
		if nodeID < 0 {
			nodeID = fakeToReal[nodeID]
		}
		if _, err := tx.Exec("INSERT INTO refs (name, node_id) VALUES (?, ?)", r.Name, nodeID); err != nil {
			return 0, fmt.Errorf("replace tree: ref %q: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("replace tree: commit: %w", err)
	}
	return treeID, nil
}

func insertNodeTx(tx *sql.Tx, n *Node) (int64, error) {
	res, err := tx.Exec(
		`INSERT INTO nodes (tree_id, parent_id, ordinal, depth, name, qualname, kind,
			rule, rule_path, documented, recurse, filename)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.TreeID, n.ParentID, n.Ordinal, n.Depth, n.Name, n.QualName, n.Kind,
		n.Rule, n.RulePath, n.Documented, n.Recurse, n.Filename,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
