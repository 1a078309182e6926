package store

import (
	"database/sql"
	"fmt"
	"strings"
)

const nodeColumns = `n.id, n.tree_id, n.parent_id, n.ordinal, n.depth, n.name, n.qualname,
	n.kind, n.rule, n.rule_path, n.documented, n.recurse, COALESCE(n.filename, '')`

// Trees returns every stored tree with its node count, ordered by module
// and alias.
func (s *Store) Trees() ([]*Tree, error) {
	rows, err := s.db.Query(`
		SELECT t.id, t.module, t.alias, COALESCE(t.source_root, ''), t.built_at, COUNT(n.id)
		FROM trees t LEFT JOIN nodes n ON n.tree_id = t.id
		GROUP BY t.id
		ORDER BY t.module, t.alias`)
	if err != nil {
		return nil, fmt.Errorf("trees: %w", err)
	}
	defer rows.Close()
	var trees []*Tree
	for rows.Next() {
		t := &Tree{}
		if err := rows.Scan(&t.ID, &t.Module, &t.Alias, &t.SourceRoot, &t.BuiltAt, &t.NodeCount); err != nil {
			return nil, fmt.Errorf("scan tree: %w", err)
		}
		trees = append(trees, t)
	}
	return trees, rows.Err()
}

// TreeByName returns the tree whose display name (alias, or module when
// there is no alias) is name. It returns nil when no tree matches.
func (s *Store) TreeByName(name string) (*Tree, error) {
	trees, err := s.Trees()
	if err != nil {
		return nil, err
	}
	for _, t := range trees {
		if t.DisplayName() == name {
			return t, nil
		}
	}
	return nil, nil
}

// Nodes returns every node of a tree in pre-order.
func (s *Store) Nodes(treeID int64) ([]*Node, error) {
	return s.queryNodes("SELECT "+nodeColumns+" FROM nodes n WHERE n.tree_id = ? ORDER BY n.ordinal", treeID)
}

// DocumentedNodes returns the documented nodes of a tree in pre-order,
// skipping every node below an undocumented one.
func (s *Store) DocumentedNodes(treeID int64) ([]*Node, error) {
	nodes, err := s.Nodes(treeID)
	if err != nil {
		return nil, err
	}
	visible := make(map[int64]bool, len(nodes))
	var out []*Node
	for _, n := range nodes {
		if !n.Documented {
			continue
		}
		if n.ParentID != nil && !visible[*n.ParentID] {
			continue
		}
		visible[n.ID] = true
		out = append(out, n)
	}
	return out, nil
}

// RefNodes returns every node registered under name, across all trees. A
// leading "@" is ignored.
func (s *Store) RefNodes(name string) ([]*Node, error) {
	name = strings.TrimPrefix(name, "@")
	return s.queryNodes(`SELECT DISTINCT `+nodeColumns+`
		FROM refs r JOIN nodes n ON n.id = r.node_id
		WHERE r.name = ?
		ORDER BY n.tree_id, n.ordinal`, name)
}

// LookupRef returns the node registered under name when exactly one node
// is. It returns nil when the name is unknown or ambiguous.
func (s *Store) LookupRef(name string) (*Node, error) {
	nodes, err := s.RefNodes(name)
	if err != nil {
		return nil, err
	}
	if len(nodes) != 1 {
		return nil, nil
	}
	return nodes[0], nil
}

// RefNames returns every registered reference name that starts with prefix,
// sorted.
func (s *Store) RefNames(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT name FROM refs WHERE substr(name, 1, ?) = ? ORDER BY name",
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("ref names: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan ref name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) queryNodes(query string, args ...any) ([]*Node, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()
	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func scanNode(rows *sql.Rows) (*Node, error) {
	n := &Node{}
	var parent sql.NullInt64
	if err := rows.Scan(&n.ID, &n.TreeID, &parent, &n.Ordinal, &n.Depth, &n.Name, &n.QualName,
		&n.Kind, &n.Rule, &n.RulePath, &n.Documented, &n.Recurse, &n.Filename); err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}
	if parent.Valid {
		n.ParentID = &parent.Int64
	}
	return n, nil
}
