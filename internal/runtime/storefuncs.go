package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/apitree/internal/store"
)

// storeFuncs returns the host functions that read previously built trees.
func storeFuncs(s *store.Store) map[string]any {
	return map[string]any{
		"db_query":  makeDBQueryFn(s),
		"ref_nodes": makeRefNodesFn(s),
	}
}

// makeDBQueryFn creates db_query(sql, args...), which returns a list of maps
// with one entry per column. Statements other than SELECT are rejected.
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument")
		}
		query, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("db_query: expected string, got %s", args[0].Type())
		}
		if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query.Value())), "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		rows, err := s.DB().QueryContext(ctx, query.Value(), queryArgs(args[1:])...)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		defer rows.Close()

		list, err := rowsToList(rows)
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}
		return list
	})
}

// makeRefNodesFn creates ref_nodes(name), which lists the stored nodes
// registered under a reference name across every tree.
func makeRefNodesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("ref_nodes", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.Errorf("ref_nodes: expected 1 argument, got %d", len(args))
		}
		name, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("ref_nodes: expected string, got %s", args[0].Type())
		}
		nodes, err := s.RefNodes(name.Value())
		if err != nil {
			return object.Errorf("ref_nodes: %v", err)
		}
		items := make([]object.Object, len(nodes))
		for i, n := range nodes {
			items[i] = object.NewMap(map[string]object.Object{
				"qualname":   object.NewString(n.QualName),
				"kind":       object.NewString(n.Kind),
				"rule":       object.NewString(n.Rule),
				"filename":   object.NewString(n.Filename),
				"documented": object.NewBool(n.Documented),
				"tree_id":    object.NewInt(n.TreeID),
			})
		}
		return object.NewList(items)
	})
}

func queryArgs(args []object.Object) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case *object.Int:
			out[i] = v.Value()
		case *object.Float:
			out[i] = v.Value()
		case *object.String:
			out[i] = v.Value()
		case *object.Bool:
			out[i] = v.Value()
		case *object.NilType:
			out[i] = nil
		default:
			out[i] = arg.Inspect()
		}
	}
	return out
}

func rowsToList(rows *sql.Rows) (*object.List, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	items := []object.Object{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(map[string]object.Object, len(cols))
		for i, col := range cols {
			row[col] = sqlValueToObject(values[i])
		}
		items = append(items, object.NewMap(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return object.NewList(items), nil
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	switch val := v.(type) {
	case nil:
		return object.Nil
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case bool:
		return object.NewBool(val)
	case string:
		return object.NewString(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprint(val))
	}
}
