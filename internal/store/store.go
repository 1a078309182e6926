package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for built API trees and their
// reference index.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS trees (
  id              INTEGER PRIMARY KEY,
  module          TEXT NOT NULL,
  alias           TEXT NOT NULL DEFAULT '',
  source_root     TEXT,
  built_at        TIMESTAMP,
  UNIQUE (module, alias)
);

CREATE TABLE IF NOT EXISTS nodes (
  id              INTEGER PRIMARY KEY,
  tree_id         INTEGER NOT NULL REFERENCES trees(id),
  parent_id       INTEGER REFERENCES nodes(id),
  ordinal         INTEGER NOT NULL,
  depth           INTEGER NOT NULL,
  name            TEXT NOT NULL,
  qualname        TEXT NOT NULL,
  kind            TEXT NOT NULL,
  rule            TEXT NOT NULL,
  rule_path       TEXT NOT NULL,
  documented      BOOLEAN NOT NULL DEFAULT FALSE,
  recurse         BOOLEAN NOT NULL DEFAULT FALSE,
  filename        TEXT
);

CREATE TABLE IF NOT EXISTS refs (
  id              INTEGER PRIMARY KEY,
  name            TEXT NOT NULL,
  node_id         INTEGER NOT NULL REFERENCES nodes(id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_tree ON nodes(tree_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
CREATE INDEX IF NOT EXISTS idx_nodes_qualname ON nodes(qualname);
CREATE INDEX IF NOT EXISTS idx_refs_name ON refs(name);
CREATE INDEX IF NOT EXISTS idx_refs_node ON refs(node_id);
`

// DeleteTree transactionally removes a tree, its nodes and their refs.
// Deleting a tree that does not exist is not an error.
func (s *Store) DeleteTree(module, alias string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteTreeTx(tx, module, alias); err != nil {
		return err
	}
	return tx.Commit()
}

// deleteTreeTx deletes in reverse-dependency order to respect FK constraints.
func deleteTreeTx(tx *sql.Tx, module, alias string) error {
	var treeID int64
	err := tx.QueryRow("SELECT id FROM trees WHERE module = ? AND alias = ?", module, alias).Scan(&treeID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup tree: %w", err)
	}

	for _, q := range []string{
		"DELETE FROM refs WHERE node_id IN (SELECT id FROM nodes WHERE tree_id = ?)",
		"DELETE FROM nodes WHERE tree_id = ?",
		"DELETE FROM trees WHERE id = ?",
	} {
		if _, err := tx.Exec(q, treeID); err != nil {
			return fmt.Errorf("delete tree data: %w", err)
		}
	}
	return nil
}
