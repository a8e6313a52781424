//go:build !wasm

package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// CreateSchema creates the database schema if it doesn't exist. A database
// written by a different schema version is rejected.
func CreateSchema(db *sql.DB) error {
	if err := createSchemaVersionTable(db); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	if err := createSelectionsTable(db); err != nil {
		return fmt.Errorf("creating selections table: %w", err)
	}

	if err := createMatchesTable(db); err != nil {
		return fmt.Errorf("creating matches table: %w", err)
	}

	return nil
}

func createSchemaVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	case err != nil:
		return err
	case version != SchemaVersion:
		return fmt.Errorf("unsupported schema version %d (want %d)", version, SchemaVersion)
	}
	return nil
}

func createSelectionsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS selections (
			key TEXT PRIMARY KEY NOT NULL,
			rule_id TEXT NOT NULL,
			structural_id TEXT NOT NULL,
			atoms_json TEXT NOT NULL,
			seq_len INTEGER,
			min_atom_len INTEGER,
			min_atom_quality INTEGER,
			fallback INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	return err
}

func createMatchesTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			blob_id TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			rule_name TEXT NOT NULL,
			structural_id TEXT NOT NULL UNIQUE,
			offset_start INTEGER NOT NULL,
			offset_end INTEGER NOT NULL,
			start_line INTEGER,
			start_column INTEGER,
			end_line INTEGER,
			end_column INTEGER,
			snippet_before BLOB,
			snippet_matching BLOB,
			snippet_after BLOB,
			groups_json TEXT
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_matches_blob_id ON matches(blob_id)
	`)
	return err
}
