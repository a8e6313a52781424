//go:build !wasm

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a SQLite-based store.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from being one per connection.
	db.SetMaxOpenConns(1)

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// PutSelection inserts or replaces the selection with the same key.
func (s *SQLiteStore) PutSelection(sel *Selection) error {
	atomsJSON, err := json.Marshal(sel.Atoms)
	if err != nil {
		return fmt.Errorf("marshaling atoms: %w", err)
	}

	var seqLen, minAtomLen, minQuality sql.NullInt64
	if sel.Quality != nil {
		seqLen = sql.NullInt64{Int64: int64(sel.Quality.SeqLen), Valid: true}
		minAtomLen = sql.NullInt64{Int64: int64(sel.Quality.MinAtomLen), Valid: true}
		minQuality = sql.NullInt64{Int64: int64(sel.Quality.MinAtomQuality), Valid: true}
	}

	createdAt := sel.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO selections
			(key, rule_id, structural_id, atoms_json, seq_len, min_atom_len, min_atom_quality, fallback, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sel.Key,
		sel.RuleID,
		sel.StructuralID,
		string(atomsJSON),
		seqLen,
		minAtomLen,
		minQuality,
		sel.Fallback,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting selection: %w", err)
	}
	return nil
}

// GetSelection returns the selection stored under key, or ErrNotFound.
func (s *SQLiteStore) GetSelection(key string) (*Selection, error) {
	row := s.db.QueryRow(selectSelections+" WHERE key = ?", key)
	sel, err := scanSelection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sel, err
}

// ListSelections returns every selection ordered by rule ID.
func (s *SQLiteStore) ListSelections() ([]*Selection, error) {
	rows, err := s.db.Query(selectSelections + " ORDER BY rule_id, key")
	if err != nil {
		return nil, fmt.Errorf("querying selections: %w", err)
	}
	defer rows.Close()

	var out []*Selection
	for rows.Next() {
		sel, err := scanSelection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating selections: %w", err)
	}
	return out, nil
}

const selectSelections = `
	SELECT key, rule_id, structural_id, atoms_json, seq_len, min_atom_len, min_atom_quality, fallback, created_at
	FROM selections`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSelection(row rowScanner) (*Selection, error) {
	var (
		sel                            Selection
		atomsJSON, createdAt           string
		seqLen, minAtomLen, minQuality sql.NullInt64
	)
	err := row.Scan(&sel.Key, &sel.RuleID, &sel.StructuralID, &atomsJSON,
		&seqLen, &minAtomLen, &minQuality, &sel.Fallback, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning selection: %w", err)
	}

	if err := json.Unmarshal([]byte(atomsJSON), &sel.Atoms); err != nil {
		return nil, fmt.Errorf("unmarshaling atoms: %w", err)
	}
	if seqLen.Valid {
		sel.Quality = &atoms.SeqQuality{
			SeqLen:         uint32(seqLen.Int64),
			MinAtomLen:     uint32(minAtomLen.Int64),
			MinAtomQuality: int32(minQuality.Int64),
		}
	}
	if sel.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &sel, nil
}

// AddMatch stores a match record.
func (s *SQLiteStore) AddMatch(m *types.Match) error {
	groupsJSON, err := json.Marshal(m.Groups)
	if err != nil {
		return fmt.Errorf("marshaling groups: %w", err)
	}

	loc := m.Location
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO matches
			(blob_id, rule_id, rule_name, structural_id, offset_start, offset_end,
			 start_line, start_column, end_line, end_column,
			 snippet_before, snippet_matching, snippet_after, groups_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.BlobID.String(),
		m.RuleID,
		m.RuleName,
		m.StructuralID,
		loc.Offset.Start,
		loc.Offset.End,
		loc.Source.Start.Line,
		loc.Source.Start.Column,
		loc.Source.End.Line,
		loc.Source.End.Column,
		m.Snippet.Before,
		m.Snippet.Matching,
		m.Snippet.After,
		string(groupsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting match: %w", err)
	}
	return nil
}

// GetMatches retrieves matches for a blob.
func (s *SQLiteStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	return s.queryMatches(selectMatches+" WHERE blob_id = ? ORDER BY offset_start, id", blobID.String())
}

// GetAllMatches retrieves all matches.
func (s *SQLiteStore) GetAllMatches() ([]*types.Match, error) {
	return s.queryMatches(selectMatches + " ORDER BY id")
}

const selectMatches = `
	SELECT blob_id, rule_id, rule_name, structural_id, offset_start, offset_end,
	       start_line, start_column, end_line, end_column,
	       snippet_before, snippet_matching, snippet_after, groups_json
	FROM matches`

func (s *SQLiteStore) queryMatches(query string, args ...any) ([]*types.Match, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	matches := []*types.Match{}
	for rows.Next() {
		var (
			m          types.Match
			blobIDHex  string
			groupsJSON string
		)
		loc := &m.Location
		err := rows.Scan(
			&blobIDHex,
			&m.RuleID,
			&m.RuleName,
			&m.StructuralID,
			&loc.Offset.Start,
			&loc.Offset.End,
			&loc.Source.Start.Line,
			&loc.Source.Start.Column,
			&loc.Source.End.Line,
			&loc.Source.End.Column,
			&m.Snippet.Before,
			&m.Snippet.Matching,
			&m.Snippet.After,
			&groupsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}

		if m.BlobID, err = types.ParseBlobID(blobIDHex); err != nil {
			return nil, fmt.Errorf("parsing blob ID: %w", err)
		}
		if err := json.Unmarshal([]byte(groupsJSON), &m.Groups); err != nil {
			return nil, fmt.Errorf("unmarshaling groups: %w", err)
		}

		matches = append(matches, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
