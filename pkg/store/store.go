package store

import (
	"errors"
	"time"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

// ErrNotFound is returned when a selection is not in the store.
var ErrNotFound = errors.New("not found")

// Selection is the outcome of atom selection for one rule under one set of
// extraction limits.
type Selection struct {
	// Key identifies the rule structure and the limits it was compiled with.
	Key          string            `json:"key"`
	RuleID       string            `json:"rule_id"`
	StructuralID string            `json:"structural_id"`
	Atoms        []atoms.Atom      `json:"atoms"`
	Quality      *atoms.SeqQuality `json:"quality,omitempty"` // nil when Fallback
	Fallback     bool              `json:"fallback"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Store persists atom selections and scan matches.
type Store interface {
	// PutSelection inserts or replaces the selection with the same key.
	PutSelection(sel *Selection) error

	// GetSelection returns the selection stored under key, or ErrNotFound.
	GetSelection(key string) (*Selection, error)

	// ListSelections returns every selection ordered by rule ID.
	ListSelections() ([]*Selection, error)

	// AddMatch stores a match record. Matches with a known structural ID
	// are ignored.
	AddMatch(m *types.Match) error

	// GetMatches retrieves matches for a blob.
	GetMatches(blobID types.BlobID) ([]*types.Match, error)

	// GetAllMatches retrieves all matches.
	GetAllMatches() ([]*types.Match, error)

	// Close closes the database connection.
	Close() error
}

// Config for store initialization.
type Config struct {
	// Path is the database file path.
	// Use ":memory:" for an in-memory store (useful for testing).
	Path string
}
