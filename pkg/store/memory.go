package store

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/praetorian-inc/atomsel/pkg/types"
)

// MemoryStore implements Store using in-memory data structures.
type MemoryStore struct {
	mu         sync.RWMutex
	selections map[string]*Selection // keyed by Selection.Key
	matches    []*types.Match
	matchIDs   map[string]bool // structural IDs of stored matches
}

// NewMemory creates a new in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		selections: make(map[string]*Selection),
		matchIDs:   make(map[string]bool),
	}
}

// PutSelection inserts or replaces the selection with the same key.
func (m *MemoryStore) PutSelection(sel *Selection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := *sel
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	m.selections[sel.Key] = &c
	return nil
}

// GetSelection returns the selection stored under key, or ErrNotFound.
func (m *MemoryStore) GetSelection(key string) (*Selection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sel, ok := m.selections[key]
	if !ok {
		return nil, ErrNotFound
	}
	c := *sel
	return &c, nil
}

// ListSelections returns every selection ordered by rule ID.
func (m *MemoryStore) ListSelections() ([]*Selection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Selection, 0, len(m.selections))
	for _, sel := range m.selections {
		c := *sel
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *Selection) int {
		if c := strings.Compare(a.RuleID, b.RuleID); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
	return out, nil
}

// AddMatch stores a match record.
func (m *MemoryStore) AddMatch(match *types.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.matchIDs[match.StructuralID] {
		return nil
	}
	m.matchIDs[match.StructuralID] = true
	m.matches = append(m.matches, match)
	return nil
}

// GetMatches retrieves matches for a blob.
func (m *MemoryStore) GetMatches(blobID types.BlobID) ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []*types.Match{}
	for _, match := range m.matches {
		if match.BlobID == blobID {
			result = append(result, match)
		}
	}
	return result, nil
}

// GetAllMatches retrieves all matches.
func (m *MemoryStore) GetAllMatches() ([]*types.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.matches), nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
