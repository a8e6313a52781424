package matcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/praetorian-inc/atomsel/pkg/types"
)

// DedupeMode controls how matches are deduplicated.
type DedupeMode int

const (
	// DedupeByLocation deduplicates by exact location (rule + blob + offsets).
	// The same bytes at different offsets are separate matches.
	DedupeByLocation DedupeMode = iota

	// DedupeByContent deduplicates by rule and matched content: capture
	// groups when the rule has them, the matched bytes otherwise.
	DedupeByContent
)

// String returns the name of the mode.
func (m DedupeMode) String() string {
	if m == DedupeByContent {
		return "content"
	}
	return "location"
}

// ParseDedupeMode parses a mode name. The empty string is DedupeByLocation.
func ParseDedupeMode(s string) (DedupeMode, error) {
	switch s {
	case "", "location":
		return DedupeByLocation, nil
	case "content":
		return DedupeByContent, nil
	default:
		return 0, fmt.Errorf("unknown dedupe mode %q (want location or content)", s)
	}
}

// Deduplicator removes duplicate matches based on configurable criteria.
type Deduplicator struct {
	seen map[string]bool
	mode DedupeMode
}

// NewDeduplicator creates a new deduplicator with location-based deduplication.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]bool),
		mode: DedupeByLocation,
	}
}

// NewContentDeduplicator creates a deduplicator that deduplicates by content.
func NewContentDeduplicator() *Deduplicator {
	return &Deduplicator{
		seen: make(map[string]bool),
		mode: DedupeByContent,
	}
}

func newDeduplicatorFor(mode DedupeMode) *Deduplicator {
	if mode == DedupeByContent {
		return NewContentDeduplicator()
	}
	return NewDeduplicator()
}

// IsDuplicate returns true if match was already seen.
func (d *Deduplicator) IsDuplicate(m *types.Match) bool {
	return d.seen[d.computeKey(m)]
}

// Add marks a match as seen.
func (d *Deduplicator) Add(m *types.Match) {
	d.seen[d.computeKey(m)] = true
}

// Reset clears the deduplicator for reuse.
func (d *Deduplicator) Reset() {
	clear(d.seen)
}

// computeKey generates the deduplication key based on mode.
func (d *Deduplicator) computeKey(m *types.Match) string {
	switch d.mode {
	case DedupeByContent:
		h := sha256.New()
		h.Write([]byte(m.RuleID))
		h.Write([]byte{0})
		if len(m.Groups) == 0 {
			h.Write(m.Snippet.Matching)
		}
		for _, group := range m.Groups {
			h.Write(group)
			h.Write([]byte{0})
		}
		return hex.EncodeToString(h.Sum(nil))
	default:
		return m.StructuralID
	}
}
