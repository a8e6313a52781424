package types

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// Snippet contains context around a match.
type Snippet struct {
	Before   []byte `json:"before"`
	Matching []byte `json:"matching"`
	After    []byte `json:"after"`
}

// NewSnippet cuts the match content[start:end] with up to context bytes on
// either side.
func NewSnippet(content []byte, start, end, context int) Snippet {
	before := max(0, start-context)
	after := min(len(content), end+context)
	return Snippet{
		Before:   content[before:start],
		Matching: content[start:end],
		After:    content[end:after],
	}
}

// Match is a single detection result.
type Match struct {
	BlobID       BlobID   `json:"blob_id"`
	StructuralID string   `json:"structural_id"` // SHA-1(rule_structural_id + '\0' + blob_id + '\0' + start + '\0' + end)
	RuleID       string   `json:"rule_id"`
	RuleName     string   `json:"rule_name"`
	Location     Location `json:"location"`
	Groups       [][]byte `json:"groups,omitempty"` // regex capture groups
	Snippet      Snippet  `json:"snippet"`
}

// ComputeStructuralID computes a content-based unique ID of the match.
func (m *Match) ComputeStructuralID(ruleStructuralID string) string {
	h := sha1.New()
	h.Write([]byte(ruleStructuralID))
	h.Write([]byte{0})
	h.Write(m.BlobID[:])
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.Location.Offset.Start, 10)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(m.Location.Offset.End, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
