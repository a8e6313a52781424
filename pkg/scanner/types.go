package scanner

import (
	"encoding/base64"
	"fmt"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

// ContentItem is one piece of content to scan.
type ContentItem struct {
	Source   string `json:"source"`             // caller-chosen label, e.g. a file name or URL
	Content  string `json:"content"`            // the content to scan
	Encoding string `json:"encoding,omitempty"` // "" for raw text or "base64" for binary content
}

// Bytes decodes the item's content.
func (it ContentItem) Bytes() ([]byte, error) {
	switch it.Encoding {
	case "":
		return []byte(it.Content), nil
	case "base64":
		b, err := base64.StdEncoding.DecodeString(it.Content)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", it.Source, err)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown content encoding %q", it.Encoding)
	}
}

// ScanResult is the outcome of scanning one item.
type ScanResult struct {
	Source  string         `json:"source"`
	Matches []*types.Match `json:"matches"`
	Error   string         `json:"error,omitempty"`
}

// BatchScanResult is the outcome of scanning several items.
type BatchScanResult struct {
	Results []ScanResult `json:"results"`
	Total   int          `json:"total"`
}

// RuleAtoms is the atom selection of one rule.
type RuleAtoms struct {
	RuleID   string            `json:"rule_id"`
	Kind     types.Kind        `json:"kind"`
	Atoms    []string          `json:"atoms"`
	Quality  *atoms.SeqQuality `json:"quality,omitempty"`
	Fallback bool              `json:"fallback"`
}

// AtomScore is the quality of a single atom.
type AtomScore struct {
	Atom    string `json:"atom"`
	Length  int    `json:"length"`
	Quality int32  `json:"quality"`
}

// QualityResult scores a sequence of atoms.
type QualityResult struct {
	Atoms    []AtomScore      `json:"atoms"`
	Sequence atoms.SeqQuality `json:"sequence"`
}
