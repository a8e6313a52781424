package types

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind is the pattern language of a rule.
type Kind string

const (
	KindRegex Kind = "regex" // Perl-style regular expression
	KindText  Kind = "text"  // literal string, optionally nocase and/or wide
	KindHex   Kind = "hex"   // hex bytes with nibble masks, jumps and alternatives
)

// ParseKind parses a rule kind. The empty string defaults to KindRegex.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindRegex, nil
	case KindRegex, KindText, KindHex:
		return k, nil
	default:
		return "", fmt.Errorf("unknown rule kind %q", s)
	}
}

// Rule is a detection rule with pattern and metadata.
type Rule struct {
	ID               string   // e.g., "pe.mz_header"
	Name             string   // human-readable name
	Kind             Kind     // pattern language
	Pattern          string   // pattern source in the rule's Kind
	Nocase           bool     // text: match ASCII letters in any case
	Wide             bool     // text: match UTF-16LE encoded ASCII
	StructuralID     string   // SHA-1 of kind, modifiers and pattern (computed)
	Description      string   // optional
	Examples         []string // positive test cases
	NegativeExamples []string // negative test cases
	References       []string // documentation URLs
	Categories       []string // classification tags
}

// EffectiveKind returns the rule's kind, KindRegex when unset.
func (r *Rule) EffectiveKind() Kind {
	if r.Kind == "" {
		return KindRegex
	}
	return r.Kind
}

// Text returns the bytes a text rule matches.
func (r *Rule) Text() []byte {
	return Latin1Bytes(r.Pattern)
}

// Latin1Bytes converts s to bytes with one byte per code point when every
// code point is at most 0xFF, so "\x90" written in YAML becomes the byte 0x90.
// Strings with larger code points are returned UTF-8 encoded.
func Latin1Bytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xff {
			return []byte(s)
		}
		out = append(out, byte(r))
	}
	return out
}

// ComputeStructuralID hashes what determines the rule's matching behaviour:
// kind, modifiers and pattern. Metadata does not contribute.
func (r *Rule) ComputeStructuralID() string {
	h := sha1.New()
	h.Write([]byte(r.EffectiveKind()))
	h.Write([]byte{0})
	if r.Nocase {
		h.Write([]byte("nocase"))
	}
	h.Write([]byte{0})
	if r.Wide {
		h.Write([]byte("wide"))
	}
	h.Write([]byte{0})
	h.Write([]byte(r.Pattern))
	return hex.EncodeToString(h.Sum(nil))
}

// Ruleset groups rules together.
type Ruleset struct {
	ID          string
	Name        string
	Description string
	RuleIDs     []string
}
