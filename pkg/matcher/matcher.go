// Package matcher verifies compiled rules against content.
package matcher

import (
	"fmt"
	"log/slog"

	"github.com/praetorian-inc/atomsel/pkg/compiler"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

// Matcher scans content for rule matches.
type Matcher interface {
	// Match scans content against all loaded rules.
	// Returns matches with offsets and capture groups.
	Match(content []byte) ([]*types.Match, error)

	// MatchWithBlobID scans content with a known BlobID.
	MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error)

	// MatchDetailed is MatchWithBlobID with per-rule statistics.
	MatchDetailed(content []byte, blobID types.BlobID) (*MatchResult, error)

	// Close releases resources (e.g., Hyperscan scratch space).
	Close() error
}

// Engine selects the matcher implementation.
type Engine string

const (
	EngineDefault   Engine = "default"   // Aho-Corasick prefilter, regexp2 and the byte scanner
	EngineHyperscan Engine = "hyperscan" // Hyperscan for regex rules, requires -tags hyperscan
)

// Config for matcher initialization.
type Config struct {
	// Ruleset to verify. Rules keep the order of the ruleset.
	Ruleset *compiler.Ruleset

	Engine Engine

	// SnippetContext is the number of bytes kept on either side of a match.
	SnippetContext int

	// MaxMatchesPerRule limits matches reported per rule and blob (0 = unlimited).
	MaxMatchesPerRule int

	Dedupe DedupeMode

	// Logger receives rule timeouts and errors. slog.Default() when nil.
	Logger *slog.Logger
}

// New creates a Matcher for the configured engine.
func New(cfg Config) (Matcher, error) {
	switch cfg.Engine {
	case "", EngineDefault:
		return NewPrefiltered(cfg)
	case EngineHyperscan:
		return NewHyperscan(cfg)
	default:
		return nil, fmt.Errorf("unknown matcher engine %q", cfg.Engine)
	}
}

// ParseEngine parses an engine name. The empty string is EngineDefault.
func ParseEngine(s string) (Engine, error) {
	switch e := Engine(s); e {
	case "", EngineDefault:
		return EngineDefault, nil
	case EngineHyperscan:
		return e, nil
	default:
		return "", fmt.Errorf("unknown matcher engine %q (want default or hyperscan)", s)
	}
}
