//go:build hyperscan

package matcher

import (
	"fmt"
	"sync"

	"github.com/flier/gohs/hyperscan"
	"github.com/praetorian-inc/atomsel/pkg/compiler"
	"github.com/praetorian-inc/atomsel/pkg/prefilter"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

// HyperscanAvailable reports whether the Hyperscan engine was compiled in.
func HyperscanAvailable() bool {
	return true
}

// HyperscanMatcher implements Matcher using Hyperscan.
// Two-stage pipeline:
//  1. Hyperscan decides which regex rules match at all; text and hex rules go
//     through the Aho-Corasick prefilter
//  2. regexp2 and the byte scanner find offsets and capture groups
//
// Regex rules Hyperscan can't compile are always verified. The scratch space
// is shared and guarded by a mutex.
type HyperscanMatcher struct {
	engine      *engine
	mu          sync.Mutex
	db          hyperscan.BlockDatabase
	scratch     *hyperscan.Scratch
	regexRules  []*compiler.CompiledRule // indexed by pattern ID
	unsupported []*compiler.CompiledRule // regex rules Hyperscan rejected
	prefilter   *prefilter.Prefilter     // text and hex rules
}

// NewHyperscan creates a Hyperscan-based matcher.
func NewHyperscan(cfg Config) (Matcher, error) {
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}

	m := &HyperscanMatcher{engine: e}

	var patterns []*hyperscan.Pattern
	var others []*compiler.CompiledRule
	for _, cr := range cfg.Ruleset.Rules {
		if cr.Rule.EffectiveKind() != types.KindRegex {
			others = append(others, cr)
			continue
		}

		// SingleMatch: stage 2 finds every match, Hyperscan only needs to
		// report the rule once.
		flags := hyperscan.MultiLine | hyperscan.SingleMatch
		if cr.Rule.Nocase {
			flags |= hyperscan.Caseless
		}
		p := hyperscan.NewPattern(cr.Rule.Pattern, flags)
		if _, err := p.Info(); err != nil {
			e.logger.Debug("hyperscan can't compile rule, it will always be verified", "rule", cr.Rule.ID, "error", err)
			m.unsupported = append(m.unsupported, cr)
			continue
		}
		p.Id = len(m.regexRules)
		patterns = append(patterns, p)
		m.regexRules = append(m.regexRules, cr)
	}
	m.prefilter = prefilter.New(others)

	if len(patterns) > 0 {
		db, err := hyperscan.NewBlockDatabase(patterns...)
		if err != nil {
			return nil, fmt.Errorf("failed to compile Hyperscan database: %w", err)
		}
		scratch, err := hyperscan.NewScratch(db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to allocate Hyperscan scratch: %w", err)
		}
		m.db, m.scratch = db, scratch
	}
	return m, nil
}

// Match scans content against all loaded rules.
func (m *HyperscanMatcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (m *HyperscanMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	result, err := m.MatchDetailed(content, blobID)
	if err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// MatchDetailed scans content and reports per-rule statistics.
func (m *HyperscanMatcher) MatchDetailed(content []byte, blobID types.BlobID) (*MatchResult, error) {
	hits, err := m.scan(content)
	if err != nil {
		return nil, err
	}

	candidates := m.prefilter.Filter(content)
	candidates = append(candidates, m.unsupported...)
	for _, id := range hits {
		candidates = append(candidates, m.regexRules[id])
	}
	return m.engine.verify(&input{content: content}, blobID, candidates), nil
}

// scan returns the pattern IDs Hyperscan reported, each once.
func (m *HyperscanMatcher) scan(content []byte) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil, nil
	}

	seen := make(map[int]bool)
	var hits []int
	onMatch := func(id uint, from, to uint64, flags uint, context interface{}) error {
		if int(id) >= len(m.regexRules) {
			return fmt.Errorf("invalid pattern ID from Hyperscan: %d", id)
		}
		if !seen[int(id)] {
			seen[int(id)] = true
			hits = append(hits, int(id))
		}
		return nil
	}

	if err := m.db.Scan(content, m.scratch, onMatch, nil); err != nil {
		return nil, fmt.Errorf("Hyperscan scan failed: %w", err)
	}
	return hits, nil
}

// Close releases resources.
func (m *HyperscanMatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.scratch != nil {
		if err := m.scratch.Free(); err != nil {
			return fmt.Errorf("failed to free scratch: %w", err)
		}
		m.scratch = nil
	}
	if m.db != nil {
		if err := m.db.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		m.db = nil
	}
	return nil
}
