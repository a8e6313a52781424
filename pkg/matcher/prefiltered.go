package matcher

import (
	"github.com/praetorian-inc/atomsel/pkg/prefilter"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

// PrefilteredMatcher implements Matcher with a two-stage pipeline:
//  1. The Aho-Corasick prefilter finds rules whose atoms occur in the content
//  2. Only those rules, plus fallback rules, are verified
//
// It is safe for concurrent use.
type PrefilteredMatcher struct {
	engine    *engine
	prefilter *prefilter.Prefilter
}

// NewPrefiltered creates the default matcher.
func NewPrefiltered(cfg Config) (*PrefilteredMatcher, error) {
	e, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	return &PrefilteredMatcher{
		engine:    e,
		prefilter: prefilter.New(cfg.Ruleset.Rules),
	}, nil
}

// Match scans content against all loaded rules.
func (m *PrefilteredMatcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (m *PrefilteredMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	result, err := m.MatchDetailed(content, blobID)
	if err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// MatchDetailed scans content and reports per-rule statistics.
func (m *PrefilteredMatcher) MatchDetailed(content []byte, blobID types.BlobID) (*MatchResult, error) {
	candidates := m.prefilter.Filter(content)
	return m.engine.verify(&input{content: content}, blobID, candidates), nil
}

// Close releases resources (no-op for the default matcher).
func (m *PrefilteredMatcher) Close() error {
	return nil
}
