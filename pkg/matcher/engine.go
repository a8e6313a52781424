package matcher

import (
	"bytes"
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/praetorian-inc/atomsel/pkg/compiler"
	"github.com/praetorian-inc/atomsel/pkg/literal"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

// verifier finds every match of one rule.
type verifier interface {
	find(in *input, limit int) ([]span, error)
}

// span is a match before it becomes a types.Match.
type span struct {
	start, end int
	groups     [][]byte
}

// input is the content of one blob with its Latin-1 rune view, built on
// first use.
type input struct {
	content []byte
	runes   []rune
}

func (in *input) latin1() []rune {
	if in.runes == nil {
		in.runes = make([]rune, len(in.content))
		for i, b := range in.content {
			in.runes[i] = rune(b)
		}
	}
	return in.runes
}

// engine verifies candidate rules and turns their spans into matches. It is
// read-only after construction.
type engine struct {
	cfg       Config
	logger    *slog.Logger
	verifiers map[*compiler.CompiledRule]verifier
	total     int
}

func newEngine(cfg Config) (*engine, error) {
	if cfg.Ruleset == nil || len(cfg.Ruleset.Rules) == 0 {
		return nil, fmt.Errorf("no rules provided")
	}

	e := &engine{
		cfg:       cfg,
		logger:    cfg.Logger,
		verifiers: make(map[*compiler.CompiledRule]verifier, len(cfg.Ruleset.Rules)),
		total:     len(cfg.Ruleset.Rules),
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}

	for _, cr := range cfg.Ruleset.Rules {
		v, err := newVerifier(cr.Rule)
		if err != nil {
			return nil, fmt.Errorf("failed to compile rule %s: %w", cr.Rule.ID, err)
		}
		e.verifiers[cr] = v
	}
	return e, nil
}

func newVerifier(r *types.Rule) (verifier, error) {
	switch r.EffectiveKind() {
	case types.KindRegex:
		re, err := CompileRegexp(r)
		if err != nil {
			return nil, err
		}
		return &regexVerifier{re: re}, nil
	case types.KindText:
		return &byteVerifier{elems: textPattern(r.Text(), r.Nocase, r.Wide)}, nil
	case types.KindHex:
		p, err := literal.ParseHex(r.Pattern)
		if err != nil {
			return nil, err
		}
		return &byteVerifier{elems: hexPattern(p.Tokens)}, nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", r.Kind)
	}
}

// verify runs the candidate rules against in. A rule that times out or
// fails is skipped for this blob and reported in the statistics.
func (e *engine) verify(in *input, blobID types.BlobID, candidates []*compiler.CompiledRule) *MatchResult {
	result := &MatchResult{
		RuleStats: make(map[string]RuleStat, len(candidates)),
		Summary: ResultSummary{
			TotalRules:    e.total,
			VerifiedRules: len(candidates),
			SkippedRules:  e.total - len(candidates),
		},
	}
	dedup := newDeduplicatorFor(e.cfg.Dedupe)

	for _, cr := range candidates {
		stat := RuleStat{RuleID: cr.Rule.ID, Status: RuleCompleted}
		started := time.Now()

		spans, err := e.verifiers[cr].find(in, e.cfg.MaxMatchesPerRule)
		stat.Duration = time.Since(started)

		if err != nil {
			stat.Error = err
			if strings.Contains(err.Error(), "match timeout") {
				stat.Status = RuleTimedOut
				result.Summary.TimedOutRules++
				e.logger.Warn("regex timeout, skipping rule for this blob", "rule", cr.Rule.ID, "blob", blobID.String())
			} else {
				stat.Status = RuleError
				result.Summary.ErrorRules++
				e.logger.Warn("regex error, skipping rule for this blob", "rule", cr.Rule.ID, "blob", blobID.String(), "error", err)
			}
			result.RuleStats[cr.Rule.ID] = stat
			continue
		}
		result.Summary.CompletedRules++

		for _, s := range spans {
			m := e.buildMatch(in.content, blobID, cr.Rule, s)
			if dedup.IsDuplicate(m) {
				continue
			}
			dedup.Add(m)
			result.Matches = append(result.Matches, m)
			stat.Matches++
		}
		result.RuleStats[cr.Rule.ID] = stat
	}

	slices.SortFunc(result.Matches, func(a, b *types.Match) int {
		return cmp.Or(
			cmp.Compare(a.Location.Offset.Start, b.Location.Offset.Start),
			cmp.Compare(a.Location.Offset.End, b.Location.Offset.End),
			strings.Compare(a.RuleID, b.RuleID),
		)
	})
	return result
}

// buildMatch constructs a types.Match. Byte slices are copied so a stored
// match doesn't pin the content in memory.
func (e *engine) buildMatch(content []byte, blobID types.BlobID, rule *types.Rule, s span) *types.Match {
	snippet := types.NewSnippet(content, s.start, s.end, e.cfg.SnippetContext)

	m := &types.Match{
		BlobID:   blobID,
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Location: types.NewLocation(content, s.start, s.end),
		Snippet: types.Snippet{
			Before:   bytes.Clone(snippet.Before),
			Matching: bytes.Clone(snippet.Matching),
			After:    bytes.Clone(snippet.After),
		},
	}
	for _, g := range s.groups {
		m.Groups = append(m.Groups, bytes.Clone(g))
	}

	sid := rule.StructuralID
	if sid == "" {
		sid = rule.ComputeStructuralID()
	}
	m.StructuralID = m.ComputeStructuralID(sid)
	return m
}
