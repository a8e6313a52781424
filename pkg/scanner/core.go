// Package scanner holds a compiled ruleset and scans content items with it.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/compiler"
	"github.com/praetorian-inc/atomsel/pkg/literal"
	"github.com/praetorian-inc/atomsel/pkg/matcher"
	"github.com/praetorian-inc/atomsel/pkg/rule"
	"github.com/praetorian-inc/atomsel/pkg/store"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

var (
	// cachedBuiltinRules holds builtin rules loaded once per process
	cachedBuiltinRules []*types.Rule
	cachedRulesErr     error
	cacheOnce          sync.Once
)

// loadBuiltinRulesCached loads builtin rules once and caches them
func loadBuiltinRulesCached() ([]*types.Rule, error) {
	cacheOnce.Do(func() {
		loader := rule.NewLoader()
		cachedBuiltinRules, cachedRulesErr = loader.LoadBuiltinRules()
	})
	return cachedBuiltinRules, cachedRulesErr
}

// Config configures a Core.
type Config struct {
	// Rules to compile. nil selects the built-in rules.
	Rules []*types.Rule

	Limits         literal.Limits
	SnippetContext int

	// Cache stores atom selections across runs. Optional.
	Cache store.Store

	Logger *slog.Logger
}

// Core wraps the compiled ruleset, matcher and an in-memory match store.
type Core struct {
	ruleset *compiler.Ruleset
	matcher matcher.Matcher
	store   store.Store
	logger  *slog.Logger
}

// NewCore validates and compiles the rules and builds the matcher.
func NewCore(ctx context.Context, cfg Config) (*Core, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rules := cfg.Rules
	if rules == nil {
		var err error
		rules, err = loadBuiltinRulesCached()
		if err != nil {
			return nil, fmt.Errorf("loading builtin rules: %w", err)
		}
	}
	if err := rule.ValidateRules(rules); err != nil {
		return nil, err
	}

	rs, err := compiler.Compile(ctx, rules, compiler.Options{
		Limits: cfg.Limits,
		Cache:  cfg.Cache,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	m, err := matcher.New(matcher.Config{
		Ruleset:        rs,
		SnippetContext: cfg.SnippetContext,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("scanner ready", "rules", len(rs.Rules), "fallbacks", len(rs.Fallbacks()))
	return &Core{
		ruleset: rs,
		matcher: m,
		store:   store.NewMemory(),
		logger:  logger,
	}, nil
}

// Scan scans one item and records its matches.
func (c *Core) Scan(item ContentItem) (*ScanResult, error) {
	content, err := item.Bytes()
	if err != nil {
		return nil, err
	}

	matches, err := c.matcher.MatchWithBlobID(content, types.ComputeBlobID(content))
	if err != nil {
		return nil, err
	}

	for _, match := range matches {
		if err := c.store.AddMatch(match); err != nil {
			return nil, fmt.Errorf("storing match: %w", err)
		}
	}

	return &ScanResult{
		Source:  item.Source,
		Matches: matches,
	}, nil
}

// ScanBatch scans several items. An item that fails to scan is reported
// with its error and does not stop the batch.
func (c *Core) ScanBatch(items []ContentItem) *BatchScanResult {
	batch := &BatchScanResult{Results: make([]ScanResult, 0, len(items))}

	for _, item := range items {
		res, err := c.Scan(item)
		if err != nil {
			c.logger.Warn("scan failed", "source", item.Source, "error", err)
			batch.Results = append(batch.Results, ScanResult{Source: item.Source, Error: err.Error()})
			continue
		}
		batch.Results = append(batch.Results, *res)
		batch.Total += len(res.Matches)
	}

	return batch
}

// Atoms returns the atom selection of every rule in ruleset order.
func (c *Core) Atoms() []RuleAtoms {
	out := make([]RuleAtoms, 0, len(c.ruleset.Rules))
	for _, cr := range c.ruleset.Rules {
		ra := RuleAtoms{
			RuleID:   cr.Rule.ID,
			Kind:     cr.Rule.EffectiveKind(),
			Atoms:    make([]string, 0, len(cr.Atoms)),
			Quality:  cr.Quality,
			Fallback: cr.Fallback,
		}
		for _, a := range cr.Atoms {
			ra.Atoms = append(ra.Atoms, a.String())
		}
		out = append(out, ra)
	}
	return out
}

// Quality parses atoms in hex notation and scores them.
func Quality(hexAtoms []string) (*QualityResult, error) {
	if len(hexAtoms) == 0 {
		return nil, fmt.Errorf("no atoms given")
	}

	parsed := make([]atoms.Atom, 0, len(hexAtoms))
	res := &QualityResult{Atoms: make([]AtomScore, 0, len(hexAtoms))}
	for _, s := range hexAtoms {
		a, err := atoms.ParseAtom(s)
		if err != nil {
			return nil, fmt.Errorf("parsing atom %q: %w", s, err)
		}
		parsed = append(parsed, a)
		res.Atoms = append(res.Atoms, AtomScore{Atom: a.String(), Length: a.Len(), Quality: a.Quality()})
	}
	res.Sequence = atoms.SeqQualityOf(parsed)
	return res, nil
}

// Matches returns every match recorded since the core was created.
func (c *Core) Matches() ([]*types.Match, error) {
	return c.store.GetAllMatches()
}

// Ruleset returns the compiled rules.
func (c *Core) Ruleset() *compiler.Ruleset {
	return c.ruleset
}

// Close releases scanner resources
func (c *Core) Close() {
	if c.matcher != nil {
		c.matcher.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// GetBuiltinRules returns the built-in rules (cached)
func GetBuiltinRules() ([]*types.Rule, error) {
	return loadBuiltinRulesCached()
}
