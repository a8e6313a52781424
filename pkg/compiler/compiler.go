// Package compiler selects the atoms of every rule in a ruleset.
package compiler

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/literal"
	"github.com/praetorian-inc/atomsel/pkg/store"
	"github.com/praetorian-inc/atomsel/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Options configure compilation.
type Options struct {
	Limits  literal.Limits // zero fields use literal.DefaultLimits
	Workers int            // concurrent rules, runtime.NumCPU() when <= 0
	Cache   store.Store    // optional selection cache
	Logger  *slog.Logger   // slog.Default() when nil
}

// CompiledRule is a rule together with the atoms chosen to prefilter it.
type CompiledRule struct {
	Rule    *types.Rule
	Atoms   []atoms.Atom
	Quality *atoms.SeqQuality // nil when Fallback

	// Fallback rules have no usable atoms and are verified against every
	// input.
	Fallback bool

	// Cached is true when the selection was read from Options.Cache.
	Cached bool
}

// Ruleset is the result of compiling a list of rules. It is read-only and
// safe for concurrent use.
type Ruleset struct {
	Rules  []*CompiledRule // same order as the input rules
	Limits literal.Limits  // effective extraction limits
}

// Fallbacks returns the rules without atoms.
func (rs *Ruleset) Fallbacks() []*CompiledRule {
	var out []*CompiledRule
	for _, cr := range rs.Rules {
		if cr.Fallback {
			out = append(out, cr)
		}
	}
	return out
}

// Compile selects atoms for every rule. Rules are compiled concurrently; the
// first error cancels the rest.
func Compile(ctx context.Context, rules []*types.Rule, opts Options) (*Ruleset, error) {
	c := newCompiler(opts)

	compiled := make([]*CompiledRule, len(rules))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, r := range rules {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cr, err := c.compile(r)
			if err != nil {
				return fmt.Errorf("compiling rule %s: %w", r.ID, err)
			}
			compiled[i] = cr
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	rs := &Ruleset{Rules: compiled, Limits: c.extractor.Limits()}
	c.logger.Debug("compiled ruleset", "rules", len(rs.Rules), "fallback", len(rs.Fallbacks()))
	return rs, nil
}

type compiler struct {
	extractor *literal.Extractor
	workers   int
	cache     store.Store
	logger    *slog.Logger
}

func newCompiler(opts Options) *compiler {
	c := &compiler{
		extractor: literal.NewExtractor(opts.Limits),
		workers:   opts.Workers,
		cache:     opts.Cache,
		logger:    opts.Logger,
	}
	if c.workers <= 0 {
		c.workers = runtime.NumCPU()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

func (c *compiler) compile(r *types.Rule) (*CompiledRule, error) {
	key := CacheKey(r, c.extractor.Limits())

	if c.cache != nil {
		sel, err := c.cache.GetSelection(key)
		switch {
		case err == nil:
			c.logger.Debug("using cached atoms", "rule", r.ID, "key", key)
			return &CompiledRule{
				Rule:     r,
				Atoms:    sel.Atoms,
				Quality:  sel.Quality,
				Fallback: sel.Fallback,
				Cached:   true,
			}, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, fmt.Errorf("reading atom cache: %w", err)
		}
	}

	cr, err := c.selectAtoms(r)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		sel := &store.Selection{
			Key:          key,
			RuleID:       r.ID,
			StructuralID: structuralID(r),
			Atoms:        cr.Atoms,
			Quality:      cr.Quality,
			Fallback:     cr.Fallback,
			CreatedAt:    time.Now().UTC(),
		}
		if err := c.cache.PutSelection(sel); err != nil {
			return nil, fmt.Errorf("writing atom cache: %w", err)
		}
	}
	return cr, nil
}

// selectAtoms picks the best candidate sequence of r.
func (c *compiler) selectAtoms(r *types.Rule) (*CompiledRule, error) {
	cands, err := c.candidates(r)
	if err != nil {
		if r.EffectiveKind() != types.KindRegex {
			return nil, err
		}
		// The verifier accepts more syntax than the extractor; such rules
		// are still usable, just never skipped.
		c.logger.Warn("can't extract literals, rule will be verified on every input",
			"rule", r.ID, "error", err)
		return &CompiledRule{Rule: r, Fallback: true}, nil
	}

	quals := make([]*atoms.SeqQuality, len(cands))
	for i, s := range cands {
		quals[i] = s.Quality()
	}

	idx, ok := atoms.SelectBest(quals)
	if !ok || len(cands[idx].Atoms()) == 0 {
		c.logger.Warn("no usable atoms, rule will be verified on every input", "rule", r.ID)
		return &CompiledRule{Rule: r, Fallback: true}, nil
	}

	best := cands[idx]
	c.logger.Debug("selected atoms",
		"rule", r.ID,
		"candidates", len(cands),
		"chosen", idx,
		"quality", quals[idx].String())

	return &CompiledRule{
		Rule:    r,
		Atoms:   best.Atoms(),
		Quality: quals[idx],
	}, nil
}

// candidates dispatches on the rule kind.
func (c *compiler) candidates(r *types.Rule) ([]literal.Seq, error) {
	switch r.EffectiveKind() {
	case types.KindRegex:
		pattern := literal.StripExtendedMode(r.Pattern)
		if r.Nocase {
			pattern = "(?i)" + pattern
		}
		return c.extractor.RegexCandidates(pattern)
	case types.KindText:
		return c.extractor.TextCandidates(r.Text(), r.Nocase, r.Wide), nil
	case types.KindHex:
		p, err := literal.ParseHex(r.Pattern)
		if err != nil {
			return nil, err
		}
		return c.extractor.HexCandidates(p), nil
	default:
		return nil, fmt.Errorf("unknown rule kind %q", r.Kind)
	}
}

// extractorVersion changes whenever extraction can pick different atoms for
// the same rule, so selections cached by older builds are not reused.
const extractorVersion = 2

// CacheKey identifies the selection of a rule: its structure, the
// extraction limits and the extractor version.
func CacheKey(r *types.Rule, limits literal.Limits) string {
	l := literal.NewExtractor(limits).Limits()

	h := sha1.New()
	fmt.Fprintf(h, "v%d\x00%s\x00%d\x00%d\x00%d\x00%d",
		extractorVersion, structuralID(r), l.MaxAtomLen, l.MaxSeqLen, l.MaxClassSize, l.MaxRepeat)
	return hex.EncodeToString(h.Sum(nil))
}

func structuralID(r *types.Rule) string {
	if r.StructuralID != "" {
		return r.StructuralID
	}
	return r.ComputeStructuralID()
}
