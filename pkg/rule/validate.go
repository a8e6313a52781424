package rule

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/praetorian-inc/atomsel/pkg/diag"
	"github.com/praetorian-inc/atomsel/pkg/literal"
	"github.com/praetorian-inc/atomsel/pkg/matcher"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

// ValidateRule checks rule consistency and required fields.
// Pattern problems are returned as *diag.Report errors whose Detail shows the
// offending source.
func ValidateRule(r *types.Rule) error {
	if r == nil {
		return fmt.Errorf("rule is nil")
	}

	// Check required fields
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.Pattern == "" {
		return fmt.Errorf("rule %s: pattern is required", r.ID)
	}

	decl := Declare(r)
	switch r.Kind {
	case "", types.KindRegex:
		if r.Wide {
			return fmt.Errorf("rule %s: %w", r.ID, modifierMismatch(r, decl, "wide"))
		}
		if _, err := matcher.CompileRegexp(r); err != nil {
			return fmt.Errorf("invalid pattern regex for rule %s: %w", r.ID, err)
		}

	case types.KindText:

	case types.KindHex:
		if r.Nocase {
			return fmt.Errorf("rule %s: %w", r.ID, modifierMismatch(r, decl, "nocase"))
		}
		if r.Wide {
			return fmt.Errorf("rule %s: %w", r.ID, modifierMismatch(r, decl, "wide"))
		}
		if _, err := literal.ParseHex(r.Pattern); err != nil {
			var rep *diag.Report
			if errors.As(err, &rep) {
				rep.Attach(r.ID, r.Pattern)
			}
			return fmt.Errorf("invalid hex pattern for rule %s: %w", r.ID, err)
		}

	default:
		rep := diag.WrongType("regex, text or hex", string(r.Kind), decl.Kind)
		return fmt.Errorf("rule %s: %w", r.ID, rep.Attach(r.ID, decl.Source))
	}

	// Validate StructuralID matches computed value
	expectedID := r.ComputeStructuralID()
	if r.StructuralID != "" && r.StructuralID != expectedID {
		return fmt.Errorf("rule %s has inconsistent StructuralID: got %s, expected %s",
			r.ID, r.StructuralID, expectedID)
	}

	return nil
}

// ValidateRuleset checks ruleset consistency and required fields.
// knownRuleIDs is a map of valid rule IDs for reference checking.
// Returns error if ruleset is invalid.
func ValidateRuleset(rs *types.Ruleset, knownRuleIDs map[string]bool) error {
	if rs == nil {
		return fmt.Errorf("ruleset is nil")
	}

	// Check required fields
	if rs.ID == "" {
		return fmt.Errorf("ruleset ID is required")
	}
	if rs.Name == "" {
		return fmt.Errorf("ruleset name is required")
	}
	if len(rs.RuleIDs) == 0 {
		return fmt.Errorf("ruleset %s must reference at least one rule", rs.ID)
	}

	// Validate all referenced rule IDs exist
	if knownRuleIDs != nil {
		for _, ruleID := range rs.RuleIDs {
			if !knownRuleIDs[ruleID] {
				return fmt.Errorf("ruleset %s references unknown rule ID: %s", rs.ID, ruleID)
			}
		}
	}

	// Check for duplicate rule IDs
	seen := make(map[string]bool)
	for _, ruleID := range rs.RuleIDs {
		if seen[ruleID] {
			return fmt.Errorf("ruleset %s contains duplicate rule ID: %s", rs.ID, ruleID)
		}
		seen[ruleID] = true
	}

	return nil
}

// ValidateRules validates every rule and checks IDs are unique.
func ValidateRules(rules []*types.Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := ValidateRule(r); err != nil {
			return err
		}
		if seen[r.ID] {
			return fmt.Errorf("duplicate rule ID: %s", r.ID)
		}
		seen[r.ID] = true
	}
	return nil
}

// Declaration is the one-line rendering of a rule's pattern, such as
// `hex "4D 5A" nocase`, with the spans of its parts.
type Declaration struct {
	Source    string
	Kind      diag.Span
	Pattern   diag.Span
	Modifiers map[string]diag.Span
}

// Declare renders the kind, pattern and modifiers of r on one line.
// Diagnostics about the combination of those refer to spans of this text.
func Declare(r *types.Rule) Declaration {
	kind := string(r.EffectiveKind())
	d := Declaration{Modifiers: map[string]diag.Span{}}

	src := kind
	d.Kind = diag.Span{Start: 0, End: len(src)}

	quoted := strconv.Quote(r.Pattern)
	d.Pattern = diag.Span{Start: len(src) + 1, End: len(src) + 1 + len(quoted)}
	src += " " + quoted

	for _, m := range []struct {
		name string
		set  bool
	}{{"nocase", r.Nocase}, {"wide", r.Wide}} {
		if !m.set {
			continue
		}
		d.Modifiers[m.name] = diag.Span{Start: len(src) + 1, End: len(src) + 1 + len(m.name)}
		src += " " + m.name
	}

	d.Source = src
	return d
}

func (d Declaration) String() string {
	return d.Source
}

func modifierMismatch(r *types.Rule, d Declaration, modifier string) *diag.Report {
	rep := diag.MismatchingTypes(string(r.EffectiveKind())+" pattern", d.Pattern, modifier+" modifier", d.Modifiers[modifier])
	return rep.Attach(r.ID, d.Source)
}
