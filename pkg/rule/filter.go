package rule

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/praetorian-inc/atomsel/pkg/types"
)

// FilterConfig specifies which rules to keep.
type FilterConfig struct {
	Include []string     // regex patterns on rule IDs; only matching rules are kept
	Exclude []string     // regex patterns on rule IDs; matching rules are dropped
	Kinds   []types.Kind // keep only these pattern kinds; empty keeps all
}

// ParsePatterns splits a comma-separated string into individual patterns.
// Patterns are trimmed of whitespace.
func ParsePatterns(patterns string) []string {
	result := []string{}
	for _, p := range strings.Split(patterns, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Filter applies include, exclude and kind filters to rules, in that order.
// Empty include means "include all". Returns error if any pattern is an
// invalid regex.
func Filter(rules []*types.Rule, config FilterConfig) ([]*types.Rule, error) {
	include, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	result := make([]*types.Rule, 0, len(rules))
	for _, r := range rules {
		if len(include) > 0 && !matchesAny(r.ID, include) {
			continue
		}
		if matchesAny(r.ID, exclude) {
			continue
		}
		if len(config.Kinds) > 0 && !slices.Contains(config.Kinds, r.EffectiveKind()) {
			continue
		}
		result = append(result, r)
	}
	return result, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(ruleID string, regexes []*regexp.Regexp) bool {
	for _, re := range regexes {
		if re.MatchString(ruleID) {
			return true
		}
	}
	return false
}

