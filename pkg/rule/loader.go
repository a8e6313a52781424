package rule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/praetorian-inc/atomsel/pkg/types"
	"gopkg.in/yaml.v3"
)

// Loader handles loading rules from YAML files.
type Loader struct {
	fs fs.FS // filesystem holding rules/ and rulesets/
}

// NewLoader creates a loader with built-in rules from embedded filesystem.
func NewLoader() *Loader {
	return &Loader{
		fs: builtinFS,
	}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{
		fs: fsys,
	}
}

// LoadRule loads a single rule from YAML bytes.
// Returns error if YAML is invalid or multiple rules are present.
func (l *Loader) LoadRule(data []byte) (*types.Rule, error) {
	rules, err := l.LoadRules(data)
	if err != nil {
		return nil, err
	}
	if len(rules) > 1 {
		return nil, fmt.Errorf("expected single rule, found %d", len(rules))
	}
	return rules[0], nil
}

// LoadRules loads every rule of a YAML document.
func (l *Loader) LoadRules(data []byte) ([]*types.Rule, error) {
	var yamlFile yamlRulesFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(yamlFile.Rules) == 0 {
		return nil, fmt.Errorf("no rules found in YAML")
	}

	rules := make([]*types.Rule, 0, len(yamlFile.Rules))
	for _, yr := range yamlFile.Rules {
		rules = append(rules, convertYAMLRule(yr))
	}
	return rules, nil
}

// LoadRuleFile loads the rules of a YAML file.
func (l *Loader) LoadRuleFile(path string) ([]*types.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	rules, err := l.LoadRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// LoadPath loads rules from a YAML file, or from every .yml/.yaml file below
// a directory in lexical order.
func (l *Loader) LoadPath(path string) ([]*types.Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return l.LoadRuleFile(path)
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAML(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", path, err)
	}
	sort.Strings(files)

	var rules []*types.Rule
	for _, f := range files {
		rs, err := l.LoadRuleFile(f)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rs...)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules found in %s", path)
	}
	return rules, nil
}

// LoadRuleset loads a ruleset from YAML bytes.
// Returns error if YAML is invalid or multiple rulesets are present.
func (l *Loader) LoadRuleset(data []byte) (*types.Ruleset, error) {
	var yamlFile yamlRulesetsFile
	if err := yaml.Unmarshal(data, &yamlFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(yamlFile.Rulesets) == 0 {
		return nil, fmt.Errorf("no rulesets found in YAML")
	}
	if len(yamlFile.Rulesets) > 1 {
		return nil, fmt.Errorf("expected single ruleset, found %d", len(yamlFile.Rulesets))
	}

	return convertYAMLRuleset(yamlFile.Rulesets[0]), nil
}

// LoadBuiltinRules loads all built-in rules from embedded filesystem.
func (l *Loader) LoadBuiltinRules() ([]*types.Rule, error) {
	var rules []*types.Rule

	err := l.walk("rules", func(path string, data []byte) error {
		rs, err := l.LoadRules(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		rules = append(rules, rs...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadBuiltinRulesets loads all built-in rulesets from embedded filesystem.
func (l *Loader) LoadBuiltinRulesets() ([]*types.Ruleset, error) {
	var rulesets []*types.Ruleset

	err := l.walk("rulesets", func(path string, data []byte) error {
		var yamlFile yamlRulesetsFile
		if err := yaml.Unmarshal(data, &yamlFile); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		for _, yrs := range yamlFile.Rulesets {
			rulesets = append(rulesets, convertYAMLRuleset(yrs))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rulesets, nil
}

// SelectRuleset returns the rules the ruleset includes, in ruleset order.
func SelectRuleset(rules []*types.Rule, rs *types.Ruleset) ([]*types.Rule, error) {
	byID := make(map[string]*types.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	out := make([]*types.Rule, 0, len(rs.RuleIDs))
	for _, id := range rs.RuleIDs {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("ruleset %s references unknown rule ID: %s", rs.ID, id)
		}
		out = append(out, r)
	}
	return out, nil
}

func (l *Loader) walk(dir string, fn func(path string, data []byte) error) error {
	return fs.WalkDir(l.fs, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isYAML(path) {
			return nil
		}

		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		return fn(path, data)
	})
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yml" || ext == ".yaml"
}

// convertYAMLRule converts yamlRule to types.Rule and computes StructuralID.
// An unknown kind is kept as written so validation can report it.
func convertYAMLRule(yr yamlRule) *types.Rule {
	kind, err := types.ParseKind(yr.Kind)
	if err != nil {
		kind = types.Kind(strings.TrimSpace(yr.Kind))
	}

	r := &types.Rule{
		ID:               yr.ID,
		Name:             yr.Name,
		Kind:             kind,
		Pattern:          yr.Pattern,
		Nocase:           yr.Nocase,
		Wide:             yr.Wide,
		Description:      yr.Description,
		Examples:         yr.Examples,
		NegativeExamples: yr.NegativeExamples,
		References:       yr.References,
		Categories:       yr.Categories,
	}
	if kind == types.KindText || kind == types.KindHex {
		r.Pattern = strings.TrimRight(r.Pattern, "\r\n")
	}
	r.StructuralID = r.ComputeStructuralID()
	return r
}

// convertYAMLRuleset converts yamlRuleset to types.Ruleset.
func convertYAMLRuleset(yrs yamlRuleset) *types.Ruleset {
	return &types.Ruleset{
		ID:          yrs.ID,
		Name:        yrs.Name,
		Description: yrs.Description,
		RuleIDs:     yrs.RuleIDs,
	}
}

// ExampleBytes converts a rule example to the bytes it stands for. YAML
// strings are Unicode, so an example made only of code points up to U+00FF
// is read as one byte per code point ("\x90" is the byte 0x90). Anything
// else is taken as UTF-8.
func ExampleBytes(s string) []byte {
	return types.Latin1Bytes(s)
}
