package rule

import (
	"errors"
	"strings"
	"testing"

	"github.com/praetorian-inc/atomsel/pkg/diag"
	"github.com/praetorian-inc/atomsel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRule_Valid(t *testing.T) {
	for _, r := range []*types.Rule{
		{ID: "r", Name: "Regex", Pattern: `eval\s*\(`},
		{ID: "r", Name: "Regex nocase", Kind: types.KindRegex, Pattern: `eval`, Nocase: true},
		{ID: "t", Name: "Text", Kind: types.KindText, Pattern: "cmd.exe", Nocase: true, Wide: true},
		{ID: "h", Name: "Hex", Kind: types.KindHex, Pattern: "4D 5A [2-4] (50 | 51)"},
		{ID: "l", Name: "Lookahead", Pattern: `password(?=\s*=)`},
	} {
		r.StructuralID = r.ComputeStructuralID()
		if err := ValidateRule(r); err != nil {
			t.Errorf("ValidateRule failed for %s: %v", r.Name, err)
		}
	}
}

func TestValidateRule_NilRule(t *testing.T) {
	err := ValidateRule(nil)
	if err == nil || !strings.Contains(err.Error(), "nil") {
		t.Errorf("expected nil rule error, got: %v", err)
	}
}

func TestValidateRule_MissingFields(t *testing.T) {
	tests := []struct {
		rule *types.Rule
		want string
	}{
		{&types.Rule{Name: "n", Pattern: "p"}, "ID"},
		{&types.Rule{ID: "i", Pattern: "p"}, "name"},
		{&types.Rule{ID: "i", Name: "n"}, "pattern"},
	}
	for _, tt := range tests {
		err := ValidateRule(tt.rule)
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.want)
	}
}

func TestValidateRule_InvalidRegex(t *testing.T) {
	err := ValidateRule(&types.Rule{ID: "i", Name: "n", Pattern: "[invalid(regex"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid pattern regex")
}

func TestValidateRule_InvalidHex(t *testing.T) {
	r := &types.Rule{ID: "exe.bad", Name: "n", Kind: types.KindHex, Pattern: "4D 5A [-2] 00"}

	err := ValidateRule(r)
	require.Error(t, err)

	var rep *diag.Report
	require.True(t, errors.As(err, &rep))
	assert.Equal(t, diag.KindUnexpectedNegativeNumber, rep.Kind)
	assert.Contains(t, rep.Detail, " --> exe.bad:1:8")
	assert.Contains(t, rep.Detail, "4D 5A [-2] 00")
}

func TestValidateRule_ModifierOnHex(t *testing.T) {
	r := &types.Rule{ID: "exe.mz", Name: "n", Kind: types.KindHex, Pattern: "4D 5A", Nocase: true}

	err := ValidateRule(r)
	require.Error(t, err)

	var rep *diag.Report
	require.True(t, errors.As(err, &rep))
	assert.Equal(t, diag.KindMismatchingTypes, rep.Kind)
	require.Len(t, rep.Labels, 2)
	assert.Equal(t, "this expression is `hex pattern`", rep.Labels[0].Text)
	assert.Equal(t, "this expression is `nocase modifier`", rep.Labels[1].Text)
	assert.Contains(t, rep.Detail, `hex "4D 5A" nocase`)
}

func TestValidateRule_WideRegex(t *testing.T) {
	err := ValidateRule(&types.Rule{ID: "r", Name: "n", Pattern: "abc", Wide: true})

	var rep *diag.Report
	require.True(t, errors.As(err, &rep))
	assert.Equal(t, diag.KindMismatchingTypes, rep.Kind)
}

func TestValidateRule_UnknownKind(t *testing.T) {
	err := ValidateRule(&types.Rule{ID: "y", Name: "n", Kind: "glob", Pattern: "x"})

	var rep *diag.Report
	require.True(t, errors.As(err, &rep))
	assert.Equal(t, diag.KindWrongType, rep.Kind)
	assert.Equal(t, diag.Span{Start: 0, End: 4}, rep.Labels[0].Span)
	assert.Equal(t, "expression should be regex, text or hex, but is `glob`", rep.Labels[0].Text)
}

func TestValidateRule_InconsistentStructuralID(t *testing.T) {
	err := ValidateRule(&types.Rule{ID: "i", Name: "n", Pattern: "p", StructuralID: "wrong_id"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "StructuralID")
}

func TestValidateRules_DuplicateID(t *testing.T) {
	err := ValidateRules([]*types.Rule{
		{ID: "a", Name: "A", Pattern: "a"},
		{ID: "a", Name: "B", Pattern: "b"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate rule ID")
}

func TestValidateRuleset(t *testing.T) {
	known := map[string]bool{"a": true, "b": true}

	assert.NoError(t, ValidateRuleset(&types.Ruleset{ID: "s", Name: "S", RuleIDs: []string{"a", "b"}}, known))
	assert.NoError(t, ValidateRuleset(&types.Ruleset{ID: "s", Name: "S", RuleIDs: []string{"x"}}, nil))

	for _, rs := range []*types.Ruleset{
		nil,
		{Name: "S", RuleIDs: []string{"a"}},
		{ID: "s", RuleIDs: []string{"a"}},
		{ID: "s", Name: "S"},
		{ID: "s", Name: "S", RuleIDs: []string{"c"}},
		{ID: "s", Name: "S", RuleIDs: []string{"a", "a"}},
	} {
		assert.Error(t, ValidateRuleset(rs, known))
	}
}

func TestDeclare(t *testing.T) {
	d := Declare(&types.Rule{Kind: types.KindText, Pattern: "cmd", Nocase: true, Wide: true})

	assert.Equal(t, `text "cmd" nocase wide`, d.String())
	assert.Equal(t, diag.Span{Start: 0, End: 4}, d.Kind)
	assert.Equal(t, diag.Span{Start: 5, End: 10}, d.Pattern)
	assert.Equal(t, diag.Span{Start: 11, End: 17}, d.Modifiers["nocase"])
	assert.Equal(t, diag.Span{Start: 18, End: 22}, d.Modifiers["wide"])

	assert.Equal(t, `regex "a\\d"`, Declare(&types.Rule{Pattern: `a\d`}).String())
}
