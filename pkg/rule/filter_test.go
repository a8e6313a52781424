package rule

import (
	"testing"

	"github.com/praetorian-inc/atomsel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() []*types.Rule {
	return []*types.Rule{
		{ID: "exe.mz_header", Kind: types.KindHex},
		{ID: "exe.elf_header", Kind: types.KindHex},
		{ID: "exe.legacy.com", Kind: types.KindHex},
		{ID: "script.cmd_exe", Kind: types.KindText},
		{ID: "cred.aws_access_key"},
	}
}

func ids(rules []*types.Rule) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.ID)
	}
	return out
}

func TestParsePatterns(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string returns empty slice", "", []string{}},
		{"single pattern", "exe.*", []string{"exe.*"}},
		{"multiple patterns", "exe.*,cred.*", []string{"exe.*", "cred.*"}},
		{"spaces are trimmed", " exe.* , cred.* ,", []string{"exe.*", "cred.*"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePatterns(tt.input))
		})
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		config   FilterConfig
		expected []string
	}{
		{
			name:     "no filters keeps everything",
			config:   FilterConfig{},
			expected: []string{"exe.mz_header", "exe.elf_header", "exe.legacy.com", "script.cmd_exe", "cred.aws_access_key"},
		},
		{
			name:     "include",
			config:   FilterConfig{Include: []string{`^exe\.`}},
			expected: []string{"exe.mz_header", "exe.elf_header", "exe.legacy.com"},
		},
		{
			name:     "exclude",
			config:   FilterConfig{Exclude: []string{`^exe\.`}},
			expected: []string{"script.cmd_exe", "cred.aws_access_key"},
		},
		{
			name:     "include then exclude",
			config:   FilterConfig{Include: []string{`^exe\.`}, Exclude: []string{`legacy`}},
			expected: []string{"exe.mz_header", "exe.elf_header"},
		},
		{
			name:     "kinds",
			config:   FilterConfig{Kinds: []types.Kind{types.KindText, types.KindRegex}},
			expected: []string{"script.cmd_exe", "cred.aws_access_key"},
		},
		{
			name:     "include matches none",
			config:   FilterConfig{Include: []string{"nomatch"}},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, err := Filter(testRules(), tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ids(filtered))
		})
	}
}

func TestFilter_InvalidRegex(t *testing.T) {
	for _, config := range []FilterConfig{
		{Include: []string{"[invalid"}},
		{Exclude: []string{"[invalid"}},
		{Include: []string{"exe.*", "[invalid"}},
	} {
		_, err := Filter(testRules(), config)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid regex pattern")
	}
}

func TestFilter_NilRules(t *testing.T) {
	filtered, err := Filter(nil, FilterConfig{Include: []string{".*"}})
	require.NoError(t, err)
	assert.Empty(t, filtered)
}
