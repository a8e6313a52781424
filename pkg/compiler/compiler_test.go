package compiler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/praetorian-inc/atomsel/pkg/literal"
	"github.com/praetorian-inc/atomsel/pkg/store"
	"github.com/praetorian-inc/atomsel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func compileOne(t *testing.T, r *types.Rule) *CompiledRule {
	t.Helper()
	rs, err := Compile(context.Background(), []*types.Rule{r}, Options{Logger: discard()})
	require.NoError(t, err)
	require.Len(t, rs.Rules, 1)
	return rs.Rules[0]
}

func atomStrings(cr *CompiledRule) []string {
	var out []string
	for _, a := range cr.Atoms {
		out = append(out, string(a.Bytes))
	}
	return out
}

func TestCompile_Regex(t *testing.T) {
	cr := compileOne(t, &types.Rule{ID: "aws", Kind: types.KindRegex, Pattern: `\b(AKIA[0-9A-Z]{16})\b`})

	assert.False(t, cr.Fallback)
	assert.Equal(t, []string{"AKIA"}, atomStrings(cr))
	require.NotNil(t, cr.Quality)
	assert.Equal(t, uint32(1), cr.Quality.SeqLen)
	assert.Equal(t, uint32(4), cr.Quality.MinAtomLen)
}

func TestCompile_RegexNocase(t *testing.T) {
	cr := compileOne(t, &types.Rule{ID: "r", Pattern: `ab`, Nocase: true})

	assert.False(t, cr.Fallback)
	assert.ElementsMatch(t, []string{"ab", "aB", "Ab", "AB"}, atomStrings(cr))
}

func TestCompile_PrefersLaterLiteral(t *testing.T) {
	// The leading class is too large to enumerate, the trailing literal is not.
	cr := compileOne(t, &types.Rule{ID: "r", Pattern: `[a-z]+=secret`})

	assert.False(t, cr.Fallback)
	assert.Equal(t, []string{"=sec"}, atomStrings(cr))
}

func TestCompile_Text(t *testing.T) {
	cr := compileOne(t, &types.Rule{ID: "t", Kind: types.KindText, Pattern: "cmd.exe", Nocase: true})

	assert.False(t, cr.Fallback)
	assert.Len(t, cr.Atoms, 8)
	for _, a := range cr.Atoms {
		assert.Equal(t, 4, a.Len())
	}
}

func TestCompile_TextLatin1(t *testing.T) {
	cr := compileOne(t, &types.Rule{ID: "t", Kind: types.KindText, Pattern: "ÿþ"})

	require.Len(t, cr.Atoms, 1)
	assert.Equal(t, []byte{0xff, 0xfe}, cr.Atoms[0].Bytes)
	assert.True(t, cr.Atoms[0].Exact)
}

func TestCompile_Hex(t *testing.T) {
	cr := compileOne(t, &types.Rule{ID: "h", Kind: types.KindHex, Pattern: "{ 4D 5A 90 00 }"})

	assert.False(t, cr.Fallback)
	require.Len(t, cr.Atoms, 1)
	assert.Equal(t, []byte{0x4d, 0x5a, 0x90, 0x00}, cr.Atoms[0].Bytes)
}

func TestCompile_HexAvoidsMaskedRun(t *testing.T) {
	cr := compileOne(t, &types.Rule{ID: "h", Kind: types.KindHex, Pattern: "?? ?? ?? ?? [4] 50 45 00 00"})

	assert.False(t, cr.Fallback)
	require.Len(t, cr.Atoms, 1)
	assert.Equal(t, []byte{0x50, 0x45, 0x00, 0x00}, cr.Atoms[0].Bytes)
}

func TestCompile_Fallback(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	rules := []*types.Rule{
		{ID: "any", Pattern: `.*`},
		{ID: "lookbehind", Pattern: `(?<=key=)[0-9a-f]{32}`},
	}
	rs, err := Compile(context.Background(), rules, Options{Logger: logger})
	require.NoError(t, err)

	for _, cr := range rs.Rules {
		assert.True(t, cr.Fallback, cr.Rule.ID)
		assert.Empty(t, cr.Atoms)
		assert.Nil(t, cr.Quality)
	}
	assert.Len(t, rs.Fallbacks(), 2)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "rule=lookbehind")
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule *types.Rule
	}{
		{"bad hex", &types.Rule{ID: "h", Kind: types.KindHex, Pattern: "4D ZZ"}},
		{"unknown kind", &types.Rule{ID: "y", Kind: types.Kind("glob"), Pattern: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(context.Background(), []*types.Rule{tt.rule}, Options{Logger: discard()})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "compiling rule "+tt.rule.ID)
		})
	}
}

func TestCompile_PreservesOrder(t *testing.T) {
	var rules []*types.Rule
	for _, p := range []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"} {
		rules = append(rules, &types.Rule{ID: p, Kind: types.KindText, Pattern: p})
	}

	rs, err := Compile(context.Background(), rules, Options{Workers: 3, Logger: discard()})
	require.NoError(t, err)
	require.Len(t, rs.Rules, len(rules))
	for i, cr := range rs.Rules {
		assert.Same(t, rules[i], cr.Rule)
	}
}

func TestCompile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Compile(ctx, []*types.Rule{{ID: "r", Pattern: "abc"}}, Options{Logger: discard()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompile_Cache(t *testing.T) {
	cache := store.NewMemory()
	rules := []*types.Rule{
		{ID: "aws", Pattern: `AKIA[0-9A-Z]{16}`},
		{ID: "any", Pattern: `.+`},
	}
	opts := Options{Cache: cache, Logger: discard()}

	first, err := Compile(context.Background(), rules, opts)
	require.NoError(t, err)
	for _, cr := range first.Rules {
		assert.False(t, cr.Cached)
	}

	sels, err := cache.ListSelections()
	require.NoError(t, err)
	require.Len(t, sels, 2)
	assert.Equal(t, "any", sels[0].RuleID)
	assert.True(t, sels[0].Fallback)
	assert.Equal(t, rules[0].ComputeStructuralID(), sels[1].StructuralID)

	second, err := Compile(context.Background(), rules, opts)
	require.NoError(t, err)
	for i, cr := range second.Rules {
		assert.True(t, cr.Cached)
		assert.Equal(t, first.Rules[i].Atoms, cr.Atoms)
		assert.Equal(t, first.Rules[i].Quality, cr.Quality)
		assert.Equal(t, first.Rules[i].Fallback, cr.Fallback)
	}
}

func TestCacheKey(t *testing.T) {
	r := &types.Rule{ID: "r", Pattern: "abc"}

	assert.Equal(t, CacheKey(r, literal.Limits{}), CacheKey(r, literal.DefaultLimits()))
	assert.NotEqual(t, CacheKey(r, literal.DefaultLimits()), CacheKey(r, literal.Limits{MaxAtomLen: 8}))

	renamed := &types.Rule{ID: "other", Name: "Other", Pattern: "abc"}
	assert.Equal(t, CacheKey(r, literal.Limits{}), CacheKey(renamed, literal.Limits{}))

	text := &types.Rule{ID: "r", Kind: types.KindText, Pattern: "abc"}
	assert.NotEqual(t, CacheKey(r, literal.Limits{}), CacheKey(text, literal.Limits{}))
}
