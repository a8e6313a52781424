package literal

import (
	"errors"
	"testing"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	p, err := ParseHex("{ 4D 5A ?? 0? [2-4] (50 | 51 45) 45 }")
	require.NoError(t, err)
	require.Len(t, p.Tokens, 7)

	assert.Equal(t, HexToken{Kind: HexByte, Value: 0x4d, Mask: 0xff, Span: diag.Span{Start: 2, End: 4}}, p.Tokens[0])
	assert.Equal(t, byte(0x00), p.Tokens[2].Mask)
	assert.Equal(t, byte(0x00), p.Tokens[3].Value)
	assert.Equal(t, byte(0xf0), p.Tokens[3].Mask)

	jump := p.Tokens[4]
	assert.Equal(t, HexJump, jump.Kind)
	assert.Equal(t, 2, jump.Min)
	assert.Equal(t, 4, jump.Max)

	alt := p.Tokens[5]
	assert.Equal(t, HexAlt, alt.Kind)
	require.Len(t, alt.Alts, 2)
	assert.Len(t, alt.Alts[0], 1)
	assert.Len(t, alt.Alts[1], 2)
}

func TestParseHex_LowNibbleMask(t *testing.T) {
	p, err := ParseHex("?F 00")
	require.NoError(t, err)
	assert.Equal(t, byte(0x0f), p.Tokens[0].Value)
	assert.Equal(t, byte(0x0f), p.Tokens[0].Mask)
}

func TestParseHex_Jumps(t *testing.T) {
	tests := []struct {
		src      string
		min, max int
	}{
		{"00 [3] 00", 3, 3},
		{"00 [1-5] 00", 1, 5},
		{"00 [2-] 00", 2, -1},
		{"00 [-] 00", 0, -1},
		{"00 [ 1 - 2 ] 00", 1, 2},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			p, err := ParseHex(tt.src)
			require.NoError(t, err)
			require.Len(t, p.Tokens, 3)
			assert.Equal(t, tt.min, p.Tokens[1].Min)
			assert.Equal(t, tt.max, p.Tokens[1].Max)
		})
	}
}

func TestParseHex_NegativeJump(t *testing.T) {
	_, err := ParseHex("4D 5A [-2] 00")
	require.Error(t, err)

	var r *diag.Report
	require.True(t, errors.As(err, &r))
	assert.Equal(t, diag.KindUnexpectedNegativeNumber, r.Kind)
	require.Len(t, r.Labels, 1)
	assert.Equal(t, diag.Span{Start: 7, End: 9}, r.Labels[0].Span)
}

func TestParseHex_NegativeUpperBound(t *testing.T) {
	_, err := ParseHex("00 [1--3] 00")
	require.Error(t, err)

	var r *diag.Report
	require.True(t, errors.As(err, &r))
	assert.Equal(t, diag.KindUnexpectedNegativeNumber, r.Kind)
	assert.Equal(t, diag.Span{Start: 6, End: 8}, r.Labels[0].Span)
}

func TestParseHex_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"empty braces", "{ }"},
		{"leading jump", "[2] 00"},
		{"trailing jump", "00 [2]"},
		{"odd digit count", "4D 5"},
		{"bad character", "4D ZZ"},
		{"missing close brace", "{ 4D 5A"},
		{"stray close brace", "4D }"},
		{"unterminated jump", "00 [2"},
		{"reversed jump", "00 [4-2] 00"},
		{"empty jump", "00 [] 00"},
		{"nested alternatives", "(00 | (01 | 02)) 03"},
		{"empty alternative", "(00 | ) 03"},
		{"unterminated alternative", "(00 | 01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseHex(tt.src)
			require.Error(t, err)

			var r *diag.Report
			assert.True(t, errors.As(err, &r), "syntax errors are reports")
		})
	}
}

func TestHexCandidates_SingleRun(t *testing.T) {
	e := NewExtractor(DefaultLimits())

	p, err := ParseHex("4D 5A")
	require.NoError(t, err)

	cands := e.HexCandidates(p)
	require.Len(t, cands, 1)
	a := cands[0].Atoms()[0]
	assert.Equal(t, []byte{0x4d, 0x5a}, a.Bytes)
	assert.True(t, a.Exact)
}

func TestHexCandidates_Windows(t *testing.T) {
	e := NewExtractor(DefaultLimits())

	p, err := ParseHex("01 02 03 04 05 [2] 06 07")
	require.NoError(t, err)

	cands := e.HexCandidates(p)
	require.Len(t, cands, 3)
	assert.Equal(t, []byte{1, 2, 3, 4}, cands[0].Atoms()[0].Bytes)
	assert.Equal(t, []byte{2, 3, 4, 5}, cands[1].Atoms()[0].Bytes)
	assert.Equal(t, []byte{6, 7}, cands[2].Atoms()[0].Bytes)
	for _, c := range cands {
		assert.False(t, c.Atoms()[0].Exact)
	}
}

func TestHexCandidates_Masked(t *testing.T) {
	e := NewExtractor(DefaultLimits())

	p, err := ParseHex("E8 ?? ?? 00")
	require.NoError(t, err)

	cands := e.HexCandidates(p)
	require.Len(t, cands, 1)
	a := cands[0].Atoms()[0]
	assert.Equal(t, []byte{0xff, 0x00, 0x00, 0xff}, a.Masks)
	assert.Equal(t, atoms.MaskedQuality(a.Bytes, a.Masks), a.Quality())
}

func TestHexCandidates_Alternatives(t *testing.T) {
	e := NewExtractor(DefaultLimits())

	p, err := ParseHex("4D (5A | 5A 90) 00 00")
	require.NoError(t, err)

	cands := e.HexCandidates(p)
	require.Len(t, cands, 3)

	alt := cands[1]
	require.True(t, alt.IsFinite())
	require.Len(t, alt.Atoms(), 2)
	assert.Equal(t, []byte{0x5a, 0x00, 0x00}, alt.Atoms()[0].Bytes)
	assert.Equal(t, []byte{0x5a, 0x90, 0x00, 0x00}, alt.Atoms()[1].Bytes)
}

func TestHexCandidates_AlternativeStartingWithJump(t *testing.T) {
	e := NewExtractor(DefaultLimits())

	p, err := ParseHex("01 02 (03 | [1] 04) 05")
	require.NoError(t, err)

	cands := e.HexCandidates(p)
	require.Len(t, cands, 3)
	assert.False(t, cands[1].IsFinite())
}
