package matcher

import (
	"testing"

	"github.com/praetorian-inc/atomsel/pkg/literal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hexVerifier(t *testing.T, src string) *byteVerifier {
	t.Helper()
	p, err := literal.ParseHex(src)
	require.NoError(t, err)
	return &byteVerifier{elems: hexPattern(p.Tokens)}
}

func starts(spans []span) []int {
	var out []int
	for _, s := range spans {
		out = append(out, s.start)
	}
	return out
}

func TestHexPattern_MergesRuns(t *testing.T) {
	v := hexVerifier(t, "4D 5A ?? [1-2] 00")
	require.Len(t, v.elems, 3)
	assert.Equal(t, []byte{0x4d, 0x5a, 0x00}, v.elems[0].values)
	assert.Equal(t, []byte{0xff, 0xff, 0x00}, v.elems[0].masks)
	assert.Equal(t, elemJump, v.elems[1].kind)
}

func TestByteVerifier_Nibbles(t *testing.T) {
	v := hexVerifier(t, "4? ?A")

	spans, err := v.find(&input{content: []byte{0x41, 0x1a, 0x50, 0x4f, 0x2a}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, starts(spans))
}

func TestByteVerifier_UnboundedJump(t *testing.T) {
	v := hexVerifier(t, "01 [-] 02")

	spans, err := v.find(&input{content: []byte{0x01, 0xaa, 0xbb, 0x02, 0x02}}, 0)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, span{start: 0, end: 4}, spans[0], "the shortest jump wins")
}

func TestByteVerifier_JumpBounds(t *testing.T) {
	v := hexVerifier(t, "01 [2-3] 02")

	tests := []struct {
		content []byte
		match   bool
	}{
		{[]byte{0x01, 0x00, 0x02}, false},
		{[]byte{0x01, 0x00, 0x00, 0x02}, true},
		{[]byte{0x01, 0x00, 0x00, 0x00, 0x02}, true},
		{[]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x02}, false},
	}
	for _, tt := range tests {
		spans, err := v.find(&input{content: tt.content}, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.match, len(spans) > 0, "% x", tt.content)
	}
}

func TestByteVerifier_AlternativesPreferShortest(t *testing.T) {
	v := hexVerifier(t, "AA (BB CC | BB)")

	spans, err := v.find(&input{content: []byte{0xaa, 0xbb, 0xcc}}, 0)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, 2, spans[0].end)
}

func TestByteVerifier_AlternativeWithJump(t *testing.T) {
	v := hexVerifier(t, "01 (02 | [1] 03) 04")

	spans, err := v.find(&input{content: []byte{0x01, 0xff, 0x03, 0x04, 0x01, 0x02, 0x04}}, 0)
	require.NoError(t, err)
	assert.Equal(t, []span{{start: 0, end: 4}, {start: 4, end: 7}}, spans)
}

func TestTextPattern(t *testing.T) {
	v := &byteVerifier{elems: textPattern([]byte("Ab1"), true, false)}
	assert.Equal(t, []byte{0xdf, 0xdf, 0xff}, v.elems[0].masks)

	spans, err := v.find(&input{content: []byte("ab1 AB1 aB2")}, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4}, starts(spans))

	v = &byteVerifier{elems: textPattern([]byte("ab"), false, true)}
	assert.Equal(t, []byte{'a', 0, 'b', 0}, v.elems[0].values)
}

func TestByteVerifier_Empty(t *testing.T) {
	spans, err := (&byteVerifier{}).find(&input{content: []byte("abc")}, 0)
	require.NoError(t, err)
	assert.Empty(t, spans)
}
