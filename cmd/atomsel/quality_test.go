package main

import (
	"testing"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunQuality(t *testing.T) {
	cmd, out, _ := newTestCommand()
	qualityText = false

	err := runQuality(cmd, []string{"4D 5A 90 00", "00 ??"})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "4D 5A 90 00")
	assert.Contains(t, output, "00 ??")

	want := atoms.SeqQualityOf([]atoms.Atom{
		atoms.NewExactAtom([]byte{0x4d, 0x5a, 0x90, 0x00}),
		atoms.NewAtom([]byte{0x00, 0x00}, []byte{0xff, 0x00}),
	})
	assert.Contains(t, output, "sequence: "+want.String())
}

func TestRunQuality_Text(t *testing.T) {
	cmd, out, _ := newTestCommand()
	qualityText = true
	defer func() { qualityText = false }()

	err := runQuality(cmd, []string{"AKIA"})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, `"AKIA"`)
	assert.Contains(t, output, "41 4B 49 41")
}

func TestRunQuality_InvalidAtom(t *testing.T) {
	cmd, _, _ := newTestCommand()
	qualityText = false

	err := runQuality(cmd, []string{"4D 5"})
	assert.Error(t, err)
}
