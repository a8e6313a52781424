package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetAtomsFlags() {
	atomsRulesPath = ""
	atomsRulesInclude = ""
	atomsRulesExclude = ""
	atomsFormat = "table"
	atomsCache = ""
	atomsWorkers = 0
	atomsFallbacks = false
}

func TestRunAtoms(t *testing.T) {
	cmd, out, _ := newTestCommand()
	resetAtomsFlags()

	err := runAtoms(cmd, []string{})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "MinQuality")
	assert.Contains(t, output, "cred.pem_private_key")
	assert.Contains(t, output, "exe.mz_header")
}

func TestRunAtomsJSON(t *testing.T) {
	cmd, out, _ := newTestCommand()
	resetAtomsFlags()
	atomsFormat = "json"
	atomsRulesPath = writeRules(t, `rules:
  - name: Access Key
    id: test.akia
    pattern: 'AKIA[0-9A-Z]{16}'
  - name: Anything
    id: test.any
    pattern: '.+'
`)

	err := runAtoms(cmd, []string{})
	require.NoError(t, err)

	var sels []atomSelection
	require.NoError(t, json.Unmarshal(out.Bytes(), &sels))
	require.Len(t, sels, 2)

	assert.Equal(t, "test.akia", sels[0].RuleID)
	assert.Equal(t, []string{"41 4B 49 41"}, sels[0].Atoms)
	require.NotNil(t, sels[0].Quality)
	assert.Equal(t, uint32(1), sels[0].Quality.SeqLen)
	assert.False(t, sels[0].Fallback)

	assert.Equal(t, "test.any", sels[1].RuleID)
	assert.True(t, sels[1].Fallback)
	assert.Nil(t, sels[1].Quality)
}

func TestRunAtoms_FallbacksOnly(t *testing.T) {
	cmd, out, _ := newTestCommand()
	resetAtomsFlags()
	atomsFallbacks = true
	atomsRulesPath = writeRules(t, `rules:
  - name: Access Key
    id: test.akia
    pattern: 'AKIA[0-9A-Z]{16}'
  - name: Anything
    id: test.any
    pattern: '.+'
`)

	err := runAtoms(cmd, []string{})
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "test.any")
	assert.Contains(t, output, "fallback")
	assert.NotContains(t, output, "test.akia")
}

func TestRunAtoms_Cache(t *testing.T) {
	resetAtomsFlags()
	atomsFormat = "json"
	atomsCache = filepath.Join(t.TempDir(), "atoms.db")
	atomsRulesInclude = "^cred\\."

	cmd, out, _ := newTestCommand()
	require.NoError(t, runAtoms(cmd, []string{}))

	var first []atomSelection
	require.NoError(t, json.Unmarshal(out.Bytes(), &first))
	for _, s := range first {
		assert.False(t, s.Cached, s.RuleID)
	}

	cmd, out, _ = newTestCommand()
	require.NoError(t, runAtoms(cmd, []string{}))

	var second []atomSelection
	require.NoError(t, json.Unmarshal(out.Bytes(), &second))
	require.Len(t, second, len(first))
	for i, s := range second {
		assert.True(t, s.Cached, s.RuleID)
		assert.Equal(t, first[i].Atoms, s.Atoms)
	}
}

func TestRunAtoms_InvalidRule(t *testing.T) {
	cmd, _, errOut := newTestCommand()
	resetAtomsFlags()
	atomsRulesPath = writeRules(t, `rules:
  - name: Wide Hex
    id: test.wide_hex
    kind: hex
    pattern: "4D 5A"
    wide: true
`)

	err := runAtoms(cmd, []string{})
	require.Error(t, err)
	assert.Contains(t, errOut.String(), "wide")
}
