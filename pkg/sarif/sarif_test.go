package sarif

import (
	"encoding/json"
	"testing"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/compiler"
	"github.com/praetorian-inc/atomsel/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compiledRule(id, name string, as ...atoms.Atom) *compiler.CompiledRule {
	cr := &compiler.CompiledRule{
		Rule:  &types.Rule{ID: id, Name: name, Kind: types.KindRegex},
		Atoms: as,
	}
	if len(as) == 0 {
		cr.Fallback = true
		return cr
	}
	q := atoms.SeqQualityOf(as)
	cr.Quality = &q
	return cr
}

func awsMatch() *types.Match {
	return &types.Match{
		RuleID:   "cred.aws",
		RuleName: "AWS API Key",
		Location: types.Location{
			Offset: types.OffsetSpan{Start: 100, End: 120},
			Source: types.SourceSpan{
				Start: types.SourcePoint{Line: 10, Column: 5},
				End:   types.SourcePoint{Line: 10, Column: 25},
			},
		},
		Snippet: types.Snippet{
			Before:   []byte("key: "),
			Matching: []byte("AKIATESTFAKEKEY12345"),
		},
	}
}

func TestNewReport(t *testing.T) {
	report := NewReport("1.2.3")

	assert.Equal(t, SchemaURI, report.Schema)
	assert.Equal(t, Version, report.Version)
	assert.Len(t, report.Runs, 1)
	assert.Equal(t, ToolName, report.Runs[0].Tool.Driver.Name)
	assert.Equal(t, "1.2.3", report.Runs[0].Tool.Driver.Version)
}

func TestAddRule(t *testing.T) {
	report := NewReport("dev")

	cr := compiledRule("cred.aws", "AWS API Key", atoms.NewExactAtom([]byte("AKIA")))
	cr.Rule.Description = "Detects AWS API keys"
	cr.Rule.References = []string{"https://docs.aws.amazon.com"}
	cr.Rule.Categories = []string{"secret"}
	report.AddRule(cr)

	require.Len(t, report.Runs[0].Tool.Driver.Rules, 1)
	rule := report.Runs[0].Tool.Driver.Rules[0]
	assert.Equal(t, "cred.aws", rule.ID)
	assert.Equal(t, "AWS API Key", rule.Name)
	assert.Equal(t, "Detects AWS API keys", rule.ShortDescription.Text)
	assert.Equal(t, "https://docs.aws.amazon.com", rule.HelpURI)

	props := rule.Properties
	assert.Equal(t, types.KindRegex, props.Kind)
	assert.Equal(t, []string{"secret"}, props.Tags)
	assert.Equal(t, []string{"41 4B 49 41"}, props.Atoms)
	assert.False(t, props.Fallback)
	require.NotNil(t, props.MinAtomLen)
	assert.Equal(t, uint32(4), *props.MinAtomLen)
	require.NotNil(t, props.MinAtomQuality)
	assert.Equal(t, atoms.Quality([]byte("AKIA")), *props.MinAtomQuality)
}

func TestAddRule_Fallback(t *testing.T) {
	report := NewReport("dev")
	report.AddRule(compiledRule("any", "Anything"))

	props := report.Runs[0].Tool.Driver.Rules[0].Properties
	assert.True(t, props.Fallback)
	assert.Empty(t, props.Atoms)
	assert.Nil(t, props.MinAtomLen)
	assert.Nil(t, props.MinAtomQuality)
}

func TestAddResult(t *testing.T) {
	report := NewReport("dev")
	report.AddRule(compiledRule("cred.aws", "AWS API Key", atoms.NewExactAtom([]byte("AKIA"))))

	report.AddResult(awsMatch(), "/path/to/secrets.txt")

	require.Len(t, report.Runs[0].Results, 1)
	result := report.Runs[0].Results[0]
	assert.Equal(t, "cred.aws", result.RuleID)
	assert.Equal(t, 0, result.RuleIndex)
	assert.Equal(t, "warning", result.Level)
	assert.Equal(t, "AWS API Key", result.Message.Text)
	require.Len(t, result.Locations, 1)

	location := result.Locations[0].PhysicalLocation
	assert.Equal(t, "file:///path/to/secrets.txt", location.ArtifactLocation.URI)

	region := location.Region
	assert.Equal(t, 10, region.StartLine)
	assert.Equal(t, 5, region.StartColumn)
	assert.Equal(t, 10, region.EndLine)
	assert.Equal(t, 25, region.EndColumn)
	assert.Equal(t, int64(100), region.ByteOffset)
	assert.Equal(t, int64(20), region.ByteLength)
	require.NotNil(t, region.Snippet)
	assert.Equal(t, "AKIATESTFAKEKEY12345", region.Snippet.Text)
}

func TestAddResult_UnknownRule(t *testing.T) {
	report := NewReport("dev")
	report.AddResult(awsMatch(), "a.txt")
	assert.Equal(t, -1, report.Runs[0].Results[0].RuleIndex)
}

func TestAddResult_BinarySnippet(t *testing.T) {
	report := NewReport("dev")

	match := &types.Match{
		RuleID:  "exe.mz",
		Snippet: types.Snippet{Matching: []byte{0x4d, 0x5a, 0x90, 0x00}},
	}
	report.AddResult(match, "tool.exe")

	snippet := report.Runs[0].Results[0].Locations[0].PhysicalLocation.Region.Snippet
	require.NotNil(t, snippet)
	assert.Empty(t, snippet.Text)
	assert.Equal(t, []byte{0x4d, 0x5a, 0x90, 0x00}, snippet.Binary)
}

func TestAddResult_NoSnippet(t *testing.T) {
	report := NewReport("dev")
	report.AddResult(&types.Match{RuleID: "x"}, "a.txt")
	assert.Nil(t, report.Runs[0].Results[0].Locations[0].PhysicalLocation.Region.Snippet)
}

func TestToJSON(t *testing.T) {
	report := NewReport("dev")
	report.AddRule(compiledRule("cred.aws", "AWS API Key", atoms.NewExactAtom([]byte("AKIA"))))
	report.AddResult(awsMatch(), "/test/file.txt")

	jsonBytes, err := report.ToJSON()
	require.NoError(t, err)

	// Verify it's valid JSON
	var parsed map[string]interface{}
	err = json.Unmarshal(jsonBytes, &parsed)
	require.NoError(t, err)

	// Check schema is present
	assert.Equal(t, SchemaURI, parsed["$schema"])
	assert.Equal(t, Version, parsed["version"])
	assert.Contains(t, string(jsonBytes), `"minAtomLength": 4`)
}

func TestRelativePathConversion(t *testing.T) {
	report := NewReport("dev")

	match := &types.Match{RuleID: "test"}

	// Test absolute path
	report.AddResult(match, "/absolute/path/file.txt")
	assert.Equal(t, "file:///absolute/path/file.txt", report.Runs[0].Results[0].Locations[0].PhysicalLocation.ArtifactLocation.URI)

	// Test relative path
	report.AddResult(match, "relative/path/file.txt")
	assert.Equal(t, "relative/path/file.txt", report.Runs[0].Results[1].Locations[0].PhysicalLocation.ArtifactLocation.URI)
}
