// Package sarif writes scan results as SARIF 2.1.0 logs.
package sarif

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/praetorian-inc/atomsel/pkg/compiler"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

// SARIF 2.1.0 constants
const (
	SchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version   = "2.1.0"
	ToolName  = "atomsel"
)

// Report is the top-level SARIF log.
type Report struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run is a single invocation of the tool.
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver contains tool metadata and the rules of the run.
type Driver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Rules   []Rule `json:"rules,omitempty"`
}

// Rule is a reportingDescriptor. Its properties record the atoms the rule
// was prefiltered with.
type Rule struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	ShortDescription Text           `json:"shortDescription"`
	HelpURI          string         `json:"helpUri,omitempty"`
	Properties       RuleProperties `json:"properties"`
}

// RuleProperties is the property bag of a Rule.
type RuleProperties struct {
	Kind           types.Kind `json:"kind"`
	Tags           []string   `json:"tags,omitempty"`
	Atoms          []string   `json:"atoms"`
	Fallback       bool       `json:"fallback"`
	MinAtomLen     *uint32    `json:"minAtomLength,omitempty"`
	MinAtomQuality *int32     `json:"minAtomQuality,omitempty"`
}

// Text is a SARIF message string.
type Text struct {
	Text string `json:"text"`
}

// Result is a single match.
type Result struct {
	RuleID    string     `json:"ruleId"`
	RuleIndex int        `json:"ruleIndex"`
	Level     string     `json:"level"`
	Message   Text       `json:"message"`
	Locations []Location `json:"locations"`
}

// Location describes where a result was found
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation specifies file location
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

// ArtifactLocation identifies the file
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region holds both the line/column range and the byte range of a match.
// Binary snippets are reported base64 encoded.
type Region struct {
	StartLine   int      `json:"startLine"`
	StartColumn int      `json:"startColumn"`
	EndLine     int      `json:"endLine"`
	EndColumn   int      `json:"endColumn"`
	ByteOffset  int64    `json:"byteOffset"`
	ByteLength  int64    `json:"byteLength"`
	Snippet     *Snippet `json:"snippet,omitempty"`
}

// Snippet is an artifactContent with either text or binary content.
type Snippet struct {
	Text   string `json:"text,omitempty"`
	Binary []byte `json:"binary,omitempty"`
}

// NewReport creates an empty report for the given tool version.
func NewReport(version string) *Report {
	return &Report{
		Schema:  SchemaURI,
		Version: Version,
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:    ToolName,
						Version: version,
						Rules:   []Rule{},
					},
				},
				Results: []Result{},
			},
		},
	}
}

// AddRule adds a compiled rule and its selected atoms to the report.
func (r *Report) AddRule(cr *compiler.CompiledRule) {
	rule := cr.Rule
	sarifRule := Rule{
		ID:               rule.ID,
		Name:             rule.Name,
		ShortDescription: Text{Text: rule.Description},
		Properties: RuleProperties{
			Kind:     rule.EffectiveKind(),
			Tags:     rule.Categories,
			Atoms:    make([]string, 0, len(cr.Atoms)),
			Fallback: cr.Fallback,
		},
	}

	// Add first reference as helpUri if available
	if len(rule.References) > 0 {
		sarifRule.HelpURI = rule.References[0]
	}

	for _, a := range cr.Atoms {
		sarifRule.Properties.Atoms = append(sarifRule.Properties.Atoms, a.String())
	}
	if q := cr.Quality; q != nil {
		sarifRule.Properties.MinAtomLen = &q.MinAtomLen
		sarifRule.Properties.MinAtomQuality = &q.MinAtomQuality
	}

	r.Runs[0].Tool.Driver.Rules = append(r.Runs[0].Tool.Driver.Rules, sarifRule)
}

// AddResult adds a match found in filePath. Matches of rules that were not
// added with AddRule get ruleIndex -1.
func (r *Report) AddResult(match *types.Match, filePath string) {
	loc := match.Location
	region := Region{
		StartLine:   loc.Source.Start.Line,
		StartColumn: loc.Source.Start.Column,
		EndLine:     loc.Source.End.Line,
		EndColumn:   loc.Source.End.Column,
		ByteOffset:  loc.Offset.Start,
		ByteLength:  loc.Offset.Len(),
	}

	if m := match.Snippet.Matching; len(m) > 0 {
		if isText(m) {
			region.Snippet = &Snippet{Text: string(m)}
		} else {
			region.Snippet = &Snippet{Binary: m}
		}
	}

	result := Result{
		RuleID:    match.RuleID,
		RuleIndex: r.ruleIndex(match.RuleID),
		Level:     "warning",
		Message:   Text{Text: match.RuleName},
		Locations: []Location{
			{
				PhysicalLocation: PhysicalLocation{
					ArtifactLocation: ArtifactLocation{URI: formatFileURI(filePath)},
					Region:           region,
				},
			},
		},
	}

	r.Runs[0].Results = append(r.Runs[0].Results, result)
}

// ToJSON serializes the report to JSON bytes
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func (r *Report) ruleIndex(id string) int {
	for i, rule := range r.Runs[0].Tool.Driver.Rules {
		if rule.ID == id {
			return i
		}
	}
	return -1
}

// isText reports whether b is valid UTF-8 without control characters other
// than whitespace.
func isText(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, c := range b {
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' {
			return false
		}
	}
	return true
}

// formatFileURI converts a file path to SARIF URI format
// Absolute paths get file:// prefix, relative paths stay as-is
func formatFileURI(path string) string {
	if filepath.IsAbs(path) {
		// Normalize path separators for URI format
		path = filepath.ToSlash(path)
		// Ensure path starts with /
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		return "file://" + path
	}
	// Relative paths stay as-is
	return filepath.ToSlash(path)
}
