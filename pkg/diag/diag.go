package diag

import (
	"fmt"
	"strings"
)

// Kind identifies the class of a compile diagnostic.
type Kind int

const (
	KindWrongType Kind = iota
	KindMismatchingTypes
	KindUnexpectedNegativeNumber
	KindInvalidPattern
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindWrongType:
		return "wrong_type"
	case KindMismatchingTypes:
		return "mismatching_types"
	case KindUnexpectedNegativeNumber:
		return "unexpected_negative_number"
	case KindInvalidPattern:
		return "invalid_pattern"
	default:
		return "unknown"
	}
}

// Span is a byte range [Start, End) in the source the diagnostic refers to.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Label attaches a message to a span of the source.
type Label struct {
	Text string `json:"text"`
	Span Span   `json:"span"`
}

// Report is a compile error with labeled source spans. It implements error so
// callers can wrap it and recover it with errors.As.
type Report struct {
	Kind   Kind    `json:"kind"`
	Title  string  `json:"title"`
	Labels []Label `json:"labels"`

	// Detail is the rendered report including the source excerpt. It is set
	// by Attach.
	Detail string `json:"detail,omitempty"`
}

// Error implements error.
func (r *Report) Error() string {
	if len(r.Labels) == 0 {
		return r.Title
	}
	parts := make([]string, len(r.Labels))
	for i, l := range r.Labels {
		parts[i] = fmt.Sprintf("%s at %d..%d", l.Text, l.Span.Start, l.Span.End)
	}
	return r.Title + ": " + strings.Join(parts, "; ")
}

// Attach renders the report against src without colors and stores the
// result in Detail. It returns r for chaining.
func (r *Report) Attach(origin, src string) *Report {
	var sb strings.Builder
	Render(&sb, origin, src, r, false)
	r.Detail = sb.String()
	return r
}

// WrongType reports an expression of an unexpected type.
func WrongType(expected, actual string, span Span) *Report {
	return &Report{
		Kind:  KindWrongType,
		Title: "wrong type",
		Labels: []Label{{
			Text: fmt.Sprintf("expression should be %s, but is `%s`", expected, actual),
			Span: span,
		}},
	}
}

// MismatchingTypes reports two operands whose types can't be combined.
func MismatchingTypes(type1 string, span1 Span, type2 string, span2 Span) *Report {
	return &Report{
		Kind:  KindMismatchingTypes,
		Title: "mismatching operator types",
		Labels: []Label{
			{Text: fmt.Sprintf("this expression is `%s`", type1), Span: span1},
			{Text: fmt.Sprintf("this expression is `%s`", type2), Span: span2},
		},
	}
}

// UnexpectedNegativeNumber reports a negative integer where only
// non-negative values are allowed.
func UnexpectedNegativeNumber(span Span) *Report {
	return &Report{
		Kind:   KindUnexpectedNegativeNumber,
		Title:  "unexpected negative integer",
		Labels: []Label{{Text: "this number should not be negative", Span: span}},
	}
}

// InvalidPattern reports a syntax error in a pattern.
func InvalidPattern(msg string, span Span) *Report {
	return &Report{
		Kind:   KindInvalidPattern,
		Title:  "invalid pattern",
		Labels: []Label{{Text: msg, Span: span}},
	}
}
