package types

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of bytes in the span.
func (s OffsetSpan) Len() int64 {
	return s.End - s.Start
}

// SourcePoint is line:column position (1-based).
type SourcePoint struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SourceSpan is start-end line:column range.
type SourceSpan struct {
	Start SourcePoint `json:"start"`
	End   SourcePoint `json:"end"`
}

// Location combines byte offsets and source positions.
type Location struct {
	Offset OffsetSpan `json:"offset"`
	Source SourceSpan `json:"source"`
}

// NewLocation builds the location of content[start:end].
func NewLocation(content []byte, start, end int) Location {
	sl, sc := LineColumn(content, start)
	el, ec := LineColumn(content, end)
	return Location{
		Offset: OffsetSpan{Start: int64(start), End: int64(end)},
		Source: SourceSpan{
			Start: SourcePoint{Line: sl, Column: sc},
			End:   SourcePoint{Line: el, Column: ec},
		},
	}
}

// LineColumn computes the 1-based line and column of a byte offset.
func LineColumn(content []byte, offset int) (line, column int) {
	line, column = 1, 1
	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
