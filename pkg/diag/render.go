package diag

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// styles holds the color formatters used by Render.
type styles struct {
	severity *color.Color
	title    *color.Color
	gutter   *color.Color
	marker   *color.Color
}

func newStyles(enabled bool) *styles {
	s := &styles{
		severity: color.New(color.Bold, color.FgHiRed),
		title:    color.New(color.Bold),
		gutter:   color.New(color.FgHiBlue),
		marker:   color.New(color.Bold, color.FgYellow),
	}
	for _, c := range []*color.Color{s.severity, s.title, s.gutter, s.marker} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

// Render writes a human readable report. Each label is shown under the source
// line that contains its start, with the span underlined.
//
//	error: unexpected negative integer
//	 --> rule.yml:1:8
//	  |
//	1 | 4D 5A [-2] 00
//	  |        ^^ this number should not be negative
func Render(w io.Writer, origin, src string, r *Report, colored bool) {
	s := newStyles(colored)

	fmt.Fprintf(w, "%s %s\n", s.severity.Sprint("error:"), s.title.Sprint(r.Title))
	if len(r.Labels) == 0 {
		return
	}

	lines := strings.Split(src, "\n")
	first := position(lines, r.Labels[0].Span.Start)
	width := len(strconv.Itoa(len(lines)))
	pad := strings.Repeat(" ", width)

	fmt.Fprintf(w, "%s%s %s:%d:%d\n", pad, s.gutter.Sprint("-->"), origin, first.line, first.col)
	fmt.Fprintf(w, "%s %s\n", pad, s.gutter.Sprint("|"))

	for _, l := range r.Labels {
		p := position(lines, l.Span.Start)
		text := ""
		if p.line-1 < len(lines) {
			text = lines[p.line-1]
		}

		n := l.Span.End - l.Span.Start
		if n < 1 {
			n = 1
		}
		// Clip the underline to the end of the line.
		if rest := len(text) - (p.col - 1); rest > 0 && n > rest {
			n = rest
		}

		num := fmt.Sprintf("%*d", width, p.line)
		fmt.Fprintf(w, "%s %s %s\n", s.gutter.Sprint(num), s.gutter.Sprint("|"), text)
		fmt.Fprintf(w, "%s %s %s%s %s\n",
			pad,
			s.gutter.Sprint("|"),
			strings.Repeat(" ", p.col-1),
			s.marker.Sprint(strings.Repeat("^", n)),
			s.marker.Sprint(l.Text),
		)
	}
}

type point struct {
	line int // 1-based
	col  int // 1-based, in bytes
}

// position converts a byte offset into a line/column pair. Offsets past the
// end of the source map to the end of the last line.
func position(lines []string, offset int) point {
	if offset < 0 {
		offset = 0
	}
	for i, l := range lines {
		if offset <= len(l) {
			return point{line: i + 1, col: offset + 1}
		}
		offset -= len(l) + 1
	}
	last := len(lines) - 1
	return point{line: last + 1, col: len(lines[last]) + 1}
}
