package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/diag"
	"golang.org/x/term"
)

// styles holds color formatters for human-readable output.
type styles struct {
	path     *color.Color
	position *color.Color
	ruleID   *color.Color
	ruleName *color.Color
	match    *color.Color
	dim      *color.Color
}

func newStyles(enabled bool) *styles {
	s := &styles{
		path:     color.New(color.Bold, color.FgHiWhite),
		position: color.New(color.FgHiBlack),
		ruleID:   color.New(color.FgHiGreen),
		ruleName: color.New(color.Bold, color.FgHiBlue),
		match:    color.New(color.FgYellow),
		dim:      color.New(color.Faint),
	}

	if !enabled {
		for _, c := range []*color.Color{s.path, s.position, s.ruleID, s.ruleName, s.match, s.dim} {
			c.DisableColor()
		}
	}

	return s
}

// colorEnabled resolves a --color value for output written to w. "auto"
// enables colors on terminals unless NO_COLOR is set.
func colorEnabled(mode string, w io.Writer) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "", "auto":
		if os.Getenv("NO_COLOR") != "" {
			return false, nil
		}
		f, ok := w.(*os.File)
		return ok && term.IsTerminal(int(f.Fd())), nil
	default:
		return false, fmt.Errorf("unknown color mode: %s (want auto, always or never)", mode)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// formatAtom renders an atom as a quoted string when all of its bytes are
// known and printable, and in hex notation otherwise.
func formatAtom(a atoms.Atom) string {
	if a.Len() == 0 {
		return `""`
	}
	if !a.IsFullyKnown() {
		return a.String()
	}
	for _, b := range a.Bytes[:a.Len()] {
		if b < 0x20 || b > 0x7e {
			return a.String()
		}
	}
	return strconv.Quote(string(a.Bytes[:a.Len()]))
}

func formatAtoms(as []atoms.Atom, limit int) string {
	parts := make([]string, 0, min(len(as), limit)+1)
	for i, a := range as {
		if i == limit {
			parts = append(parts, fmt.Sprintf("(+%d)", len(as)-limit))
			break
		}
		parts = append(parts, formatAtom(a))
	}
	return strings.Join(parts, " ")
}

// printDiagnostic writes the source excerpt of a diagnostic wrapped in err.
func printDiagnostic(w io.Writer, err error) {
	var rep *diag.Report
	if errors.As(err, &rep) && rep.Detail != "" {
		fmt.Fprint(w, rep.Detail)
	}
}

// printable replaces control and non-ASCII bytes with '.'.
func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c == '\t' || (c >= 0x20 && c <= 0x7e) {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
