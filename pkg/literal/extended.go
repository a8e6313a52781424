package literal

import (
	"strings"
)

// StripExtendedMode rewrites a free-spacing pattern, one that starts with
// (?x), into its compact form. Outside character classes the flag, (?# )
// comments, # comments running to the end of the line, (?s)/(?m) flags and
// unescaped whitespace are removed. Character class bodies are copied as is,
// since whitespace and # are literal there. Other patterns are returned
// unchanged.
//
// Go's regexp/syntax does not accept free-spacing mode.
func StripExtendedMode(pattern string) string {
	trimmed := strings.TrimSpace(pattern)
	if !strings.HasPrefix(trimmed, "(?x)") {
		return pattern
	}
	pattern = strings.TrimPrefix(trimmed, "(?x)")

	var result strings.Builder
	inClass := false

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]

		if c == '\\' {
			result.WriteByte(c)
			if i+1 < len(pattern) {
				i++
				result.WriteByte(pattern[i])
			}
			continue
		}

		if inClass {
			result.WriteByte(c)
			if c == ']' {
				inClass = false
			}
			continue
		}

		rest := pattern[i:]
		switch {
		case c == '[':
			inClass = true
			result.WriteByte(c)
			// A ']' right after '[' or '[^' is a literal member.
			if strings.HasPrefix(rest, "[^") {
				result.WriteByte('^')
				i++
			}
			if i+1 < len(pattern) && pattern[i+1] == ']' {
				result.WriteByte(']')
				i++
			}
		case strings.HasPrefix(rest, "(?#"):
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return result.String()
			}
			i += end
		case strings.HasPrefix(rest, "(?s)"), strings.HasPrefix(rest, "(?m)"):
			// DotAll and MultiLine are applied by the engines themselves.
			i += 3
		case c == '#':
			end := strings.IndexByte(rest, '\n')
			if end < 0 {
				return result.String()
			}
			i += end
		case c == ' ', c == '\t', c == '\n', c == '\r', c == '\f', c == '\v':
		default:
			result.WriteByte(c)
		}
	}

	return result.String()
}
