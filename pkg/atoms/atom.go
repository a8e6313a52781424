package atoms

import (
	"fmt"
	"strconv"
	"strings"
)

// Atom is a short byte fragment extracted from a pattern. Every position has
// a value and a mask; mask bits set to 1 are known, bits set to 0 match
// anything.
type Atom struct {
	Bytes []byte `json:"bytes"`
	Masks []byte `json:"masks"`

	// Exact is true when the atom covers the whole pattern, so an atom hit is
	// already a full match. Scoring ignores it.
	Exact bool `json:"exact"`
}

// NewAtom builds a masked atom. If bytes and masks differ in length the atom
// ends where the shorter one ends. Masked bits of each value are cleared.
func NewAtom(bytes, masks []byte) Atom {
	n := min(len(bytes), len(masks))
	a := Atom{
		Bytes: make([]byte, n),
		Masks: make([]byte, n),
	}
	for i := 0; i < n; i++ {
		a.Bytes[i] = bytes[i] & masks[i]
		a.Masks[i] = masks[i]
	}
	return a
}

// NewExactAtom builds an atom whose bytes are all known.
func NewExactAtom(bytes []byte) Atom {
	b := make([]byte, len(bytes))
	copy(b, bytes)
	return Atom{Bytes: b, Masks: fullMask(len(bytes))}
}

// Len returns the number of positions in the atom.
func (a Atom) Len() int {
	return min(len(a.Bytes), len(a.Masks))
}

// Quality returns the quality score of the atom.
func (a Atom) Quality() int32 {
	return MaskedQuality(a.Bytes, a.Masks)
}

// IsFullyKnown reports whether no position has masked bits.
func (a Atom) IsFullyKnown() bool {
	for _, m := range a.Masks[:a.Len()] {
		if m != 0xff {
			return false
		}
	}
	return true
}

// String renders the atom as space separated hex bytes. Masked nibbles are
// written as '?'; any other partial mask is written as value/mask.
func (a Atom) String() string {
	var sb strings.Builder
	for i := 0; i < a.Len(); i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(formatByte(a.Bytes[i], a.Masks[i]))
	}
	return sb.String()
}

func formatByte(b, mask byte) string {
	const digits = "0123456789ABCDEF"
	switch mask {
	case 0xff:
		return string([]byte{digits[b>>4], digits[b&0x0f]})
	case 0x00:
		return "??"
	case 0xf0:
		return string([]byte{digits[b>>4], '?'})
	case 0x0f:
		return string([]byte{'?', digits[b&0x0f]})
	}
	return fmt.Sprintf("%02X/%02X", b, mask)
}

// ParseAtom parses the format produced by Atom.String, e.g. "4D 5A ?? 0?" or
// "41/DF". Whitespace between tokens is optional for two-character tokens.
func ParseAtom(s string) (Atom, error) {
	var bytes, masks []byte

	for _, tok := range strings.Fields(s) {
		if v, m, ok := strings.Cut(tok, "/"); ok {
			b, err := strconv.ParseUint(v, 16, 8)
			if err != nil {
				return Atom{}, fmt.Errorf("invalid byte %q: %w", v, err)
			}
			mask, err := strconv.ParseUint(m, 16, 8)
			if err != nil {
				return Atom{}, fmt.Errorf("invalid mask %q: %w", m, err)
			}
			bytes = append(bytes, byte(b))
			masks = append(masks, byte(mask))
			continue
		}

		if len(tok)%2 != 0 {
			return Atom{}, fmt.Errorf("invalid token %q: odd number of nibbles", tok)
		}
		for i := 0; i < len(tok); i += 2 {
			b, mask, err := parseNibblePair(tok[i], tok[i+1])
			if err != nil {
				return Atom{}, fmt.Errorf("invalid token %q: %w", tok, err)
			}
			bytes = append(bytes, b)
			masks = append(masks, mask)
		}
	}

	return NewAtom(bytes, masks), nil
}

// parseNibblePair parses two hex digits where either may be '?'.
func parseNibblePair(hi, lo byte) (value, mask byte, err error) {
	hv, hm, err := parseNibble(hi)
	if err != nil {
		return 0, 0, err
	}
	lv, lm, err := parseNibble(lo)
	if err != nil {
		return 0, 0, err
	}
	return hv<<4 | lv, hm<<4 | lm, nil
}

func parseNibble(c byte) (value, mask byte, err error) {
	switch {
	case c == '?':
		return 0, 0x0, nil
	case c >= '0' && c <= '9':
		return c - '0', 0xf, nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, 0xf, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, 0xf, nil
	}
	return 0, 0, fmt.Errorf("unexpected character %q", c)
}
