package matcher

import (
	"github.com/praetorian-inc/atomsel/pkg/literal"
)

type elemKind int

const (
	elemBytes elemKind = iota
	elemJump
	elemAlt
)

// element is one piece of a byte pattern: a run of masked bytes, a jump or a
// group of alternatives.
type element struct {
	kind     elemKind
	values   []byte // elemBytes, already masked
	masks    []byte
	min, max int // elemJump; max < 0 is unbounded
	alts     [][]element
}

// byteVerifier finds matches of text and hex rules. Matches are reported at
// most once per start offset. Jumps are tried shortest first and the
// shortest alternative wins.
type byteVerifier struct {
	elems []element
}

// textPattern builds the byte pattern of a text rule. Nocase clears the case
// bit of ASCII letters in the mask.
func textPattern(text []byte, nocase, wide bool) []element {
	data := text
	if wide {
		data = literal.Widen(text)
	}
	e := element{
		kind:   elemBytes,
		values: make([]byte, len(data)),
		masks:  make([]byte, len(data)),
	}
	for i, b := range data {
		mask := byte(0xff)
		if nocase && isASCIILetter(b) {
			mask = 0xdf
		}
		e.values[i] = b & mask
		e.masks[i] = mask
	}
	return []element{e}
}

// hexPattern builds the byte pattern of parsed hex tokens.
func hexPattern(toks []literal.HexToken) []element {
	var elems []element
	for _, t := range toks {
		switch t.Kind {
		case literal.HexByte:
			if n := len(elems); n > 0 && elems[n-1].kind == elemBytes {
				elems[n-1].values = append(elems[n-1].values, t.Value&t.Mask)
				elems[n-1].masks = append(elems[n-1].masks, t.Mask)
				continue
			}
			elems = append(elems, element{
				kind:   elemBytes,
				values: []byte{t.Value & t.Mask},
				masks:  []byte{t.Mask},
			})
		case literal.HexJump:
			elems = append(elems, element{kind: elemJump, min: t.Min, max: t.Max})
		case literal.HexAlt:
			alt := element{kind: elemAlt}
			for _, branch := range t.Alts {
				alt.alts = append(alt.alts, hexPattern(branch))
			}
			elems = append(elems, alt)
		}
	}
	return elems
}

func (v *byteVerifier) find(in *input, limit int) ([]span, error) {
	if len(v.elems) == 0 {
		return nil, nil
	}

	var spans []span
	data := in.content
	for pos := 0; pos < len(data); pos++ {
		end, ok := matchAt(v.elems, data, pos)
		if !ok {
			continue
		}
		spans = append(spans, span{start: pos, end: end})
		if limit > 0 && len(spans) >= limit {
			break
		}
	}
	return spans, nil
}

// matchAt reports whether elems match data at pos and where the shortest
// match ends.
func matchAt(elems []element, data []byte, pos int) (int, bool) {
	if len(elems) == 0 {
		return pos, true
	}

	e, rest := elems[0], elems[1:]
	switch e.kind {
	case elemBytes:
		if pos+len(e.values) > len(data) {
			return 0, false
		}
		for i, v := range e.values {
			if data[pos+i]&e.masks[i] != v {
				return 0, false
			}
		}
		return matchAt(rest, data, pos+len(e.values))

	case elemJump:
		hi := len(data) - pos
		if e.max >= 0 {
			hi = min(hi, e.max)
		}
		for n := e.min; n <= hi; n++ {
			if end, ok := matchAt(rest, data, pos+n); ok {
				return end, true
			}
		}
		return 0, false

	case elemAlt:
		best, found := 0, false
		for _, branch := range e.alts {
			joined := append(branch[:len(branch):len(branch)], rest...)
			if end, ok := matchAt(joined, data, pos); ok && (!found || end < best) {
				best, found = end, true
			}
		}
		return best, found
	}
	return 0, false
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
