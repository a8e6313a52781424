package literal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/diag"
)

// HexTokenKind identifies the kind of a hex pattern token.
type HexTokenKind int

const (
	HexByte HexTokenKind = iota // a byte with an optional nibble mask
	HexJump                     // [n], [n-m], [n-] or [-]
	HexAlt                      // ( branch | branch ... )
)

// HexToken is an element of a hex pattern.
type HexToken struct {
	Kind HexTokenKind

	// HexByte
	Value byte
	Mask  byte

	// HexJump. Max is negative for an unbounded jump.
	Min int
	Max int

	// HexAlt
	Alts [][]HexToken

	Span diag.Span
}

// HexPattern is a parsed hex pattern such as `4D 5A ?? 0? [2-4] (50 | 51) 45`.
type HexPattern struct {
	Source string
	Tokens []HexToken
}

// ParseHex parses a hex pattern. Enclosing braces are optional. Syntax errors
// are returned as *diag.Report with spans into src.
func ParseHex(src string) (*HexPattern, error) {
	p := &hexParser{src: src}

	p.skipSpace()
	braced := p.peek() == '{'
	if braced {
		p.pos++
	}

	toks, err := p.items(false)
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if braced {
		if p.peek() != '}' {
			return nil, diag.InvalidPattern("expected `}`", p.spanHere())
		}
		p.pos++
		p.skipSpace()
	}
	if p.pos < len(p.src) {
		return nil, diag.InvalidPattern(fmt.Sprintf("unexpected `%c`", p.src[p.pos]), p.spanHere())
	}

	if len(toks) == 0 {
		return nil, diag.InvalidPattern("empty hex pattern", diag.Span{Start: 0, End: len(src)})
	}
	if toks[0].Kind == HexJump {
		return nil, diag.InvalidPattern("hex pattern can't start with a jump", toks[0].Span)
	}
	if last := toks[len(toks)-1]; last.Kind == HexJump {
		return nil, diag.InvalidPattern("hex pattern can't end with a jump", last.Span)
	}

	return &HexPattern{Source: src, Tokens: toks}, nil
}

type hexParser struct {
	src string
	pos int
}

func (p *hexParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *hexParser) spanHere() diag.Span {
	if p.pos >= len(p.src) {
		return diag.Span{Start: len(p.src), End: len(p.src)}
	}
	return diag.Span{Start: p.pos, End: p.pos + 1}
}

func (p *hexParser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

// items parses tokens until the end of input, `}`, or, inside a group, `|`
// and `)`.
func (p *hexParser) items(inGroup bool) ([]HexToken, error) {
	var toks []HexToken
	for {
		p.skipSpace()
		c := p.peek()
		switch {
		case c == 0 || c == '}':
			return toks, nil
		case inGroup && (c == '|' || c == ')'):
			return toks, nil
		case c == '[':
			tok, err := p.jump()
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
		case c == '(':
			if inGroup {
				return nil, diag.InvalidPattern("nested alternatives are not supported", p.spanHere())
			}
			tok, err := p.group()
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
		default:
			tok, err := p.byteToken()
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
		}
	}
}

func (p *hexParser) byteToken() (HexToken, error) {
	start := p.pos
	if p.pos+2 > len(p.src) {
		return HexToken{}, diag.InvalidPattern("incomplete byte", diag.Span{Start: start, End: len(p.src)})
	}
	v, m, err := parseByte(p.src[p.pos], p.src[p.pos+1])
	if err != nil {
		return HexToken{}, diag.InvalidPattern(err.Error(), diag.Span{Start: start, End: start + 2})
	}
	p.pos += 2
	return HexToken{Kind: HexByte, Value: v & m, Mask: m, Span: diag.Span{Start: start, End: p.pos}}, nil
}

func parseByte(hi, lo byte) (value, mask byte, err error) {
	hv, hm, ok := nibble(hi)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected character `%c`", hi)
	}
	lv, lm, ok := nibble(lo)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected character `%c`", lo)
	}
	return hv<<4 | lv, hm<<4 | lm, nil
}

func nibble(c byte) (value, mask byte, ok bool) {
	switch {
	case c == '?':
		return 0, 0, true
	case c >= '0' && c <= '9':
		return c - '0', 0xf, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, 0xf, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, 0xf, true
	}
	return 0, 0, false
}

// jump parses [n], [n-m], [n-] and [-].
func (p *hexParser) jump() (HexToken, error) {
	start := p.pos
	end := strings.IndexByte(p.src[start:], ']')
	if end < 0 {
		return HexToken{}, diag.InvalidPattern("unterminated jump", diag.Span{Start: start, End: len(p.src)})
	}
	end += start + 1
	body := p.src[start+1 : end-1]
	span := diag.Span{Start: start, End: end}
	p.pos = end

	// Offset of body within src, used for spans of the numbers.
	base := start + 1

	tok := HexToken{Kind: HexJump, Span: span}

	lo, hi, ranged := strings.Cut(body, "-")
	loT, hiT := strings.TrimSpace(lo), strings.TrimSpace(hi)

	if ranged && loT == "" && hiT != "" {
		// [-N] is a negative number, not a range.
		dash := base + len(lo)
		off := dash + 1 + strings.Index(hi, hiT)
		return HexToken{}, diag.UnexpectedNegativeNumber(diag.Span{Start: dash, End: off + len(hiT)})
	}
	if !ranged && loT == "" {
		return HexToken{}, diag.InvalidPattern("empty jump", span)
	}

	minVal, err := p.bound(lo, base)
	if err != nil {
		return HexToken{}, err
	}
	tok.Min = minVal

	switch {
	case !ranged:
		tok.Max = tok.Min
	case hiT == "":
		tok.Max = -1
	default:
		hiBase := base + len(lo) + 1
		if strings.HasPrefix(hiT, "-") {
			off := hiBase + strings.Index(hi, hiT)
			return HexToken{}, diag.UnexpectedNegativeNumber(diag.Span{Start: off, End: off + len(hiT)})
		}
		maxVal, err := p.bound(hi, hiBase)
		if err != nil {
			return HexToken{}, err
		}
		tok.Max = maxVal
		if tok.Max < tok.Min {
			return HexToken{}, diag.InvalidPattern("jump lower bound exceeds upper bound", span)
		}
	}

	return tok, nil
}

// bound parses a jump bound located at offset base of src. An empty bound
// is zero.
func (p *hexParser) bound(s string, base int) (int, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, nil
	}
	off := base + strings.Index(s, t)
	n, err := strconv.Atoi(t)
	if err != nil || n < 0 {
		return 0, diag.InvalidPattern(fmt.Sprintf("invalid jump bound `%s`", t), diag.Span{Start: off, End: off + len(t)})
	}
	return n, nil
}

func (p *hexParser) group() (HexToken, error) {
	start := p.pos
	p.pos++ // (

	var alts [][]HexToken
	for {
		branch, err := p.items(true)
		if err != nil {
			return HexToken{}, err
		}
		if len(branch) == 0 {
			return HexToken{}, diag.InvalidPattern("empty alternative", p.spanHere())
		}
		alts = append(alts, branch)

		switch p.peek() {
		case '|':
			p.pos++
		case ')':
			p.pos++
			return HexToken{Kind: HexAlt, Alts: alts, Span: diag.Span{Start: start, End: p.pos}}, nil
		default:
			return HexToken{}, diag.InvalidPattern("unterminated alternative", diag.Span{Start: start, End: len(p.src)})
		}
	}
}

// HexCandidates returns the candidate sequences of a hex pattern: every
// window of each run of bytes, and for each alternative the union of the
// leading bytes of its branches.
func (e *Extractor) HexCandidates(p *HexPattern) []Seq {
	var cands []Seq
	toks := p.Tokens

	for i := 0; i < len(toks); {
		switch toks[i].Kind {
		case HexByte:
			j := i
			for j < len(toks) && toks[j].Kind == HexByte {
				j++
			}
			cands = append(cands, e.windows(toks[i:j], i == 0 && j == len(toks))...)
			i = j
		case HexAlt:
			cands = append(cands, e.alternatives(toks[i], toks[i+1:]))
			i++
		default:
			i++
		}
	}

	if len(cands) == 0 {
		return []Seq{Infinite()}
	}
	return cands
}

func (e *Extractor) windows(run []HexToken, whole bool) []Seq {
	n := min(len(run), e.limits.MaxAtomLen)
	out := make([]Seq, 0, len(run)-n+1)
	for s := 0; s+n <= len(run); s++ {
		a := atomOf(run[s : s+n])
		a.Exact = whole && n == len(run)
		out = append(out, NewSeq(a))
	}
	return out
}

// alternatives builds one atom per branch from its leading bytes. A branch
// made only of bytes that is shorter than MaxAtomLen is extended with the
// bytes that follow the group.
func (e *Extractor) alternatives(alt HexToken, rest []HexToken) Seq {
	as := make([]atoms.Atom, 0, len(alt.Alts))
	for _, branch := range alt.Alts {
		lead := leadingBytes(branch, e.limits.MaxAtomLen)
		if len(lead) == len(branch) && len(lead) < e.limits.MaxAtomLen {
			lead = append(lead, leadingBytes(rest, e.limits.MaxAtomLen-len(lead))...)
		}
		if len(lead) == 0 {
			return Infinite()
		}
		as = append(as, atomOf(lead))
	}
	seq := NewSeq(as...)
	seq.Dedup()
	return seq
}

func leadingBytes(toks []HexToken, limit int) []HexToken {
	n := 0
	for n < len(toks) && n < limit && toks[n].Kind == HexByte {
		n++
	}
	out := make([]HexToken, n)
	copy(out, toks[:n])
	return out
}

func atomOf(run []HexToken) atoms.Atom {
	bytes := make([]byte, len(run))
	masks := make([]byte, len(run))
	for i, t := range run {
		bytes[i] = t.Value
		masks[i] = t.Mask
	}
	return atoms.NewAtom(bytes, masks)
}
