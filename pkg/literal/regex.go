package literal

import (
	"fmt"
	"regexp/syntax"
	"unicode"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
)

// lit is a literal under construction. exact means the literal is a complete
// match of the sub-expression it was extracted from, so it can still be
// extended by whatever follows.
type lit struct {
	b     []byte
	exact bool
}

// litSet is the working form of a Seq during extraction.
type litSet struct {
	lits     []lit
	infinite bool
}

// emptyString is the set matching only the empty string.
func emptyString() litSet {
	return litSet{lits: []lit{{exact: true}}}
}

func (s litSet) anyExact() bool {
	for _, l := range s.lits {
		if l.exact {
			return true
		}
	}
	return false
}

func (s litSet) inexact() litSet {
	if s.infinite {
		return s
	}
	out := make([]lit, len(s.lits))
	for i, l := range s.lits {
		out[i] = lit{b: l.b, exact: false}
	}
	return litSet{lits: out}
}

// Extractor produces candidate literal sequences from patterns.
type Extractor struct {
	limits Limits
}

// NewExtractor creates an extractor. Zero limits take their default value.
func NewExtractor(limits Limits) *Extractor {
	return &Extractor{limits: limits.normalized()}
}

// Limits returns the effective limits of the extractor.
func (e *Extractor) Limits() Limits {
	return e.limits
}

// RegexCandidates returns the candidate sequences of a regular expression.
//
// Every match of the pattern contains a match of any suffix of its top-level
// concatenation, so the prefixes of each suffix are all valid candidates. The
// first candidate is the prefix sequence of the whole pattern.
func (e *Extractor) RegexCandidates(pattern string) ([]Seq, error) {
	re, err := syntax.Parse(StripExtendedMode(pattern), syntax.Perl)
	if err != nil {
		return nil, fmt.Errorf("parsing pattern: %w", err)
	}

	for re.Op == syntax.OpCapture {
		re = re.Sub[0]
	}

	if re.Op != syntax.OpConcat || len(re.Sub) < 2 {
		return []Seq{e.finish(e.prefixes(re), true)}, nil
	}

	cands := make([]Seq, 0, len(re.Sub))
	for i := range re.Sub {
		suffix := &syntax.Regexp{Op: syntax.OpConcat, Flags: re.Flags, Sub: re.Sub[i:]}
		cands = append(cands, e.finish(e.prefixes(suffix), i == 0))
	}
	return cands, nil
}

// prefixes computes the set of literal prefixes of re.
func (e *Extractor) prefixes(re *syntax.Regexp) litSet {
	switch re.Op {
	case syntax.OpNoMatch:
		return litSet{}

	case syntax.OpEmptyMatch,
		syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText,
		syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return emptyString()

	case syntax.OpLiteral:
		return e.literal(re.Rune, re.Flags&syntax.FoldCase != 0)

	case syntax.OpCharClass:
		return e.class(re.Rune)

	case syntax.OpCapture:
		return e.prefixes(re.Sub[0])

	case syntax.OpStar:
		return e.union(e.prefixes(re.Sub[0]).inexact(), emptyString())

	case syntax.OpPlus:
		return e.prefixes(re.Sub[0]).inexact()

	case syntax.OpQuest:
		return e.union(e.prefixes(re.Sub[0]), emptyString())

	case syntax.OpRepeat:
		return e.repeat(re)

	case syntax.OpConcat:
		set := emptyString()
		for _, sub := range re.Sub {
			set = e.cross(set, e.prefixes(sub))
			if set.infinite || !set.anyExact() {
				break
			}
		}
		return set

	case syntax.OpAlternate:
		var set litSet
		for _, sub := range re.Sub {
			set = e.union(set, e.prefixes(sub))
			if set.infinite {
				break
			}
		}
		return set
	}

	// OpAnyChar, OpAnyCharNotNL
	return litSet{infinite: true}
}

func (e *Extractor) repeat(re *syntax.Regexp) litSet {
	child := e.prefixes(re.Sub[0])

	if re.Min == 0 {
		switch re.Max {
		case 0:
			return emptyString()
		case 1:
			return e.union(child, emptyString())
		default:
			return e.union(child.inexact(), emptyString())
		}
	}

	n := min(re.Min, e.limits.MaxRepeat)
	set := emptyString()
	for i := 0; i < n; i++ {
		set = e.cross(set, child)
		if set.infinite || !set.anyExact() {
			break
		}
	}

	if re.Max != re.Min || re.Min > e.limits.MaxRepeat {
		set = set.inexact()
	}
	return set
}

// literal expands a literal string. With foldCase every rune is replaced by
// all its simple case foldings.
func (e *Extractor) literal(runes []rune, foldCase bool) litSet {
	set := emptyString()
	for _, r := range runes {
		variants := []rune{r}
		if foldCase {
			variants = foldOrbit(r)
		}
		set = e.cross(set, e.runes(variants))
		if set.infinite || !set.anyExact() {
			break
		}
	}
	return set
}

// class expands a character class given as rune range pairs.
func (e *Extractor) class(ranges []rune) litSet {
	size := 0
	for i := 0; i+1 < len(ranges); i += 2 {
		size += int(ranges[i+1]-ranges[i]) + 1
		if size > e.limits.MaxClassSize {
			return litSet{infinite: true}
		}
	}

	var runes []rune
	for i := 0; i+1 < len(ranges); i += 2 {
		for r := ranges[i]; r <= ranges[i+1]; r++ {
			runes = append(runes, r)
		}
	}
	return e.runes(runes)
}

// runes builds one single-byte literal per rune. Patterns are matched against
// raw bytes, each rune standing for the byte with the same value, so a rune
// above 0xFF has no byte form and the set becomes infinite.
func (e *Extractor) runes(runes []rune) litSet {
	lits := make([]lit, 0, len(runes))
	for _, r := range runes {
		if r > 0xff {
			return litSet{infinite: true}
		}
		lits = append(lits, lit{b: []byte{byte(r)}, exact: true})
	}
	return e.bounded(lits)
}

// cross concatenates every exact literal of a with every literal of b.
// Inexact literals of a can't be extended and are kept as they are.
func (e *Extractor) cross(a, b litSet) litSet {
	if a.infinite {
		return a
	}
	if b.infinite {
		return a.inexact()
	}

	var out []lit
	for _, x := range a.lits {
		if !x.exact {
			out = append(out, x)
			continue
		}
		for _, y := range b.lits {
			joined := make([]byte, 0, len(x.b)+len(y.b))
			joined = append(joined, x.b...)
			joined = append(joined, y.b...)
			out = append(out, e.truncate(lit{b: joined, exact: y.exact}, e.limits.MaxAtomLen))
		}
	}
	return e.bounded(out)
}

func (e *Extractor) union(a, b litSet) litSet {
	if a.infinite || b.infinite {
		return litSet{infinite: true}
	}
	out := make([]lit, 0, len(a.lits)+len(b.lits))
	out = append(out, a.lits...)
	out = append(out, b.lits...)
	return e.bounded(out)
}

func (e *Extractor) truncate(l lit, n int) lit {
	if len(l.b) <= n {
		return l
	}
	return lit{b: l.b[:n], exact: false}
}

// bounded deduplicates lits and enforces MaxSeqLen. When there are too many
// literals they are shortened one byte at a time, which usually collapses
// them, before giving up and reporting an infinite set.
func (e *Extractor) bounded(lits []lit) litSet {
	lits = dedupLits(lits)
	if len(lits) <= e.limits.MaxSeqLen {
		return litSet{lits: lits}
	}

	longest := 0
	for _, l := range lits {
		longest = max(longest, len(l.b))
	}
	for n := longest - 1; n >= 1; n-- {
		shrunk := make([]lit, len(lits))
		for i, l := range lits {
			shrunk[i] = e.truncate(l, n)
		}
		shrunk = dedupLits(shrunk)
		if len(shrunk) <= e.limits.MaxSeqLen {
			return litSet{lits: shrunk}
		}
	}
	return litSet{infinite: true}
}

func dedupLits(lits []lit) []lit {
	seen := make(map[string]int, len(lits))
	out := lits[:0:0]
	for _, l := range lits {
		if i, ok := seen[string(l.b)]; ok {
			out[i].exact = out[i].exact && l.exact
			continue
		}
		seen[string(l.b)] = len(out)
		out = append(out, l)
	}
	return out
}

// finish converts a literal set into a Seq. Sets containing the empty string
// can't be used to prefilter and become infinite.
func (e *Extractor) finish(set litSet, wholePattern bool) Seq {
	if set.infinite {
		return Infinite()
	}
	as := make([]atoms.Atom, 0, len(set.lits))
	for _, l := range set.lits {
		if len(l.b) == 0 {
			return Infinite()
		}
		a := atoms.NewExactAtom(l.b)
		a.Exact = l.exact && wholePattern
		as = append(as, a)
	}
	return NewSeq(as...)
}

// foldOrbit returns r followed by the runes it is equivalent to under simple
// case folding. Foldings above 0xFF are left out since no single byte can
// match them.
func foldOrbit(r rune) []rune {
	out := []rune{r}
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f <= 0xff {
			out = append(out, f)
		}
	}
	return out
}
