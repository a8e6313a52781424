package literal

import "github.com/praetorian-inc/atomsel/pkg/atoms"

// TextCandidates returns the candidate sequences of a plain text pattern.
// Each window of MaxAtomLen bytes is one candidate. With nocase a window
// expands into every case combination of its letters; with wide a zero byte
// follows every byte of the text.
func (e *Extractor) TextCandidates(text []byte, nocase, wide bool) []Seq {
	data := text
	if wide {
		data = Widen(text)
	}
	if len(data) == 0 {
		return []Seq{Infinite()}
	}

	n := min(len(data), e.limits.MaxAtomLen)
	cands := make([]Seq, 0, len(data)-n+1)
	for i := 0; i+n <= len(data); i++ {
		window := data[i : i+n]
		exact := n == len(data)
		if nocase {
			cands = append(cands, e.caseVariants(window, exact))
			continue
		}
		a := atoms.NewExactAtom(window)
		a.Exact = exact
		cands = append(cands, NewSeq(a))
	}
	return cands
}

// caseVariants returns every case combination of window as one sequence.
func (e *Extractor) caseVariants(window []byte, exact bool) Seq {
	variants := [][]byte{{}}
	for _, b := range window {
		alt, ok := swapCase(b)
		next := make([][]byte, 0, len(variants)*2)
		for _, v := range variants {
			next = append(next, append(append([]byte{}, v...), b))
			if ok {
				next = append(next, append(append([]byte{}, v...), alt))
			}
		}
		if len(next) > e.limits.MaxSeqLen {
			return Infinite()
		}
		variants = next
	}

	as := make([]atoms.Atom, len(variants))
	for i, v := range variants {
		as[i] = atoms.NewExactAtom(v)
		as[i].Exact = exact
	}
	return NewSeq(as...)
}

// Widen interleaves a zero byte after every byte of text, the way ASCII text
// looks when encoded as UTF-16LE.
func Widen(text []byte) []byte {
	out := make([]byte, 0, len(text)*2)
	for _, b := range text {
		out = append(out, b, 0x00)
	}
	return out
}

func swapCase(b byte) (byte, bool) {
	switch {
	case b >= 'a' && b <= 'z':
		return b - 'a' + 'A', true
	case b >= 'A' && b <= 'Z':
		return b - 'A' + 'a', true
	}
	return 0, false
}
