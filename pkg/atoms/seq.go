package atoms

import (
	"fmt"
	"math"
)

// Ordering is the result of comparing two sequence qualities.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// String returns the string representation of Ordering
func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "unknown"
	}
}

// SeqQuality summarizes a candidate literal sequence. A sequence is only as
// good as its worst atom, so ranking uses minimums.
type SeqQuality struct {
	SeqLen         uint32 `json:"seq_len"`          // number of atoms
	MinAtomLen     uint32 `json:"min_atom_len"`     // length of the shortest atom
	MinAtomQuality int32  `json:"min_atom_quality"` // quality of the worst atom
}

// MinSeqQuality returns the worst possible sequence quality. It loses against
// every other value and is the seed when searching for the best candidate.
func MinSeqQuality() SeqQuality {
	return SeqQuality{
		SeqLen:         math.MaxUint32,
		MinAtomLen:     0,
		MinAtomQuality: math.MinInt32,
	}
}

// SeqQualityOf aggregates the atoms of a finite sequence. An empty sequence
// has MinAtomLen 0 and MinAtomQuality math.MinInt32.
func SeqQualityOf(atoms []Atom) SeqQuality {
	sq := SeqQuality{
		SeqLen:         uint32(len(atoms)),
		MinAtomLen:     0,
		MinAtomQuality: math.MinInt32,
	}
	for i, a := range atoms {
		l := uint32(a.Len())
		q := a.Quality()
		if i == 0 || l < sq.MinAtomLen {
			sq.MinAtomLen = l
		}
		if i == 0 || q < sq.MinAtomQuality {
			sq.MinAtomQuality = q
		}
	}
	return sq
}

// String implements fmt.Stringer.
func (sq SeqQuality) String() string {
	return fmt.Sprintf("seq_len=%d min_atom_len=%d min_atom_quality=%d",
		sq.SeqLen, sq.MinAtomLen, sq.MinAtomQuality)
}

// Compare ranks a against b. The rules are applied in order and the first
// one that applies decides:
//
//  1. a wins if its worst atom has a higher quality, regardless of lengths.
//  2. With equal shortest atoms, equal qualities favor the shorter sequence,
//     otherwise the higher quality wins.
//  3. If the shortest atoms differ by exactly one byte, the longer side wins
//     unless the shorter side has at least 256 times fewer atoms.
//  4. Otherwise a wins if it has a higher quality or a longer shortest atom.
//
// The rules are not antisymmetric: Compare(a, b) and Compare(b, a) can both
// return Greater. Selection results depend on this exact behavior, so it is
// kept as is. Identical values compare Equal.
func Compare(a, b SeqQuality) Ordering {
	if a == b {
		return Equal
	}

	if a.MinAtomQuality > b.MinAtomQuality {
		return Greater
	}

	if a.MinAtomLen == b.MinAtomLen {
		switch {
		case a.MinAtomQuality == b.MinAtomQuality:
			if a.SeqLen < b.SeqLen {
				return Greater
			}
			return Less
		case a.MinAtomQuality > b.MinAtomQuality:
			return Greater
		default:
			return Less
		}
	}

	// One atom of length N beats 256 atoms of length N+1.
	if uint64(a.MinAtomLen)+1 == uint64(b.MinAtomLen) {
		if uint64(a.SeqLen)*256 <= uint64(b.SeqLen) {
			return Greater
		}
		return Less
	}

	if uint64(a.MinAtomLen) == uint64(b.MinAtomLen)+1 {
		if uint64(a.SeqLen) < uint64(b.SeqLen)*256 {
			return Greater
		}
		return Less
	}

	if a.MinAtomQuality > b.MinAtomQuality || a.MinAtomLen > b.MinAtomLen {
		return Greater
	}
	return Less
}

// Better reports whether sq ranks above other.
func (sq SeqQuality) Better(other SeqQuality) bool {
	return Compare(sq, other) == Greater
}

// BetterOpt is Better for optional values. nil stands for a sequence that
// could not be enumerated; it is never better than anything and every
// present value is better than it.
func BetterOpt(a, b *SeqQuality) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Better(*b)
	}
}

// SelectBest returns the index of the best candidate. nil candidates are
// skipped. On ties the earliest candidate is kept. ok is false when no
// candidate is present.
func SelectBest(cands []*SeqQuality) (idx int, ok bool) {
	best := MinSeqQuality()
	idx = -1
	for i, c := range cands {
		if c == nil {
			continue
		}
		if idx == -1 || c.Better(best) {
			best = *c
			idx = i
		}
	}
	return idx, idx != -1
}
