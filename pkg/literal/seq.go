package literal

import (
	"bytes"

	"github.com/praetorian-inc/atomsel/pkg/atoms"
)

// Seq is a candidate literal sequence: a set of atoms such that every match of
// the pattern contains at least one of them. An infinite Seq stands for a
// pattern whose literals can't be enumerated within the configured limits.
type Seq struct {
	atoms    []atoms.Atom
	infinite bool
}

// NewSeq returns a finite sequence with the given atoms.
func NewSeq(as ...atoms.Atom) Seq {
	return Seq{atoms: as}
}

// Infinite returns a sequence that can't be enumerated.
func Infinite() Seq {
	return Seq{infinite: true}
}

// IsFinite reports whether the sequence has a known set of atoms.
func (s Seq) IsFinite() bool {
	return !s.infinite
}

// Len returns the number of atoms. ok is false for an infinite sequence.
func (s Seq) Len() (n int, ok bool) {
	if s.infinite {
		return 0, false
	}
	return len(s.atoms), true
}

// MinAtomLen returns the length of the shortest atom. ok is false for an
// infinite or empty sequence.
func (s Seq) MinAtomLen() (n int, ok bool) {
	if s.infinite || len(s.atoms) == 0 {
		return 0, false
	}
	n = s.atoms[0].Len()
	for _, a := range s.atoms[1:] {
		n = min(n, a.Len())
	}
	return n, true
}

// Atoms returns the atoms of a finite sequence, nil for an infinite one.
func (s Seq) Atoms() []atoms.Atom {
	if s.infinite {
		return nil
	}
	return s.atoms
}

// Quality summarizes the sequence for ranking. It returns nil for an infinite
// sequence, which loses against every finite one.
func (s Seq) Quality() *atoms.SeqQuality {
	if s.infinite {
		return nil
	}
	sq := atoms.SeqQualityOf(s.atoms)
	return &sq
}

// Dedup removes repeated atoms, preserving the order of first occurrence. If
// duplicates disagree on exactness the kept atom is marked inexact.
func (s *Seq) Dedup() {
	if s.infinite || len(s.atoms) < 2 {
		return
	}
	out := s.atoms[:0]
	for _, a := range s.atoms {
		dup := false
		for i := range out {
			if sameAtom(out[i], a) {
				out[i].Exact = out[i].Exact && a.Exact
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, a)
		}
	}
	s.atoms = out
}

func sameAtom(a, b atoms.Atom) bool {
	return bytes.Equal(a.Bytes, b.Bytes) && bytes.Equal(a.Masks, b.Masks)
}
