package atoms

import "math/bits"

// byteSet is a 256-bit presence set indexed by byte value.
type byteSet struct {
	s [4]uint64
}

func (s *byteSet) set(c byte) {
	s.s[c/64] |= uint64(1) << (c & 63)
}

// count returns the number of distinct bytes in the set.
func (s *byteSet) count() int {
	n := 0
	for _, w := range s.s {
		n += bits.OnesCount64(w)
	}
	return n
}

// first returns the lowest byte in the set. ok is false for an empty set.
func (s *byteSet) first() (c byte, ok bool) {
	for i, w := range s.s {
		if w != 0 {
			return byte(i*64 + bits.TrailingZeros64(w)), true
		}
	}
	return 0, false
}

// MaskedQuality computes the quality of a masked atom.
//
// bytes and masks are walked pairwise; the shorter one determines the length
// of the atom. A mask bit set to 1 means the corresponding bit of the byte is
// known.
//
// Known bytes contribute depending on their value: 0x00 adds 6, the common
// bytes 0x20, 0x90, 0xCC and 0xFF add 12, ASCII letters add 18 and anything
// else adds 20. A byte with masked bits adds 2 for every known bit and
// subtracts 1 for every masked bit, so ?? is -8 and X? or ?X is +4.
//
// On top of that the atom gets 2 points per distinct known byte, except when
// it consists of a single repeated byte. A repeated common byte (00, 20, 90,
// CC, FF) costs 10 points per position; any other repeated byte gets +2.
//
//	01 0? 03      20 +  4 + 20      + 4 = 48
//	01 02         20 + 20           + 4 = 44
//	01 ?? ?3 04   20 -  8 +  4 + 20 + 4 = 40
//	61 62         18 + 18           + 4 = 40
//	61 61         18 + 18           + 2 = 38
//	00 01          6 + 20           + 4 = 30
//	01            20                + 2 = 22
func MaskedQuality(bytes, masks []byte) int32 {
	n := min(len(bytes), len(masks))

	var q int32
	var present byteSet

	for i := 0; i < n; i++ {
		b, mask := bytes[i], masks[i]

		if mask != 0xff {
			ones := int32(bits.OnesCount8(mask))
			q += 2*ones - (8 - ones)
			continue
		}

		present.set(b)

		switch {
		case isCommonByte(b):
			q += 12
		case b == 0x00:
			q += 6
		case isASCIILetter(b):
			// Letters multiply into extra atoms under case-insensitive
			// matching.
			q += 18
		default:
			q += 20
		}
	}

	unique := present.count()

	if unique == 1 {
		b, _ := present.first()
		if b == 0x00 || isCommonByte(b) {
			q -= 10 * int32(n)
		} else {
			q += 2
		}
	} else {
		q += 2 * int32(unique)
	}

	return q
}

// Quality computes the quality of an atom whose bytes are all known.
func Quality(bytes []byte) int32 {
	return MaskedQuality(bytes, fullMask(len(bytes)))
}

func isCommonByte(b byte) bool {
	switch b {
	case 0x20, 0x90, 0xcc, 0xff:
		return true
	}
	return false
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func fullMask(n int) []byte {
	m := make([]byte, n)
	for i := range m {
		m[i] = 0xff
	}
	return m
}
