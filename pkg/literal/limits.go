package literal

// Limits bound the size of extracted sequences. A sequence that would exceed
// them is reported as infinite.
type Limits struct {
	// MaxAtomLen is the maximum number of bytes in an atom. Longer literals
	// are truncated and become inexact.
	MaxAtomLen int `yaml:"max_atom_len"`

	// MaxSeqLen is the maximum number of atoms in a sequence.
	MaxSeqLen int `yaml:"max_seq_len"`

	// MaxClassSize is the largest character class expanded into literals.
	MaxClassSize int `yaml:"max_class_size"`

	// MaxRepeat is the largest repetition count expanded into literals.
	MaxRepeat int `yaml:"max_repeat"`
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxAtomLen:   4,
		MaxSeqLen:    256,
		MaxClassSize: 16,
		MaxRepeat:    4,
	}
}

// normalized fills zero fields with defaults.
func (l Limits) normalized() Limits {
	d := DefaultLimits()
	if l.MaxAtomLen <= 0 {
		l.MaxAtomLen = d.MaxAtomLen
	}
	if l.MaxSeqLen <= 0 {
		l.MaxSeqLen = d.MaxSeqLen
	}
	if l.MaxClassSize <= 0 {
		l.MaxClassSize = d.MaxClassSize
	}
	if l.MaxRepeat <= 0 {
		l.MaxRepeat = d.MaxRepeat
	}
	return l
}
