// Package prefilter finds the rules whose atoms occur in an input.
package prefilter

import (
	"math/bits"

	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/atomsel/pkg/atoms"
	"github.com/praetorian-inc/atomsel/pkg/compiler"
)

// MaxExpansions is the largest number of concrete keys a masked atom is
// expanded into.
const MaxExpansions = 256

// Prefilter uses Aho-Corasick for efficient atom matching.
type Prefilter struct {
	matcher  *ahocorasick.Matcher
	keys     [][]byte                   // key at each dictionary index
	keyRules [][]*compiler.CompiledRule // rules needing each key
	always   []*compiler.CompiledRule   // rules without keys (always checked)
}

// New creates a prefilter from compiled rules. Fallback rules, and rules
// whose atoms can't be turned into keys, are always checked.
func New(rules []*compiler.CompiledRule) *Prefilter {
	pf := &Prefilter{}

	index := make(map[string]int)
	for _, cr := range rules {
		keys, ok := ruleKeys(cr)
		if !ok {
			pf.always = append(pf.always, cr)
			continue
		}
		for _, k := range keys {
			i, seen := index[string(k)]
			if !seen {
				i = len(pf.keys)
				index[string(k)] = i
				pf.keys = append(pf.keys, k)
				pf.keyRules = append(pf.keyRules, nil)
			}
			pf.keyRules[i] = appendUnique(pf.keyRules[i], cr)
		}
	}

	if len(pf.keys) > 0 {
		pf.matcher = ahocorasick.NewMatcher(pf.keys)
	}
	return pf
}

// Filter returns rules that might match content: rules with a key found in
// content, and rules that are always checked. No rule is returned twice.
func (pf *Prefilter) Filter(content []byte) []*compiler.CompiledRule {
	result := make([]*compiler.CompiledRule, 0, len(pf.always))
	result = append(result, pf.always...)

	if pf.matcher == nil {
		return result
	}

	hits := pf.matcher.Match(content)

	seen := make(map[*compiler.CompiledRule]bool, len(result))
	for _, cr := range result {
		seen[cr] = true
	}
	for _, hit := range hits {
		for _, cr := range pf.keyRules[hit] {
			if !seen[cr] {
				seen[cr] = true
				result = append(result, cr)
			}
		}
	}
	return result
}

// Keys returns the number of distinct keys in the automaton.
func (pf *Prefilter) Keys() int {
	return len(pf.keys)
}

// AlwaysChecked returns the rules returned by every Filter call.
func (pf *Prefilter) AlwaysChecked() []*compiler.CompiledRule {
	return pf.always
}

func ruleKeys(cr *compiler.CompiledRule) ([][]byte, bool) {
	if cr.Fallback || len(cr.Atoms) == 0 {
		return nil, false
	}
	var keys [][]byte
	for _, a := range cr.Atoms {
		k, ok := Expand(a)
		if !ok {
			return nil, false
		}
		keys = append(keys, k...)
	}
	return keys, true
}

// Expand returns concrete byte strings covering every input the atom matches.
// Atoms with at most MaxExpansions variants are enumerated. Larger ones are
// reduced to their longest fully-known run. ok is false when the atom has no
// known byte at all.
func Expand(a atoms.Atom) (keys [][]byte, ok bool) {
	n := a.Len()
	if n == 0 {
		return nil, false
	}

	count := 1
	for _, m := range a.Masks[:n] {
		count <<= 8 - bits.OnesCount8(m)
		if count > MaxExpansions {
			return knownRun(a)
		}
	}

	keys = [][]byte{make([]byte, 0, n)}
	for i := 0; i < n; i++ {
		variants := bytesMatching(a.Bytes[i], a.Masks[i])
		next := make([][]byte, 0, len(keys)*len(variants))
		for _, k := range keys {
			for _, b := range variants {
				key := make([]byte, len(k), n)
				copy(key, k)
				next = append(next, append(key, b))
			}
		}
		keys = next
	}
	return keys, true
}

// knownRun returns the longest run of fully-known bytes.
func knownRun(a atoms.Atom) ([][]byte, bool) {
	bestStart, bestLen := 0, 0
	start := -1
	for i := 0; i <= a.Len(); i++ {
		if i < a.Len() && a.Masks[i] == 0xff {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start > bestLen {
			bestStart, bestLen = start, i-start
		}
		start = -1
	}
	if bestLen == 0 {
		return nil, false
	}
	key := make([]byte, bestLen)
	copy(key, a.Bytes[bestStart:bestStart+bestLen])
	return [][]byte{key}, true
}

func bytesMatching(value, mask byte) []byte {
	if mask == 0xff {
		return []byte{value}
	}
	out := make([]byte, 0, 1<<(8-bits.OnesCount8(mask)))
	for b := 0; b < 256; b++ {
		if byte(b)&mask == value&mask {
			out = append(out, byte(b))
		}
	}
	return out
}

func appendUnique(rules []*compiler.CompiledRule, cr *compiler.CompiledRule) []*compiler.CompiledRule {
	for _, r := range rules {
		if r == cr {
			return rules
		}
	}
	return append(rules, cr)
}
