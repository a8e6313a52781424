//go:build !hyperscan

package matcher

import "fmt"

// HyperscanAvailable reports whether the Hyperscan engine was compiled in.
func HyperscanAvailable() bool {
	return false
}

// NewHyperscan stub for builds without the hyperscan tag.
func NewHyperscan(cfg Config) (Matcher, error) {
	return nil, fmt.Errorf("Hyperscan support not compiled in (build with CGO_ENABLED=1 and -tags=hyperscan)")
}
