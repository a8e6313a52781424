package matcher

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/atomsel/pkg/types"
)

// DefaultMatchTimeout bounds a single regex search.
const DefaultMatchTimeout = 5 * time.Second

// CompileRegexp compiles the pattern of a regex rule for verification.
// RE2 syntax is tried first; patterns that need Perl-only constructs such as
// lookarounds fall back to the default syntax.
func CompileRegexp(r *types.Rule) (*regexp2.Regexp, error) {
	opts := regexp2.RegexOptions(regexp2.RE2 | regexp2.Multiline)
	if r.Nocase {
		opts |= regexp2.IgnoreCase
	}

	re, err := regexp2.Compile(r.Pattern, opts)
	if err != nil {
		re, err = regexp2.Compile(r.Pattern, opts&^regexp2.RE2)
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", r.Pattern, err)
		}
	}
	// Set timeout to prevent catastrophic backtracking
	re.MatchTimeout = DefaultMatchTimeout
	return re, nil
}

// regexVerifier finds matches of a regex rule. The content is searched as
// Latin-1 runes so every rune index is a byte offset.
type regexVerifier struct {
	re *regexp2.Regexp
}

func (v *regexVerifier) find(in *input, limit int) ([]span, error) {
	var spans []span

	match, err := v.re.FindRunesMatch(in.latin1())
	for err == nil && match != nil {
		s := span{start: match.Index, end: match.Index + match.Length}

		groups := match.Groups()
		for i := 1; i < len(groups); i++ {
			if len(groups[i].Captures) > 0 {
				c := groups[i].Captures[0]
				s.groups = append(s.groups, in.content[c.Index:c.Index+c.Length])
			}
		}

		spans = append(spans, s)
		if limit > 0 && len(spans) >= limit {
			break
		}
		match, err = v.re.FindNextMatch(match)
	}
	return spans, err
}
