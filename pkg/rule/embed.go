package rule

import "embed"

// builtinFS embeds the built-in rules and rulesets: executable headers,
// script droppers and credential patterns.
//
//go:embed rules/*.yml rulesets/*.yml
var builtinFS embed.FS
