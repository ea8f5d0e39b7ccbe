package advisor

import (
	"regexp"
	"strings"
)

// Placeholder replaces literal values in normalized SQL.
const Placeholder = "?"

var (
	singleQuotedRe = regexp.MustCompile(`'(?:[^'\\]|\\.|'')*'`)
	doubleQuotedRe = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)
	digitsRe       = regexp.MustCompile(`\d+`)
	whitespaceRe   = regexp.MustCompile(`\s+`)
)

// NormalizeSQL replaces string literals and digit runs with a placeholder
// and collapses whitespace, so that queries differing only in literal
// values share one normalized form. It is a textual transform and accepts
// any input.
func NormalizeSQL(sql string) string {
	out := singleQuotedRe.ReplaceAllString(sql, Placeholder)
	out = doubleQuotedRe.ReplaceAllString(out, Placeholder)
	out = digitsRe.ReplaceAllString(out, Placeholder)
	out = whitespaceRe.ReplaceAllString(out, " ")

	return strings.TrimSpace(out)
}
