package similarity

import "strings"

// Normalize canonicalizes a field name for comparison: lower-cases it, trims
// leading and trailing whitespace, and collapses internal whitespace runs to
// single spaces. Applied identically to the query and to every candidate name
// before any comparison step, so later matchers never see case or whitespace
// artifacts as false differences.
//
// Normalized strings are also the keys used by the embedding cache.
func Normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}
