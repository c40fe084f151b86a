package normalize

import "regexp"

// Repair rules are deliberately bounded: each one exists because a model in
// the wild produced that exact malformation. New rules need a test case.
var (
	singleQuoteRe  = regexp.MustCompile(`'((?:[^'\\]|\\.)*)'`)
	tupleRe        = regexp.MustCompile(`\(\s*("(?:[^"\\]|\\.)*"(?:\s*,\s*"(?:[^"\\]|\\.)*")*)\s*\)`)
	trailingObjRe  = regexp.MustCompile(`,\s*}`)
	trailingListRe = regexp.MustCompile(`,\s*]`)
)

// RepairJSON applies best-effort fixes to almost-JSON produced by models:
// single-quoted strings become double-quoted, Python-style string tuples
// become arrays, and trailing commas are removed. The result is not
// guaranteed to parse; callers must still handle a hard failure.
func RepairJSON(s string) string {
	s = singleQuoteRe.ReplaceAllString(s, `"$1"`)
	s = tupleRe.ReplaceAllString(s, `[$1]`)
	s = trailingObjRe.ReplaceAllString(s, "}")
	s = trailingListRe.ReplaceAllString(s, "]")
	return s
}
