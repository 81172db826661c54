package core

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldKey returns the case-folded form of s used for case-insensitive
// identity comparisons. A Caser holds state, so one is built per call.
func FoldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// EqualFold reports whether a and b are the same identity under case folding.
func EqualFold(a, b string) bool {
	return FoldKey(a) == FoldKey(b)
}

// NormalizeEmail trims and lowercases an email address. Empty stays empty.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeHeader maps a CSV header cell onto the canonical field name form:
// lowercase with spaces and hyphens replaced by underscores.
func NormalizeHeader(s string) string {
	s = strings.ToLower(CleanCell(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}
