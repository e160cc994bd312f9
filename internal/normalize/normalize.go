// Package normalize provides canonicalization of free-text component
// identifiers for comparison.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes unicode (NFD) and drops combining marks, so
// "Würth" and "Wurth" canonicalize identically.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Canonical reduces a raw identifier (manufacturer, part number, name) to its
// canonical comparison form: lower-cased with every character outside
// [a-z0-9] removed. It is a pure, total function; empty or undefined input
// yields the empty string.
//
// All string-similarity comparisons operate on this form so that spacing,
// punctuation, case, and diacritics never affect the fuzzy matching tier:
//
//	Canonical("6ES7 512-1DK01-0AB0") == "6es75121dk010ab0"
//	Canonical("SIEMENS AG") == "siemensag"
func Canonical(s string) string {
	if s == "" {
		return ""
	}

	if folded, _, err := transform.String(foldTransformer, s); err == nil {
		s = folded
	}

	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Text normalizes a string for display-oriented comparison: lower-cased,
// trimmed, null bytes removed, inner whitespace collapsed. Unlike Canonical
// it preserves word boundaries.
func Text(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Join(strings.Fields(s), " ")
}
