// Package utils provides common utility functions.
package utils

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
)

var titleNoise = regexp.MustCompile(`[|_\-：:，,。.\s]`)

// NormalizeTitle removes punctuation and whitespace so titles exported by
// different tools compare equal.
func NormalizeTitle(title string) string {
	return titleNoise.ReplaceAllString(strings.TrimSpace(title), "")
}

// TitlesMatch reports whether one normalized title contains the other.
func TitlesMatch(a, b string) bool {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	if na == "" || nb == "" {
		return false
	}

	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// NormalizeWhitespace replaces multiple whitespace with single space.
func NormalizeWhitespace(str string) string {
	return strings.Join(strings.Fields(str), " ")
}

// Preview shortens s to at most width terminal columns. CJK characters count
// as two columns.
func Preview(s string, width int) string {
	s = NormalizeWhitespace(s)
	if runewidth.StringWidth(s) <= width {
		return s
	}

	return runewidth.Truncate(s, width, "…")
}
