// Package markdown provides the line model the alignment pipeline works on.
package markdown

import (
	"regexp"
	"strings"
)

// Document is a markdown body as an ordered sequence of lines.
type Document []string

// Parse splits content into lines. Carriage returns are dropped.
func Parse(content string) Document {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	return Document(strings.Split(content, "\n"))
}

// String joins the lines back into text.
func (d Document) String() string {
	return strings.Join(d, "\n")
}

// Clone returns a copy that shares no storage with d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	copy(out, d)

	return out
}

// IsBlank reports whether a line holds only whitespace.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// MediaRef is a parsed `![alt](url)` line.
type MediaRef struct {
	Alt string
	URL string
}

var mediaRefPattern = regexp.MustCompile(`^!\[(.*?)\]\((https?://[^\s)]+)\)`)

// ParseMediaRef parses a line that starts with a media reference.
func ParseMediaRef(line string) (MediaRef, bool) {
	m := mediaRefPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return MediaRef{}, false
	}

	return MediaRef{Alt: m[1], URL: m[2]}, true
}

// IsMediaRef reports whether a line starts with a media reference.
func IsMediaRef(line string) bool {
	return mediaRefPattern.MatchString(strings.TrimSpace(line))
}

// FormatMediaRef renders a media reference line.
func FormatMediaRef(alt, url string) string {
	alt = strings.NewReplacer("[", " ", "]", " ", "\n", " ").Replace(alt)

	return "![" + strings.TrimSpace(alt) + "](" + url + ")"
}

// CollapseBlankRuns limits every run of blank lines to maxRun lines.
// Blank lines are emitted as empty strings.
func CollapseBlankRuns(doc Document, maxRun int) Document {
	out := make(Document, 0, len(doc))
	run := 0

	for _, line := range doc {
		if IsBlank(line) {
			run++
			if run > maxRun {
				continue
			}

			out = append(out, "")

			continue
		}

		run = 0

		out = append(out, line)
	}

	return out
}

// PrevNonBlank returns the index of the nearest non-blank line before i, or -1.
func (d Document) PrevNonBlank(i int) int {
	for j := i - 1; j >= 0; j-- {
		if !IsBlank(d[j]) {
			return j
		}
	}

	return -1
}

// NextNonBlank returns the index of the nearest non-blank line after i, or -1.
func (d Document) NextNonBlank(i int) int {
	for j := i + 1; j < len(d); j++ {
		if !IsBlank(d[j]) {
			return j
		}
	}

	return -1
}
