// Package formatter repairs layout damage left behind by rich-text exports:
// paragraphs run together without blank lines and misaligned tables.
package formatter

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"blogmigrate/internal/markdown"
)

const sentenceEnds = "。！？.!?"

// closers may follow the sentence terminator.
const closers = "”’」』\"')）"

// Formatter applies paragraph and table repair to a document.
type Formatter struct {
	rules *markdown.Rules
}

// New creates a formatter. Caption lines recognised by rules are never treated
// as prose.
func New(rules *markdown.Rules) *Formatter {
	return &Formatter{rules: rules}
}

// Format runs RestoreParagraphs then AlignTables. Both are idempotent.
func (f *Formatter) Format(doc markdown.Document) markdown.Document {
	return AlignTables(f.RestoreParagraphs(doc))
}

// RestoreParagraphs inserts a blank line after a line that ends a sentence
// when the next line is plain prose.
func (f *Formatter) RestoreParagraphs(doc markdown.Document) markdown.Document {
	out := make(markdown.Document, 0, len(doc)+len(doc)/2)

	for i, line := range doc {
		out = append(out, line)

		if i+1 >= len(doc) || !f.isProse(line) || !f.isProse(doc[i+1]) {
			continue
		}

		if endsSentence(line) {
			out = append(out, "")
		}
	}

	return out
}

func endsSentence(line string) bool {
	s := strings.TrimRight(line, " \t"+closers)
	if s == "" {
		return false
	}

	r, _ := utf8.DecodeLastRuneInString(s)

	return strings.ContainsRune(sentenceEnds, r)
}

// isProse reports whether line is an ordinary paragraph line.
func (f *Formatter) isProse(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" || markdown.IsMediaRef(t) {
		return false
	}

	if f.rules != nil && f.rules.IsCaptionLine(t) {
		return false
	}

	switch t[0] {
	case '#', '>', '|', '-', '*', '+', '`':
		return false
	}

	if isOrderedItem(t) || strings.HasPrefix(t, "<") {
		return false
	}

	return true
}

func isOrderedItem(t string) bool {
	i := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}

	return i > 0 && i < len(t) && (t[i] == '.' || t[i] == ')')
}

// AlignTables pads pipe table cells to a common display width per column.
// CJK cells count double width.
func AlignTables(doc markdown.Document) markdown.Document {
	out := make(markdown.Document, 0, len(doc))

	var block []string

	flush := func() {
		out = append(out, alignTable(block)...)
		block = nil
	}

	for _, line := range doc {
		t := strings.TrimSpace(line)
		if len(t) > 1 && strings.HasPrefix(t, "|") && strings.HasSuffix(t, "|") {
			block = append(block, line)

			continue
		}

		if len(block) > 0 {
			flush()
		}

		out = append(out, line)
	}

	if len(block) > 0 {
		flush()
	}

	return out
}

func splitRow(row string) []string {
	t := strings.TrimSpace(row)
	t = strings.TrimSuffix(strings.TrimPrefix(t, "|"), "|")

	cells := strings.Split(t, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	return cells
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" || !strings.Contains(c, "-") {
			return false
		}
	}

	return true
}

// alignTable leaves anything without a header separator row untouched.
func alignTable(rows []string) []string {
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, len(rows))
	for i, r := range rows {
		table[i] = splitRow(r)
	}

	if !isSeparatorRow(table[1]) {
		return rows
	}

	cols := 0
	for _, r := range table {
		cols = max(cols, len(r))
	}

	widths := make([]int, cols)
	for i := range widths {
		widths[i] = 3
	}

	for ri, r := range table {
		if ri == 1 {
			continue
		}

		for ci, c := range r {
			widths[ci] = max(widths[ci], runewidth.StringWidth(c))
		}
	}

	out := make([]string, len(table))

	for ri, r := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for ci := 0; ci < cols; ci++ {
			cell := ""
			if ci < len(r) {
				cell = r[ci]
			}

			sb.WriteString(" ")

			if ri == 1 {
				sb.WriteString(separatorCell(cell, widths[ci]))
			} else {
				sb.WriteString(runewidth.FillRight(cell, widths[ci]))
			}

			sb.WriteString(" |")
		}

		out[ri] = sb.String()
	}

	return out
}

// separatorCell keeps the column's alignment colons.
func separatorCell(cell string, width int) string {
	left := strings.HasPrefix(cell, ":")
	right := strings.HasSuffix(cell, ":") && len(cell) > 1

	n := width
	if left {
		n--
	}

	if right {
		n--
	}

	s := strings.Repeat("-", max(n, 1))
	if left {
		s = ":" + s
	}

	if right {
		s += ":"
	}

	return s
}
