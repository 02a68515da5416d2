// Package caption finds credit and description lines in an original document.
package caption

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"blogmigrate/internal/markdown"
	"blogmigrate/internal/models"
)

// Tiers, tried in order. The first tier that matches a line wins.
const (
	TierInline = iota + 1
	TierEmphasis
	TierWholeLine
	TierEmphasisBracket
	TierLoose
)

// DefaultWindow is the number of context lines kept on each side.
const DefaultWindow = 5

var (
	emphasisPattern        = regexp.MustCompile(`_(.*)_`)
	bracketSpanPattern     = regexp.MustCompile(`[（(]([^）)]*)[）)]`)
	wholeLinePattern       = regexp.MustCompile(`^[（(].*[）)]$`)
	emphasisBracketPattern = regexp.MustCompile(`_[（(]([^）)]+)[）)]_\s*_*`)
	looseBracketPattern    = regexp.MustCompile(`[（(]([^）)]+)[）)]`)
)

// Locator extracts captions from a document.
type Locator struct {
	rules  *markdown.Rules
	window int
}

// NewLocator creates a locator. A window below 1 uses DefaultWindow.
func NewLocator(rules *markdown.Rules, window int) *Locator {
	if window < 1 {
		window = DefaultWindow
	}

	return &Locator{rules: rules, window: window}
}

// Locate returns every caption in doc in line order. A document without
// captions yields an empty slice.
func (l *Locator) Locate(doc markdown.Document) []models.Caption {
	var captions []models.Caption

	for i, line := range doc {
		if markdown.IsBlank(line) || markdown.IsMediaRef(line) {
			continue
		}

		found := l.matchLine(line)
		if len(found) == 0 {
			continue
		}

		before, after := l.context(doc, i)

		for _, c := range found {
			c.SourceLineIndex = i
			c.ContextBefore = before
			c.ContextAfter = after
			captions = append(captions, c)
		}
	}

	return captions
}

// matchLine applies the tiers to one line.
func (l *Locator) matchLine(line string) []models.Caption {
	stripped := strings.TrimSpace(line)

	if spans := l.rules.InlineSpans(line); len(spans) > 0 {
		out := make([]models.Caption, 0, len(spans))

		for _, span := range spans {
			raw := line[span[0]:span[1]]
			if c, ok := newCaption(raw, line[:span[0]], line[span[1]:], TierInline); ok {
				out = append(out, c)
			}
		}

		return out
	}

	if m := emphasisPattern.FindStringSubmatch(stripped); m != nil && l.rules.HasKeyword(m[1]) {
		if span := bracketSpanPattern.FindString(stripped); span != "" {
			return single(span, TierEmphasis)
		}
	}

	if wholeLinePattern.MatchString(stripped) && l.rules.HasKeyword(stripped) {
		return single(stripped, TierWholeLine)
	}

	if l.rules.IsPromo(stripped) {
		return nil
	}

	if m := emphasisBracketPattern.FindStringSubmatch(stripped); m != nil {
		return single(bracketSpanPattern.FindString(m[0]), TierEmphasisBracket)
	}

	if strings.Contains(stripped, "_") && strings.ContainsAny(stripped, "（(") {
		if span := looseBracketPattern.FindString(stripped); span != "" {
			return single(span, TierLoose)
		}
	}

	return nil
}

func single(raw string, tier int) []models.Caption {
	c, ok := newCaption(raw, "", "", tier)
	if !ok {
		return nil
	}

	return []models.Caption{c}
}

func newCaption(raw, before, after string, tier int) (models.Caption, bool) {
	raw = strings.TrimSpace(raw)

	normalized := norm.NFC.String(markdown.StripBrackets(raw))
	if normalized == "" {
		return models.Caption{}, false
	}

	return models.Caption{
		RawText:        raw,
		NormalizedText: normalized,
		BeforeText:     markdown.TrimEmphasis(before),
		AfterText:      markdown.TrimEmphasis(after),
		Tier:           tier,
	}, true
}

// context collects up to window prose lines on each side of line i. Blank
// lines, media references and other caption lines are skipped.
func (l *Locator) context(doc markdown.Document, i int) ([]string, []string) {
	var before []string

	for j := i - 1; j >= 0 && len(before) < l.window; j-- {
		if l.isProse(doc[j]) {
			before = append([]string{strings.TrimSpace(doc[j])}, before...)
		}
	}

	var after []string

	for j := i + 1; j < len(doc) && len(after) < l.window; j++ {
		if l.isProse(doc[j]) {
			after = append(after, strings.TrimSpace(doc[j]))
		}
	}

	return before, after
}

func (l *Locator) isProse(line string) bool {
	if markdown.IsBlank(line) || markdown.IsMediaRef(line) {
		return false
	}

	return !l.rules.IsCaptionLine(line) && !markdown.IsBracketedLine(line)
}
