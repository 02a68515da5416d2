package markdown

import (
	"regexp"
	"strings"
)

var (
	standalonePattern = regexp.MustCompile(`^(_*)\s*[（(]([^）)]*)[）)]\s*(_*)$`)
	bracketedPattern  = regexp.MustCompile(`^_*\s*[（(].*[）)]\s*_*$`)
	emphasisTrim      = "_* \t"
)

// Rules holds the vocabulary used to recognize captions and promotional text.
type Rules struct {
	keywords        []string
	promo           []string
	trailingMarkers []string
	keywordPattern  *regexp.Regexp
	inlinePattern   *regexp.Regexp
}

// NewRules compiles the keyword and marker lists.
func NewRules(keywords, promo, trailingMarkers []string) *Rules {
	r := &Rules{
		keywords:        nonEmpty(keywords),
		promo:           nonEmpty(promo),
		trailingMarkers: nonEmpty(trailingMarkers),
	}

	if len(r.keywords) > 0 {
		quoted := make([]string, len(r.keywords))
		for i, kw := range r.keywords {
			quoted[i] = regexp.QuoteMeta(kw)
		}

		alt := strings.Join(quoted, "|")
		r.keywordPattern = regexp.MustCompile(`(?i)(?:` + alt + `)`)
		r.inlinePattern = regexp.MustCompile(`(?i)[（(]([^）)]*(?:` + alt + `)[^）)]*)[）)]`)
	}

	return r
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))

	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}

// Keywords returns the configured credit markers.
func (r *Rules) Keywords() []string {
	return r.keywords
}

// KeywordPattern returns the compiled keyword alternation, or nil.
func (r *Rules) KeywordPattern() *regexp.Regexp {
	return r.keywordPattern
}

// HasKeyword reports whether s contains a credit marker.
func (r *Rules) HasKeyword(s string) bool {
	return r.keywordPattern != nil && r.keywordPattern.MatchString(s)
}

// IsPromo reports whether a line carries promotional boilerplate.
func (r *Rules) IsPromo(line string) bool {
	return containsAny(line, r.promo)
}

// IsTrailingMarker reports whether a line opens the trailing promotional block.
func (r *Rules) IsTrailingMarker(line string) bool {
	return containsAny(strings.TrimSpace(line), r.trailingMarkers)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}

	return false
}

// InlineSpans returns the byte offsets of bracketed keyword spans in line.
func (r *Rules) InlineSpans(line string) [][]int {
	if r.inlinePattern == nil {
		return nil
	}

	return r.inlinePattern.FindAllStringIndex(line, -1)
}

// StripInlineCaptions removes bracketed keyword spans from a line.
func (r *Rules) StripInlineCaptions(line string) string {
	if r.inlinePattern == nil {
		return line
	}

	return r.inlinePattern.ReplaceAllString(line, "")
}

// IsBracketedLine reports whether the line opens and closes with round
// brackets, optionally wrapped in emphasis markers.
func IsBracketedLine(line string) bool {
	return bracketedPattern.MatchString(strings.TrimSpace(line))
}

// IsCaptionLine reports whether a line is a standalone caption: a bracketed
// span carrying a credit marker, or an emphasis-wrapped bracketed span that is
// not promotional.
func (r *Rules) IsCaptionLine(line string) bool {
	s := strings.TrimSpace(line)

	m := standalonePattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}

	if r.HasKeyword(m[2]) {
		return true
	}

	return m[1] != "" && m[3] != "" && !r.IsPromo(s)
}

// TrimEmphasis removes surrounding emphasis markers and whitespace.
func TrimEmphasis(s string) string {
	return strings.Trim(s, emphasisTrim)
}

// StripBrackets removes one pair of surrounding round brackets.
func StripBrackets(s string) string {
	s = strings.TrimSpace(TrimEmphasis(s))
	s = strings.TrimPrefix(s, "（")
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, "）")
	s = strings.TrimSuffix(s, ")")

	return strings.TrimSpace(s)
}
