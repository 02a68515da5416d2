// Package matcher decides where a caption belongs in a target document and
// which media item goes with it.
package matcher

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"blogmigrate/internal/markdown"
	"blogmigrate/internal/models"
)

// Rule identifies which tie-break rule produced a position.
type Rule int

// Rules, in the order they are tried.
const (
	RuleNone Rule = iota
	RuleStandaloneNext
	RuleAfterText
	RuleLooseNext
	RuleNeighbourPair
	RuleBeforeText
	RuleOverride
)

func (r Rule) String() string {
	switch r {
	case RuleStandaloneNext:
		return "standalone_next"
	case RuleAfterText:
		return "after_text"
	case RuleLooseNext:
		return "loose_next"
	case RuleNeighbourPair:
		return "neighbour_pair"
	case RuleBeforeText:
		return "before_text"
	case RuleOverride:
		return "override"
	}

	return "none"
}

// Config holds the matching thresholds. Lengths count characters.
type Config struct {
	// StandaloneMaxAfter is the after-text length below which a caption is
	// anchored on the following line.
	StandaloneMaxAfter int `yaml:"standalone_max_after"`
	MinNextLine        int `yaml:"min_next_line"`
	PrefixLen          int `yaml:"prefix_len"`
	LoosePrefixLen     int `yaml:"loose_prefix_len"`
	LooseMinLen        int `yaml:"loose_min_len"`
	BeforeMinLen       int `yaml:"before_min_len"`
}

// DefaultConfig returns the tuned thresholds.
func DefaultConfig() Config {
	return Config{
		StandaloneMaxAfter: 5,
		MinNextLine:        5,
		PrefixLen:          30,
		LoosePrefixLen:     20,
		LooseMinLen:        10,
		BeforeMinLen:       10,
	}
}

var leadingPunct = regexp.MustCompile(`^[，,。.\s]+`)

// Matcher finds insertion positions.
type Matcher struct {
	cfg Config
}

// New creates a matcher.
func New(cfg Config) *Matcher {
	return &Matcher{cfg: cfg}
}

// Target is a target document prepared for repeated lookups.
type Target struct {
	folded []string
	media  []bool
}

// Prepare folds the target lines once so several captions can be matched.
func Prepare(lines markdown.Document) *Target {
	t := &Target{
		folded: make([]string, len(lines)),
		media:  make([]bool, len(lines)),
	}

	for i, line := range lines {
		t.folded[i] = fold(strings.TrimSpace(line))
		t.media[i] = markdown.IsMediaRef(line)
	}

	return t
}

// Len returns the number of target lines.
func (t *Target) Len() int {
	return len(t.folded)
}

// IsMedia reports whether line i holds a media reference.
func (t *Target) IsMedia(i int) bool {
	return i >= 0 && i < len(t.media) && t.media[i]
}

// FindPosition returns the line index before which the caption's media belongs.
// The rules are tried in a fixed order and the first line satisfying a rule
// wins. ok is false when no rule applies.
func (m *Matcher) FindPosition(c models.Caption, t *Target) (int, Rule, bool) {
	after := strings.TrimSpace(c.AfterText)
	before := strings.TrimSpace(c.BeforeText)
	prev := strings.TrimSpace(c.PrevLine())
	next := strings.TrimSpace(c.NextLine())

	if runeLen(after) < m.cfg.StandaloneMaxAfter && runeLen(next) > m.cfg.MinNextLine {
		if i, ok := t.firstContaining(prefix(cleanLead(next), m.cfg.PrefixLen)); ok {
			return i, RuleStandaloneNext, true
		}
	}

	if runeLen(after) > m.cfg.StandaloneMaxAfter {
		if i, ok := t.firstContaining(prefix(cleanLead(after), m.cfg.PrefixLen)); ok {
			return i, RuleAfterText, true
		}
	}

	if runeLen(next) > m.cfg.LooseMinLen {
		if i, ok := t.firstContaining(prefix(next, m.cfg.LoosePrefixLen)); ok {
			return i, RuleLooseNext, true
		}
	}

	if prev != "" && next != "" {
		p := prefix(prev, m.cfg.LoosePrefixLen)
		n := prefix(next, m.cfg.LoosePrefixLen)

		for i := range t.folded {
			if t.media[i] || !strings.Contains(t.folded[i], p) {
				continue
			}

			j := t.nextNonBlank(i)
			if j >= 0 && !t.media[j] && strings.Contains(t.folded[j], n) {
				return j, RuleNeighbourPair, true
			}
		}
	}

	if runeLen(before) > m.cfg.BeforeMinLen {
		b := prefix(before, m.cfg.PrefixLen)

		for i := range t.folded {
			if t.media[i] || !strings.Contains(t.folded[i], b) {
				continue
			}

			if t.IsMedia(i + 1) {
				continue
			}

			return i + 1, RuleBeforeText, true
		}
	}

	return 0, RuleNone, false
}

// nextNonBlank returns the next non-blank line after i, or -1.
func (t *Target) nextNonBlank(i int) int {
	for j := i + 1; j < len(t.folded); j++ {
		if t.folded[j] != "" {
			return j
		}
	}

	return -1
}

func (t *Target) firstContaining(search string) (int, bool) {
	if search == "" {
		return 0, false
	}

	for i, line := range t.folded {
		if !t.media[i] && strings.Contains(line, search) {
			return i, true
		}
	}

	return 0, false
}

// fold makes full-width and composed forms compare equal.
func fold(s string) string {
	return width.Fold.String(norm.NFC.String(s))
}

func cleanLead(s string) string {
	return leadingPunct.ReplaceAllString(s, "")
}

// prefix returns the folded first n characters of s.
func prefix(s string, n int) string {
	s = fold(strings.TrimSpace(s))
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n])
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
