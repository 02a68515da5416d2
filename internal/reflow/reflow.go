// Package reflow rewrites a target document so that media references sit
// next to the prose their captions belonged to.
package reflow

import (
	"regexp"
	"sort"
	"strings"

	"blogmigrate/internal/markdown"
	"blogmigrate/internal/models"
)

// Config controls the reflow layout.
type Config struct {
	// TrailingWindow is how many final lines are searched for the start of
	// trailing promotional content.
	TrailingWindow int `yaml:"trailing_window"`
	// MaxBlankRun is the longest run of blank lines kept in the output.
	MaxBlankRun int `yaml:"max_blank_run"`
	// DefaultAlt labels appended media that carry no alt text.
	DefaultAlt string `yaml:"default_alt"`
}

// DefaultConfig returns the tuned layout settings.
func DefaultConfig() Config {
	return Config{TrailingWindow: 20, MaxBlankRun: 2, DefaultAlt: "图片"}
}

// Result is a reflowed document and what happened to each assignment.
type Result struct {
	Document markdown.Document
	Inserted []models.Assignment
	// Skipped assignments found their position already holding media.
	Skipped  []models.Assignment
	Appended []models.MediaItem
}

var (
	strayClosers = regexp.MustCompile(`^[)）]+\s*`)
	loneCloser   = regexp.MustCompile(`^[)）]+$`)
)

// Reflower applies assignments to a target document.
type Reflower struct {
	rules *markdown.Rules
	cfg   Config
}

// New creates a reflower.
func New(rules *markdown.Rules, cfg Config) *Reflower {
	if cfg.MaxBlankRun < 1 {
		cfg.MaxBlankRun = DefaultConfig().MaxBlankRun
	}

	if cfg.TrailingWindow < 1 {
		cfg.TrailingWindow = DefaultConfig().TrailingWindow
	}

	return &Reflower{rules: rules, cfg: cfg}
}

// Clean strips media references, caption lines, inline caption spans and
// stray closing brackets. A run of blank lines around removed lines shrinks to
// one blank line, or to none at the top of the document. Clean is idempotent.
func (r *Reflower) Clean(doc markdown.Document) markdown.Document {
	out := make(markdown.Document, 0, len(doc))

	var blanks int

	removed := false

	for i, line := range doc {
		if r.isStale(doc, i) {
			removed = true

			continue
		}

		if markdown.IsBlank(line) {
			blanks++

			continue
		}

		cleaned := r.cleanLine(line)
		if markdown.IsBlank(cleaned) {
			removed = true

			continue
		}

		out = flushBlanks(out, blanks, removed)
		out = append(out, cleaned)
		blanks, removed = 0, false
	}

	return flushBlanks(out, blanks, removed)
}

func flushBlanks(out markdown.Document, blanks int, removed bool) markdown.Document {
	if removed {
		if len(out) == 0 || blanks == 0 {
			return out
		}

		blanks = 1
	}

	for range blanks {
		out = append(out, "")
	}

	return out
}

// isStale reports whether line i is a media reference or caption left over
// from an earlier conversion.
func (r *Reflower) isStale(doc markdown.Document, i int) bool {
	line := doc[i]
	if markdown.IsBlank(line) {
		return false
	}

	if markdown.IsMediaRef(line) || r.rules.IsCaptionLine(line) {
		return true
	}

	if loneCloser.MatchString(strings.TrimSpace(line)) {
		return true
	}

	if markdown.IsBracketedLine(line) {
		if j := doc.PrevNonBlank(i); j >= 0 && markdown.IsMediaRef(doc[j]) {
			return true
		}
	}

	return false
}

func (r *Reflower) cleanLine(line string) string {
	cleaned := r.rules.StripInlineCaptions(line)
	cleaned = strayClosers.ReplaceAllString(cleaned, "")

	if cleaned != line {
		cleaned = strings.TrimRight(cleaned, " \t")
	}

	return cleaned
}

// Reflow cleans target, inserts every assignment and appends media no
// assignment consumed. Positions refer to lines of the cleaned target.
func (r *Reflower) Reflow(target markdown.Document, assignments []models.Assignment, media []models.MediaItem) Result {
	doc := r.Clean(target)

	ordered := make([]models.Assignment, len(assignments))
	copy(ordered, assignments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].TargetPosition != ordered[j].TargetPosition {
			return ordered[i].TargetPosition > ordered[j].TargetPosition
		}

		return ordered[i].CaptionIndex < ordered[j].CaptionIndex
	})

	var res Result

	consumed := make(map[string]bool)

	for _, a := range ordered {
		var ok bool

		doc, ok = r.insert(doc, a)
		if !ok {
			res.Skipped = append(res.Skipped, a)

			continue
		}

		consumed[a.Media.URL] = true
		res.Inserted = append(res.Inserted, a)
	}

	// Insertion ran back to front; report in document order.
	for i, j := 0, len(res.Inserted)-1; i < j; i, j = i+1, j-1 {
		res.Inserted[i], res.Inserted[j] = res.Inserted[j], res.Inserted[i]
	}

	var leftover []models.MediaItem

	for _, item := range media {
		if consumed[item.URL] {
			continue
		}

		consumed[item.URL] = true

		leftover = append(leftover, item)
	}

	doc = r.appendLeftover(doc, leftover)
	res.Appended = leftover
	res.Document = markdown.CollapseBlankRuns(doc, r.cfg.MaxBlankRun)

	return res
}

// insert places one assignment. It returns false when the position is out of
// range or already holds a media reference.
func (r *Reflower) insert(doc markdown.Document, a models.Assignment) (markdown.Document, bool) {
	p := a.TargetPosition
	if p < 0 || p > len(doc) {
		return doc, false
	}

	for p < len(doc) && markdown.IsBlank(doc[p]) {
		p++
	}

	if p < len(doc) && markdown.IsMediaRef(doc[p]) {
		return doc, false
	}

	doc, p = normalizeAbove(doc, p)

	block := []string{
		markdown.FormatMediaRef(a.Caption.NormalizedText, a.Media.URL),
		"",
		a.Caption.RawText,
	}

	if p < len(doc) && !markdown.IsMediaRef(doc[p]) {
		block = append(block, "")
	}

	return splice(doc, p, block), true
}

// normalizeAbove leaves exactly one blank line between line p and the prose
// above it, and none when p is at the top of the document.
func normalizeAbove(doc markdown.Document, p int) (markdown.Document, int) {
	j := p - 1
	for j >= 0 && markdown.IsBlank(doc[j]) {
		j--
	}

	blanks := p - 1 - j

	switch {
	case j < 0:
		return doc[p:], 0
	case markdown.IsMediaRef(doc[j]):
		return doc, p
	case blanks == 0:
		return splice(doc, p, []string{""}), p + 1
	case blanks > 1:
		return append(doc[:j+2], doc[p:]...), j + 2
	}

	return doc, p
}

func splice(doc markdown.Document, at int, lines []string) markdown.Document {
	out := make(markdown.Document, 0, len(doc)+len(lines))
	out = append(out, doc[:at]...)
	out = append(out, lines...)

	return append(out, doc[at:]...)
}

// appendLeftover puts unconsumed media just before the trailing promotional
// block, or at the end of the document when there is none.
func (r *Reflower) appendLeftover(doc markdown.Document, leftover []models.MediaItem) markdown.Document {
	if len(leftover) == 0 {
		return doc
	}

	at := r.trailingStart(doc)
	doc, at = normalizeAbove(doc, at)

	block := make([]string, 0, len(leftover)*2)

	for _, item := range leftover {
		alt := item.AltText
		if alt == "" {
			alt = r.cfg.DefaultAlt
		}

		block = append(block, markdown.FormatMediaRef(alt, item.URL), "")
	}

	return splice(doc, at, block)
}

// trailingStart returns the first line of the trailing promotional block.
func (r *Reflower) trailingStart(doc markdown.Document) int {
	start := max(len(doc)-r.cfg.TrailingWindow, 0)

	for i := start; i < len(doc); i++ {
		if r.rules.IsTrailingMarker(doc[i]) {
			return i
		}
	}

	return len(doc)
}
