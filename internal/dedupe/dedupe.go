// Package dedupe removes repeated media references and captions.
package dedupe

import (
	"strings"

	"blogmigrate/internal/markdown"
)

// Deduper removes duplicates from a reflowed document.
type Deduper struct {
	rules       *markdown.Rules
	maxBlankRun int
}

// New creates a deduper that also limits blank runs to maxBlankRun lines.
func New(rules *markdown.Rules, maxBlankRun int) *Deduper {
	if maxBlankRun < 1 {
		maxBlankRun = 2
	}

	return &Deduper{rules: rules, maxBlankRun: maxBlankRun}
}

// Stats counts what a pass removed.
type Stats struct {
	MediaRemoved   int
	CaptionRemoved int
}

// Dedupe keeps the first reference to each media URL and the first occurrence
// of each caption. A caption may repeat only directly under a media reference
// it has not yet been paired with. A caption directly under a removed media
// reference goes with it when it was already kept under that URL, and a
// bracketed line repeating a kept caption counts as that caption. A blank
// line following a removed line is removed with it.
func (d *Deduper) Dedupe(doc markdown.Document) (markdown.Document, Stats) {
	var stats Stats

	out := make(markdown.Document, 0, len(doc))
	seenMedia := make(map[string]bool)
	seenCaption := make(map[string]bool)
	seenPair := make(map[string]bool)

	lastMedia := ""
	lastKept := ""
	lastDropped := ""
	dropBlank := false

	for _, line := range doc {
		if markdown.IsBlank(line) {
			if dropBlank {
				dropBlank = false

				continue
			}

			out = append(out, "")

			continue
		}

		dropBlank = false

		if ref, ok := markdown.ParseMediaRef(line); ok {
			if seenMedia[ref.URL] {
				stats.MediaRemoved++
				lastDropped = ref.URL
				dropBlank = true

				continue
			}

			seenMedia[ref.URL] = true
			lastMedia, lastKept, lastDropped = ref.URL, line, ""
			out = append(out, line)

			continue
		}

		under := ""

		switch {
		case lastDropped != "":
			under = lastDropped
		case markdown.IsMediaRef(lastKept):
			under = lastMedia
		}

		lastDropped = ""
		text := strings.TrimSpace(line)

		if d.isCaption(line, under) || (seenCaption[text] && markdown.IsBracketedLine(line)) {
			pair := text + "\x00" + under

			switch {
			case !seenCaption[text]:
				seenCaption[text] = true
				seenPair[pair] = true
			case under != "" && !seenPair[pair]:
				seenPair[pair] = true
			default:
				stats.CaptionRemoved++
				dropBlank = true

				continue
			}
		}

		lastKept = line
		out = append(out, line)
	}

	return markdown.CollapseBlankRuns(out, d.maxBlankRun), stats
}

// isCaption accepts keyword captions anywhere and bracketed lines directly
// under a media reference.
func (d *Deduper) isCaption(line, under string) bool {
	if d.rules.IsCaptionLine(line) {
		return true
	}

	return markdown.IsBracketedLine(line) && under != ""
}
