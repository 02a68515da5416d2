// Package validator runs post-alignment checks over a markdown document and
// reports layout problems that need manual follow-up.
package validator

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"blogmigrate/internal/markdown"
	"blogmigrate/pkg/utils"
)

// Check identifies one kind of problem.
type Check string

// Checks.
const (
	CheckDuplicateMedia     Check = "duplicate_media"
	CheckBlankRun           Check = "blank_run"
	CheckRepeatedCaption    Check = "repeated_caption"
	CheckTrailingPile       Check = "trailing_pile"
	CheckDuplicateParagraph Check = "duplicate_paragraph"
	CheckOrphanCaption      Check = "orphan_caption"
)

// Severity of a finding. Warnings do not make a document invalid.
type Severity int

// Severities.
const (
	SeverityError Severity = iota
	SeverityWarning
)

const (
	defaultPileSize        = 3
	defaultMinParagraphLen = 20
	previewWidth           = 40
)

// ValidationError is one finding. Line is 1-based.
type ValidationError struct {
	Check    Check
	Severity Severity
	Line     int
	Value    string
	Message  string
}

// ValidationStats counts what the validator looked at.
type ValidationStats struct {
	Lines     int
	MediaRefs int
	Captions  int
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
	Stats    ValidationStats
	IsValid  bool
}

// DocumentValidator checks aligned documents.
type DocumentValidator struct {
	rules           *markdown.Rules
	maxBlankRun     int
	pileSize        int
	minParagraphLen int
}

// New creates a validator that allows at most maxBlankRun consecutive blank
// lines.
func New(rules *markdown.Rules, maxBlankRun int) *DocumentValidator {
	return &DocumentValidator{
		rules:           rules,
		maxBlankRun:     maxBlankRun,
		pileSize:        defaultPileSize,
		minParagraphLen: defaultMinParagraphLen,
	}
}

// Validate runs every check over doc.
func (v *DocumentValidator) Validate(doc markdown.Document) *ValidationResult {
	result := &ValidationResult{IsValid: true}
	result.Stats.Lines = len(doc)

	seenMedia := make(map[string]int)
	seenCaption := make(map[string]int)
	seenParagraph := make(map[string]int)

	blankStart, blanks := 0, 0

	for i, line := range doc {
		if markdown.IsBlank(line) {
			if blanks == 0 {
				blankStart = i
			}

			blanks++

			continue
		}

		if blanks > v.maxBlankRun {
			result.add(ValidationError{
				Check:   CheckBlankRun,
				Line:    blankStart + 1,
				Message: fmt.Sprintf("%d consecutive blank lines (max %d)", blanks, v.maxBlankRun),
			})
		}

		blanks = 0
		text := strings.TrimSpace(line)

		if ref, ok := markdown.ParseMediaRef(text); ok {
			result.Stats.MediaRefs++

			if first, dup := seenMedia[ref.URL]; dup {
				result.add(ValidationError{
					Check:   CheckDuplicateMedia,
					Line:    i + 1,
					Value:   ref.URL,
					Message: fmt.Sprintf("media also referenced on line %d", first),
				})
			} else {
				seenMedia[ref.URL] = i + 1
			}

			continue
		}

		if v.rules.IsCaptionLine(text) {
			result.Stats.Captions++

			if first, dup := seenCaption[text]; dup {
				result.add(ValidationError{
					Check:   CheckRepeatedCaption,
					Line:    i + 1,
					Value:   utils.Preview(text, previewWidth),
					Message: fmt.Sprintf("caption repeats line %d", first),
				})
			} else {
				seenCaption[text] = i + 1
			}

			if !v.nearMedia(doc, i) {
				result.add(ValidationError{
					Check:    CheckOrphanCaption,
					Severity: SeverityWarning,
					Line:     i + 1,
					Value:    utils.Preview(text, previewWidth),
					Message:  "caption has no neighbouring media reference",
				})
			}

			continue
		}

		if utf8.RuneCountInString(text) <= v.minParagraphLen {
			continue
		}

		if first, dup := seenParagraph[text]; dup {
			result.add(ValidationError{
				Check:    CheckDuplicateParagraph,
				Severity: SeverityWarning,
				Line:     i + 1,
				Value:    utils.Preview(text, previewWidth),
				Message:  fmt.Sprintf("paragraph repeats line %d", first),
			})
		} else {
			seenParagraph[text] = i + 1
		}
	}

	if blanks > v.maxBlankRun {
		result.add(ValidationError{
			Check:   CheckBlankRun,
			Line:    blankStart + 1,
			Message: fmt.Sprintf("%d consecutive blank lines (max %d)", blanks, v.maxBlankRun),
		})
	}

	if line, n := v.trailingPile(doc); n >= v.pileSize {
		result.add(ValidationError{
			Check:   CheckTrailingPile,
			Line:    line + 1,
			Message: fmt.Sprintf("%d caption-less media references piled at the end", n),
		})
	}

	return result
}

func (r *ValidationResult) add(e ValidationError) {
	if e.Severity == SeverityWarning {
		r.Warnings = append(r.Warnings, e)

		return
	}

	r.Errors = append(r.Errors, e)
	r.IsValid = false
}

func (v *DocumentValidator) nearMedia(doc markdown.Document, i int) bool {
	if j := doc.PrevNonBlank(i); j >= 0 && markdown.IsMediaRef(doc[j]) {
		return true
	}

	if j := doc.NextNonBlank(i); j >= 0 && markdown.IsMediaRef(doc[j]) {
		return true
	}

	return false
}

// trailingPile counts the media references that end the body, ignoring any
// promo or trailing-marker lines after them. It returns the line of the first
// piled reference.
func (v *DocumentValidator) trailingPile(doc markdown.Document) (int, int) {
	i := len(doc) - 1

	for ; i >= 0; i-- {
		line := doc[i]
		if markdown.IsBlank(line) || v.rules.IsTrailingMarker(line) || v.rules.IsPromo(line) {
			continue
		}

		break
	}

	first, n := -1, 0

	for ; i >= 0; i-- {
		if markdown.IsBlank(doc[i]) {
			continue
		}

		if !markdown.IsMediaRef(doc[i]) {
			break
		}

		first = i
		n++
	}

	return first, n
}

// String returns a one-line summary.
func (r *ValidationResult) String() string {
	status := "VALID"
	if !r.IsValid {
		status = "INVALID"
	}

	return fmt.Sprintf(
		"%s | Lines: %d | Media: %d | Captions: %d | Errors: %d | Warnings: %d",
		status,
		r.Stats.Lines,
		r.Stats.MediaRefs,
		r.Stats.Captions,
		len(r.Errors),
		len(r.Warnings),
	)
}

// Print writes errors then warnings in readable form.
func (r *ValidationResult) Print(w io.Writer) {
	printFindings(w, "Errors:", r.Errors)
	printFindings(w, "Warnings:", r.Warnings)
}

func printFindings(w io.Writer, title string, findings []ValidationError) {
	if len(findings) == 0 {
		return
	}

	fmt.Fprintln(w, title)

	for _, f := range findings {
		fmt.Fprintf(w, "  Line %d [%s]: %s\n", f.Line, f.Check, f.Message)

		if f.Value != "" {
			fmt.Fprintf(w, "    Found: %q\n", f.Value)
		}
	}
}
