// Package align runs the caption-to-media alignment pipeline on one document.
package align

import (
	"blogmigrate/internal/caption"
	"blogmigrate/internal/dedupe"
	"blogmigrate/internal/markdown"
	"blogmigrate/internal/matcher"
	"blogmigrate/internal/models"
	"blogmigrate/internal/reflow"
)

// Config gathers the settings of every pipeline stage.
type Config struct {
	Keywords        []string
	PromoDenylist   []string
	TrailingMarkers []string
	ContextWindow   int
	Matcher         matcher.Config
	Strategy        string
	Weights         matcher.Weights
	MinScore        int
	Reflow          reflow.Config
}

// DefaultConfig returns a configuration with the tuned thresholds and no
// vocabulary.
func DefaultConfig() Config {
	return Config{
		ContextWindow: caption.DefaultWindow,
		Matcher:       matcher.DefaultConfig(),
		Strategy:      matcher.StrategyOrdinal,
		Weights:       matcher.DefaultWeights(),
		MinScore:      5,
		Reflow:        reflow.DefaultConfig(),
	}
}

// Pipeline aligns captions from an original document with media items in a
// target document. It holds no per-document state.
type Pipeline struct {
	locator  *caption.Locator
	matcher  *matcher.Matcher
	selector matcher.Selector
	reflower *reflow.Reflower
	deduper  *dedupe.Deduper
}

// New builds a pipeline.
func New(cfg Config) (*Pipeline, error) {
	sel, err := matcher.NewSelector(cfg.Strategy, cfg.Weights, cfg.MinScore)
	if err != nil {
		return nil, err
	}

	rules := markdown.NewRules(cfg.Keywords, cfg.PromoDenylist, cfg.TrailingMarkers)
	rf := reflow.New(rules, cfg.Reflow)

	return &Pipeline{
		locator:  caption.NewLocator(rules, cfg.ContextWindow),
		matcher:  matcher.New(cfg.Matcher),
		selector: sel,
		reflower: rf,
		deduper:  dedupe.New(rules, cfg.Reflow.MaxBlankRun),
	}, nil
}

// Result is the aligned document and its summary.
type Result struct {
	Document markdown.Document
	Summary  models.Summary
}

// Err returns ErrNoCaptionsFound or ErrNoMediaFound when there was nothing
// to align.
func (r *Result) Err() error {
	switch r.Summary.Status {
	case models.StatusNoCaptionsFound:
		return ErrNoCaptionsFound
	case models.StatusNoMediaFound:
		return ErrNoMediaFound
	}

	return nil
}

// Overrides force the position of captions, keyed by normalized caption text.
// Positions are line indexes in the cleaned target.
type Overrides map[string]int

// Locate exposes the caption locator.
func (p *Pipeline) Locate(doc markdown.Document) []models.Caption {
	return p.locator.Locate(doc)
}

// Clean exposes the reflower's cleanup step.
func (p *Pipeline) Clean(doc markdown.Document) markdown.Document {
	return p.reflower.Clean(doc)
}

// Dedupe exposes the deduplication pass.
func (p *Pipeline) Dedupe(doc markdown.Document) (markdown.Document, dedupe.Stats) {
	return p.deduper.Dedupe(doc)
}

// AlignAndReflow places media next to the prose their captions described in
// original. Running it on its own output yields the same document.
func (p *Pipeline) AlignAndReflow(original, target markdown.Document, media []models.MediaItem, overrides Overrides) Result {
	captions := p.locator.Locate(original)

	summary := models.Summary{
		CaptionsFound: len(captions),
		MediaFound:    len(media),
	}

	if len(captions) == 0 {
		summary.Status = models.StatusNoCaptionsFound

		return Result{Document: target.Clone(), Summary: summary}
	}

	// Cleanup would strip the existing references with nothing to put back.
	if len(media) == 0 {
		summary.Status = models.StatusNoMediaFound
		summary.Results = make([]models.CaptionResult, len(captions))

		for i, c := range captions {
			summary.Results[i] = models.CaptionResult{Caption: c, Outcome: models.OutcomeInsufficientMedia, Position: -1}
		}

		return Result{Document: target.Clone(), Summary: summary}
	}

	cleaned := p.reflower.Clean(target)
	prepared := matcher.Prepare(cleaned)
	used := make([]bool, len(media))
	results := make([]models.CaptionResult, len(captions))

	var assignments []models.Assignment

	for i, c := range captions {
		results[i] = models.CaptionResult{Caption: c, Position: -1}

		idx, outcome := p.selector.Select(c, i, media, used)
		if outcome != models.OutcomeInserted {
			results[i].Outcome = outcome

			continue
		}

		pos, ok := p.position(c, prepared, overrides)
		if !ok {
			results[i].Outcome = models.OutcomeNoPositionFound

			continue
		}

		used[idx] = true
		results[i].Position = pos
		results[i].MediaURL = media[idx].URL

		assignments = append(assignments, models.Assignment{
			Caption:        c,
			Media:          media[idx],
			TargetPosition: pos,
			CaptionIndex:   i,
		})
	}

	res := p.reflower.Reflow(cleaned, assignments, media)

	for _, a := range res.Skipped {
		results[a.CaptionIndex].Outcome = models.OutcomeAlreadyProcessed
	}

	doc, _ := p.deduper.Dedupe(res.Document)

	summary.Results = results
	summary.MediaInserted = len(res.Inserted)
	summary.MediaAppended = len(res.Appended)
	summary.Matched = len(res.Inserted)
	summary.Status = models.StatusAligned

	if doc.String() == target.String() {
		summary.Status = models.StatusUnchanged
	}

	return Result{Document: doc, Summary: summary}
}

func (p *Pipeline) position(c models.Caption, t *matcher.Target, overrides Overrides) (int, bool) {
	if pos, ok := overrides[c.NormalizedText]; ok {
		if pos < 0 || pos > t.Len() || t.IsMedia(pos) {
			return 0, false
		}

		return pos, true
	}

	pos, _, ok := p.matcher.FindPosition(c, t)

	return pos, ok
}
