package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"blogmigrate/internal/models"
)

// Selection strategies.
const (
	StrategyOrdinal = "ordinal"
	StrategyScore   = "score"
)

// Selector picks the media item for a caption. used marks items already
// consumed; the returned index is -1 when nothing fits.
type Selector interface {
	Select(c models.Caption, captionIndex int, media []models.MediaItem, used []bool) (int, models.Outcome)
}

// Weights tune the alt-text scoring strategy.
type Weights struct {
	AltKeyword  int `yaml:"alt_keyword"`
	URLKeyword  int `yaml:"url_keyword"`
	Containment int `yaml:"containment"`
	Context     int `yaml:"context"`
}

// DefaultWeights returns the tuned scoring weights.
func DefaultWeights() Weights {
	return Weights{AltKeyword: 10, URLKeyword: 5, Containment: 20, Context: 3}
}

// NewSelector builds the selector for a strategy name.
func NewSelector(strategy string, weights Weights, minScore int) (Selector, error) {
	switch strategy {
	case "", StrategyOrdinal:
		return OrdinalSelector{}, nil
	case StrategyScore:
		return &ScoreSelector{Weights: weights, MinScore: minScore}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

// OrdinalSelector pairs the i-th caption with the i-th media item.
type OrdinalSelector struct{}

// Select implements Selector.
func (OrdinalSelector) Select(_ models.Caption, captionIndex int, media []models.MediaItem, used []bool) (int, models.Outcome) {
	if captionIndex >= len(media) {
		return -1, models.OutcomeInsufficientMedia
	}

	if used[captionIndex] {
		return -1, models.OutcomeAlreadyProcessed
	}

	return captionIndex, models.OutcomeInserted
}

var hanRun = regexp.MustCompile(`\p{Han}{2,}`)

// ScoreSelector picks the unused item whose alt text and URL best match the
// caption and its neighbouring lines.
type ScoreSelector struct {
	Weights  Weights
	MinScore int
}

// Select implements Selector.
func (s *ScoreSelector) Select(c models.Caption, _ int, media []models.MediaItem, used []bool) (int, models.Outcome) {
	best, bestScore, free := -1, 0, 0

	for i, item := range media {
		if used[i] {
			continue
		}

		free++

		if score := s.Score(c, item); score > bestScore {
			best, bestScore = i, score
		}
	}

	if free == 0 {
		return -1, models.OutcomeInsufficientMedia
	}

	if best < 0 || bestScore < s.MinScore {
		return -1, models.OutcomeNoMediaMatch
	}

	return best, models.OutcomeInserted
}

// Score rates how well item fits caption c.
func (s *ScoreSelector) Score(c models.Caption, item models.MediaItem) int {
	score := 0
	alt := strings.TrimSpace(item.AltText)

	for _, kw := range hanRun.FindAllString(c.NormalizedText, -1) {
		if alt != "" && strings.Contains(alt, kw) {
			score += s.Weights.AltKeyword
		}

		if strings.Contains(item.URL, kw) {
			score += s.Weights.URLKeyword
		}
	}

	if alt != "" && (strings.Contains(alt, c.NormalizedText) || strings.Contains(c.NormalizedText, alt)) {
		score += s.Weights.Containment
	}

	if alt != "" {
		for _, line := range []string{c.PrevLine(), c.NextLine()} {
			for _, kw := range hanRun.FindAllString(line, -1) {
				if strings.Contains(alt, kw) {
					score += s.Weights.Context
				}
			}
		}
	}

	return score
}
