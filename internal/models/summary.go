package models

// Outcome classifies what happened to one caption during alignment.
type Outcome int

// Caption outcomes.
const (
	OutcomeInserted Outcome = iota
	OutcomeNoPositionFound
	OutcomeInsufficientMedia
	OutcomeNoMediaMatch
	OutcomeAlreadyProcessed
)

// String returns the outcome name used in logs and the ledger.
func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeNoPositionFound:
		return "no_position_found"
	case OutcomeInsufficientMedia:
		return "insufficient_media"
	case OutcomeNoMediaMatch:
		return "no_media_match"
	case OutcomeAlreadyProcessed:
		return "already_processed"
	}

	return "unknown"
}

// Status is the document-level result of one alignment.
type Status string

// Document statuses.
const (
	StatusAligned         Status = "aligned"
	StatusUnchanged       Status = "unchanged"
	StatusNoCaptionsFound Status = "no_captions_found"
	StatusNoMediaFound    Status = "no_media_found"
	StatusFailed          Status = "failed"
)

// CaptionResult records the outcome for a single caption.
type CaptionResult struct {
	Caption  Caption `json:"caption"`
	Outcome  Outcome `json:"outcome"`
	Position int     `json:"position"`
	MediaURL string  `json:"mediaUrl,omitempty"`
}

// Summary is the per-document report produced by the pipeline.
type Summary struct {
	Document      string          `json:"document"`
	Status        Status          `json:"status"`
	CaptionsFound int             `json:"captionsFound"`
	MediaFound    int             `json:"mediaFound"`
	Matched       int             `json:"matched"`
	MediaInserted int             `json:"mediaInserted"`
	MediaAppended int             `json:"mediaAppended"`
	Results       []CaptionResult `json:"results"`
	Error         string          `json:"error,omitempty"`
}

// Unmatched returns the captions that did not receive a media item.
func (s *Summary) Unmatched() []CaptionResult {
	var out []CaptionResult

	for _, r := range s.Results {
		if r.Outcome != OutcomeInserted {
			out = append(out, r)
		}
	}

	return out
}
