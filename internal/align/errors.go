package align

import (
	"errors"

	"blogmigrate/internal/models"
)

// Alignment outcomes as error values. None of them is fatal to a batch.
var (
	ErrNoCaptionsFound   = errors.New("no captions found in original document")
	ErrNoMediaFound      = errors.New("no media items extracted from source")
	ErrNoPositionFound   = errors.New("no insertion position found")
	ErrInsufficientMedia = errors.New("more captions than media items")
	ErrNoMediaMatch      = errors.New("no media item scored high enough")
	ErrAlreadyProcessed  = errors.New("position already holds a media reference")
)

// OutcomeError returns the error value for a caption outcome, or nil when the
// caption was inserted.
func OutcomeError(o models.Outcome) error {
	switch o {
	case models.OutcomeNoPositionFound:
		return ErrNoPositionFound
	case models.OutcomeInsufficientMedia:
		return ErrInsufficientMedia
	case models.OutcomeNoMediaMatch:
		return ErrNoMediaMatch
	case models.OutcomeAlreadyProcessed:
		return ErrAlreadyProcessed
	}

	return nil
}
