package crawler

import (
	"errors"
	"fmt"
)

// Fetch failure kinds. A FetchError wraps exactly one of them.
var (
	ErrBlocked              = errors.New("blocked by anti-bot check")
	ErrTimeout              = errors.New("fetch timed out")
	ErrNotFound             = errors.New("page not found")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrRequest              = errors.New("request failed")
)

// FetchError describes a failed fetch.
type FetchError struct {
	Kind       error
	URL        string
	Err        error
	StatusCode int
	Attempts   int
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %v", e.URL, e.Kind)

	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}
