package normalizer

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"blogmigrate/internal/models"
)

// Rejection reasons.
var (
	ErrMissingSource = errors.New("image has no source attribute")
	ErrInvalidURL    = errors.New("invalid image URL")
	ErrBlocklisted   = errors.New("decorative image")
	ErrUntrustedGIF  = errors.New("animated image from untrusted host")
	ErrTooSmall      = errors.New("image below minimum size")
	ErrUnknownFormat = errors.New("not a recognized image")
	ErrDuplicate     = errors.New("duplicate image URL")
)

// Rules configure the filters.
type Rules struct {
	Blocklist       []string
	ImageExtensions []string
	TrustedHosts    []string
	MinWidth        int
	MinHeight       int
	// MinSizeAnimatedOnly limits the size filter to animated formats.
	MinSizeAnimatedOnly bool
}

// Validator applies the filter rules to resolved media items.
type Validator struct {
	rules Rules
}

// NewValidator creates a new validator instance.
func NewValidator(rules Rules) *Validator {
	return &Validator{rules: rules}
}

// Validate returns nil when item should be kept.
func (v *Validator) Validate(item models.MediaItem) error {
	lower := strings.ToLower(item.URL)

	for _, word := range v.rules.Blocklist {
		if word != "" && strings.Contains(lower, strings.ToLower(word)) {
			return fmt.Errorf("%w: %s", ErrBlocklisted, word)
		}
	}

	trusted := v.trusted(lower)
	animated := isAnimated(lower)

	if strings.Contains(lower, "wx_fmt=gif") && !trusted {
		return ErrUntrustedGIF
	}

	if item.HasDimensions() && (animated || !v.rules.MinSizeAnimatedOnly) {
		if item.Width < v.rules.MinWidth || item.Height < v.rules.MinHeight {
			return fmt.Errorf("%w: %dx%d", ErrTooSmall, item.Width, item.Height)
		}
	}

	if !trusted && !v.knownExtension(lower) {
		return ErrUnknownFormat
	}

	return nil
}

func (v *Validator) trusted(lower string) bool {
	for _, host := range v.rules.TrustedHosts {
		if host != "" && strings.Contains(lower, strings.ToLower(host)) {
			return true
		}
	}

	return false
}

func (v *Validator) knownExtension(lower string) bool {
	p := lower
	if u, err := url.Parse(lower); err == nil {
		p = u.Path
	}

	ext := path.Ext(p)

	for _, known := range v.rules.ImageExtensions {
		if ext != "" && ext == strings.ToLower(known) {
			return true
		}
	}

	return false
}

func isAnimated(lower string) bool {
	if strings.Contains(lower, "wx_fmt=gif") {
		return true
	}

	if u, err := url.Parse(lower); err == nil {
		return path.Ext(u.Path) == ".gif"
	}

	return false
}
