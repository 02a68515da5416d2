package normalizer

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"blogmigrate/internal/models"
)

// Transformer resolves raw attributes into a media item.
type Transformer struct{}

// NewTransformer creates a new transformer instance.
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform resolves the source against baseURL and parses the dimensions.
func (t *Transformer) Transform(img RawImage, baseURL string) (models.MediaItem, error) {
	src := strings.TrimSpace(img.Src)
	if src == "" {
		return models.MediaItem{}, ErrMissingSource
	}

	resolved, err := resolve(src, baseURL)
	if err != nil {
		return models.MediaItem{}, err
	}

	return models.MediaItem{
		URL:     resolved,
		AltText: strings.TrimSpace(img.Alt),
		Width:   t.parseDimension(img.Width),
		Height:  t.parseDimension(img.Height),
	}, nil
}

func resolve(src, baseURL string) (string, error) {
	if strings.HasPrefix(src, "//") {
		return "https:" + src, nil
	}

	ref, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, src)
	}

	if ref.IsAbs() {
		return ref.String(), nil
	}

	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		return "", fmt.Errorf("%w: relative %s without base", ErrInvalidURL, src)
	}

	return base.ResolveReference(ref).String(), nil
}

// parseDimension reads a pixel width or height attribute, so "640" and
// "640px" read as 640. Percentages, other units and junk are unknown (0).
func (t *Transformer) parseDimension(s string) int {
	s = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "px")

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}

	return n
}
