// Package normalizer turns raw image descriptors from a page into the ordered
// media list used for alignment.
package normalizer

import (
	"blogmigrate/internal/models"
)

// RawImage is an image element as found in the page.
type RawImage struct {
	// Src is the first non-empty source attribute.
	Src    string
	Alt    string
	Width  string
	Height string
}

// Rejection records why a raw image was dropped.
type Rejection struct {
	Image  RawImage
	Reason error
}

// Processor resolves and filters raw images.
type Processor struct {
	validator   *Validator
	transformer *Transformer
}

// NewProcessor creates a processor with the given filter rules.
func NewProcessor(rules Rules) *Processor {
	return &Processor{
		validator:   NewValidator(rules),
		transformer: NewTransformer(),
	}
}

// Process resolves every raw image against baseURL and keeps those that pass
// the filters, in source order. Repeated URLs keep their first occurrence.
func (p *Processor) Process(raw []RawImage, baseURL string) ([]models.MediaItem, []Rejection) {
	var (
		items    []models.MediaItem
		rejected []Rejection
	)

	seen := make(map[string]bool)

	for _, img := range raw {
		item, err := p.transformer.Transform(img, baseURL)
		if err == nil {
			err = p.validator.Validate(item)
		}

		if err == nil && seen[item.URL] {
			err = ErrDuplicate
		}

		if err != nil {
			rejected = append(rejected, Rejection{Image: img, Reason: err})

			continue
		}

		seen[item.URL] = true
		item.OrdinalIndex = len(items)
		items = append(items, item)
	}

	return items, rejected
}
