package models

// MediaItem is an image reference recovered from the source page.
type MediaItem struct {
	URL     string `json:"url"`
	AltText string `json:"altText,omitempty"`
	// Width and Height are zero when the page did not declare them.
	Width        int `json:"width,omitempty"`
	Height       int `json:"height,omitempty"`
	OrdinalIndex int `json:"ordinalIndex"`
}

// HasDimensions reports whether both dimensions are known.
func (m *MediaItem) HasDimensions() bool {
	return m.Width > 0 && m.Height > 0
}

// Assignment pairs a caption with a media item and an insertion line.
type Assignment struct {
	Caption Caption   `json:"caption"`
	Media   MediaItem `json:"media"`
	// TargetPosition is a line index in the cleaned target document.
	TargetPosition int `json:"targetPosition"`
	// CaptionIndex is the caption's position in locator order.
	CaptionIndex int `json:"captionIndex"`
}
