// Package models defines the data structures shared by the alignment pipeline.
package models

// Caption is a credit or description line located in the original document.
type Caption struct {
	// RawText is the matched span as it appears in the source, brackets included.
	RawText string `json:"rawText"`
	// NormalizedText is RawText without surrounding brackets or emphasis markers.
	NormalizedText string `json:"normalizedText"`
	// BeforeText and AfterText are the trimmed prose on the caption's own line.
	BeforeText string `json:"beforeText"`
	AfterText  string `json:"afterText"`
	// ContextBefore holds the nearest prior prose lines in document order.
	ContextBefore []string `json:"contextBefore"`
	// ContextAfter holds the nearest following prose lines in document order.
	ContextAfter    []string `json:"contextAfter"`
	SourceLineIndex int      `json:"sourceLineIndex"`
	// Tier is the 1-based surface pattern that produced the caption.
	Tier int `json:"tier"`
}

// PrevLine returns the nearest non-blank prose line before the caption.
func (c *Caption) PrevLine() string {
	if len(c.ContextBefore) == 0 {
		return ""
	}

	return c.ContextBefore[len(c.ContextBefore)-1]
}

// NextLine returns the nearest non-blank prose line after the caption.
func (c *Caption) NextLine() string {
	if len(c.ContextAfter) == 0 {
		return ""
	}

	return c.ContextAfter[0]
}

// IsStandalone reports whether the caption occupies its own line.
func (c *Caption) IsStandalone() bool {
	return c.BeforeText == "" && c.AfterText == ""
}
