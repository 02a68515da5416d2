package models

// Article is one entry of the exported article list.
type Article struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Date  string `json:"date,omitempty"`
}
