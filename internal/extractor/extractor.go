// Package extractor pulls image references out of a source page.
package extractor

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"blogmigrate/internal/models"
	"blogmigrate/internal/normalizer"
)

// ErrNoContent is returned when content selectors are configured and none
// of them matches.
var ErrNoContent = errors.New("content container not found")

// sourceAttrs are tried in order; lazy-loading pages keep the real URL in
// data-src.
var sourceAttrs = []string{"data-src", "src", "data-original", "data-lazy-src"}

// Options select the element that holds the article body.
type Options struct {
	ContentIDs     []string
	ContentClasses []string
}

// Extractor finds media items in HTML.
type Extractor struct {
	opts      Options
	processor *normalizer.Processor
}

// New creates an extractor.
func New(opts Options, rules normalizer.Rules) *Extractor {
	return &Extractor{opts: opts, processor: normalizer.NewProcessor(rules)}
}

// Result is the outcome of one extraction.
type Result struct {
	Media    []models.MediaItem
	Rejected []normalizer.Rejection
	Title    string
}

// Extract parses rawHTML and returns its media items in source order.
func (e *Extractor) Extract(rawHTML, baseURL string) (*Result, error) {
	return e.ExtractReader(strings.NewReader(rawHTML), baseURL)
}

// ExtractReader is Extract over a reader.
func (e *Extractor) ExtractReader(r io.Reader, baseURL string) (*Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	root := e.content(doc)
	if root == nil {
		return nil, ErrNoContent
	}

	raw := Images(root)
	media, rejected := e.processor.Process(raw, baseURL)

	return &Result{
		Media:    media,
		Rejected: rejected,
		Title:    pageTitle(doc),
	}, nil
}

// content returns the article container, or the whole document when no
// selectors are configured.
func (e *Extractor) content(doc *html.Node) *html.Node {
	if len(e.opts.ContentIDs) == 0 && len(e.opts.ContentClasses) == 0 {
		return doc
	}

	return findNode(doc, func(n *html.Node) bool {
		if id := getAttr(n, "id"); id != "" && slices.Contains(e.opts.ContentIDs, id) {
			return true
		}

		classes := strings.Fields(getAttr(n, "class"))
		for _, c := range e.opts.ContentClasses {
			if slices.Contains(classes, c) {
				return true
			}
		}

		return false
	})
}

// Images collects every img element under n in document order.
func Images(n *html.Node) []normalizer.RawImage {
	var out []normalizer.RawImage

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if shouldSkipElement(n) {
				return
			}

			if n.DataAtom == atom.Img {
				out = append(out, rawImage(n))
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)

	return out
}

func rawImage(n *html.Node) normalizer.RawImage {
	return normalizer.RawImage{
		Src:    firstAttr(n, sourceAttrs...),
		Alt:    firstAttr(n, "alt", "title"),
		Width:  firstAttr(n, "width", "data-width"),
		Height: firstAttr(n, "height", "data-height"),
	}
}

// shouldSkipElement reports elements whose images never belong to the body.
func shouldSkipElement(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}

	return false
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}

	return nil
}

func pageTitle(doc *html.Node) string {
	t := findNode(doc, func(n *html.Node) bool { return n.DataAtom == atom.Title })
	if t == nil || t.FirstChild == nil {
		return ""
	}

	return strings.TrimSpace(t.FirstChild.Data)
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}

	return ""
}

func firstAttr(n *html.Node, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(getAttr(n, key)); v != "" {
			return v
		}
	}

	return ""
}
