package crawler

import (
	"context"
	"fmt"
)

// Cache stores fetched pages by URL.
type Cache interface {
	Get(url string) (string, bool, error)
	Put(url, body string) error
}

// Page is a source page ready for extraction.
type Page struct {
	URL       string
	HTML      string
	FromCache bool
	Attempts  int
}

// Client fetches source pages, consulting the cache first when one is set.
type Client struct {
	scraper *Scraper
	cache   Cache
	index   *ArticleIndex
}

// NewClient creates a client. cache and index may be nil.
func NewClient(scraper *Scraper, cache Cache, index *ArticleIndex) *Client {
	return &Client{scraper: scraper, cache: cache, index: index}
}

// SourceURL returns the source URL listed for a post title.
func (c *Client) SourceURL(title string) (string, error) {
	if c.index == nil {
		return "", fmt.Errorf("%w: no article list loaded", ErrArticleNotFound)
	}

	a, err := c.index.Lookup(title)
	if err != nil {
		return "", err
	}

	return UpgradeScheme(a.URL), nil
}

// Get returns the page at url. A cache read failure falls through to the
// network; a cache write failure is returned alongside the page.
func (c *Client) Get(ctx context.Context, url string) (*Page, error) {
	url = UpgradeScheme(url)

	if c.cache != nil {
		if body, ok, err := c.cache.Get(url); err == nil && ok {
			return &Page{URL: url, HTML: body, FromCache: true}, nil
		}
	}

	res, err := c.scraper.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	page := &Page{URL: url, HTML: res.Body, Attempts: len(res.Attempts)}

	if c.cache != nil {
		if err := c.cache.Put(url, res.Body); err != nil {
			return page, fmt.Errorf("failed to cache %s: %w", url, err)
		}
	}

	return page, nil
}
