package crawler

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"blogmigrate/internal/models"
	"blogmigrate/pkg/utils"
)

// ErrArticleNotFound is returned when no listed article matches a title.
var ErrArticleNotFound = errors.New("article not found in list")

// ArticleIndex maps post titles to source URLs.
type ArticleIndex struct {
	articles []models.Article
	exact    map[string]int
}

// LoadArticleIndex reads a JSON array of {title, url} entries. Entries without
// an http(s) URL are ignored.
func LoadArticleIndex(path string) (*ArticleIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read article list: %w", err)
	}

	var articles []models.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("failed to parse article list %s: %w", path, err)
	}

	return NewArticleIndex(articles), nil
}

// NewArticleIndex builds an index over articles.
func NewArticleIndex(articles []models.Article) *ArticleIndex {
	idx := &ArticleIndex{exact: make(map[string]int)}

	for _, a := range articles {
		if !utils.IsHTTPURL(a.URL) {
			continue
		}

		key := utils.NormalizeTitle(a.Title)
		if _, dup := idx.exact[key]; !dup {
			idx.exact[key] = len(idx.articles)
		}

		idx.articles = append(idx.articles, a)
	}

	return idx
}

// Len returns the number of usable articles.
func (x *ArticleIndex) Len() int {
	return len(x.articles)
}

// Lookup finds the article for a post title. An exact normalized match wins
// over containment; among containment matches the first listed wins.
func (x *ArticleIndex) Lookup(title string) (models.Article, error) {
	if i, ok := x.exact[utils.NormalizeTitle(title)]; ok {
		return x.articles[i], nil
	}

	for _, a := range x.articles {
		if utils.TitlesMatch(title, a.Title) {
			return a, nil
		}
	}

	return models.Article{}, fmt.Errorf("%w: %s", ErrArticleNotFound, title)
}
