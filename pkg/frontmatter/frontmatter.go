// Package frontmatter splits a post into its leading `---` YAML block and the
// markdown body, and joins them back.
package frontmatter

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Delimiter opens and closes the block.
const Delimiter = "---"

// ErrNoTitle is returned when the block carries no title.
var ErrNoTitle = errors.New("no title in front matter")

// FrontMatter is the raw block plus the fields the pipeline reads.
type FrontMatter struct {
	Raw   string
	Title string
	Date  string
}

type fields struct {
	Title string `yaml:"title"`
	Date  string `yaml:"date"`
}

// blockRegex matches the front matter block at the start of a post.
var blockRegex = regexp.MustCompile(`(?s)\A---[ \t]*\r?\n(.*?)\r?\n---[ \t]*(?:\r?\n|\z)`)

// titleRegex is the fallback for blocks that are not valid YAML.
var titleRegex = regexp.MustCompile(`(?m)^title:\s*["']?(.*?)["']?\s*$`)

// Split separates the front matter from the body. The FrontMatter is nil when
// the post has no block, in which case body is the whole content.
func Split(content string) (*FrontMatter, string) {
	loc := blockRegex.FindStringSubmatchIndex(content)
	if loc == nil {
		return nil, content
	}

	fm := &FrontMatter{Raw: content[loc[2]:loc[3]]}

	var f fields
	if err := yaml.Unmarshal([]byte(fm.Raw), &f); err == nil {
		fm.Title = strings.TrimSpace(f.Title)
		fm.Date = strings.TrimSpace(f.Date)
	} else if m := titleRegex.FindStringSubmatch(fm.Raw); m != nil {
		fm.Title = strings.TrimSpace(m[1])
	}

	return fm, content[loc[1]:]
}

// Join re-attaches the block unchanged in front of body.
func Join(fm *FrontMatter, body string) string {
	if fm == nil {
		return body
	}

	return Delimiter + "\n" + fm.Raw + "\n" + Delimiter + "\n" + body
}

// Title returns the post title from its front matter.
func Title(content string) (string, error) {
	fm, _ := Split(content)
	if fm == nil || fm.Title == "" {
		return "", ErrNoTitle
	}

	return fm.Title, nil
}

// Hash computes the SHA-256 of the body with trailing newlines trimmed.
func Hash(body string) string {
	sum := sha256.Sum256([]byte(strings.TrimRight(body, "\n")))

	return hex.EncodeToString(sum[:])
}
