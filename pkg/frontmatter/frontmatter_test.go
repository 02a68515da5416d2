package frontmatter

import (
	"errors"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantTitle string
		wantDate  string
		wantBody  string
		wantNil   bool
	}{
		{
			name:      "yaml block",
			content:   "---\ntitle: \"春天的院子\"\ndate: 2021-04-01\n---\n正文\n",
			wantTitle: "春天的院子",
			wantDate:  "2021-04-01",
			wantBody:  "正文\n",
		},
		{
			name:      "invalid yaml falls back to regex",
			content:   "---\ntitle: 远山: 续\ntags: [a\n---\nbody",
			wantTitle: "远山: 续",
			wantBody:  "body",
		},
		{
			name:     "no block",
			content:  "just text\n",
			wantBody: "just text\n",
			wantNil:  true,
		},
		{
			name:     "block not at start",
			content:  "intro\n---\ntitle: x\n---\n",
			wantBody: "intro\n---\ntitle: x\n---\n",
			wantNil:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body := Split(tt.content)
			if body != tt.wantBody {
				t.Errorf("Split() body = %q, want %q", body, tt.wantBody)
			}

			if tt.wantNil {
				if fm != nil {
					t.Errorf("Split() front matter = %+v, want nil", fm)
				}

				return
			}

			if fm == nil {
				t.Fatal("Split() front matter = nil")
			}

			if fm.Title != tt.wantTitle {
				t.Errorf("Split() title = %q, want %q", fm.Title, tt.wantTitle)
			}

			if fm.Date != tt.wantDate {
				t.Errorf("Split() date = %q, want %q", fm.Date, tt.wantDate)
			}
		})
	}
}

func TestJoinRoundTrip(t *testing.T) {
	content := "---\ntitle: a\nauthor: b\n---\n第一段\n\n第二段\n"

	fm, body := Split(content)
	if got := Join(fm, body); got != content {
		t.Errorf("Join(Split()) = %q, want %q", got, content)
	}

	if got := Join(nil, "x"); got != "x" {
		t.Errorf("Join(nil) = %q, want %q", got, "x")
	}
}

func TestTitle(t *testing.T) {
	if _, err := Title("no block"); !errors.Is(err, ErrNoTitle) {
		t.Errorf("Title() error = %v, want %v", err, ErrNoTitle)
	}

	got, err := Title("---\ntitle: 远山\n---\n")
	if err != nil || got != "远山" {
		t.Errorf("Title() = %q, %v, want %q", got, err, "远山")
	}
}

func TestHash(t *testing.T) {
	if Hash("body\n\n") != Hash("body") {
		t.Error("Hash() should ignore trailing newlines")
	}

	if Hash("a") == Hash("b") {
		t.Error("Hash() collision for different bodies")
	}
}
