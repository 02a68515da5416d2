package formatter

import (
	"slices"
	"testing"

	"blogmigrate/internal/markdown"
)

func testRules() *markdown.Rules {
	return markdown.NewRules([]string{"摄", "photo"}, []string{"感谢关注"}, []string{"* * *"})
}

func TestRestoreParagraphs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "split run-on paragraphs",
			input: "春天来了。\n院子里开满了花。\n我们去看。",
			want:  "春天来了。\n\n院子里开满了花。\n\n我们去看。",
		},
		{
			name:  "closing quote after terminator",
			input: "他说：“走吧。”\n于是我们出发",
			want:  "他说：“走吧。”\n\n于是我们出发",
		},
		{
			name:  "mid-sentence line break kept",
			input: "这是一句\n没有结束的话。",
			want:  "这是一句\n没有结束的话。",
		},
		{
			name:  "media and captions untouched",
			input: "结束了。\n![a](https://x/1.jpg)\n（院子 张三 摄）\n下一段。",
			want:  "结束了。\n![a](https://x/1.jpg)\n（院子 张三 摄）\n下一段。",
		},
		{
			name:  "lists and headings untouched",
			input: "标题。\n- item.\n- item2.\n# Head.\n1. one.",
			want:  "标题。\n- item.\n- item2.\n# Head.\n1. one.",
		},
		{
			name:  "english sentence",
			input: "It rained.\nThen it stopped!",
			want:  "It rained.\n\nThen it stopped!",
		},
	}

	f := New(testRules())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.RestoreParagraphs(markdown.Parse(tt.input)).String()
			if got != tt.want {
				t.Errorf("RestoreParagraphs() = %q, want %q", got, tt.want)
			}

			again := f.RestoreParagraphs(markdown.Parse(got)).String()
			if again != got {
				t.Errorf("RestoreParagraphs() not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestAlignTables(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{
			name:  "basic",
			input: []string{"| Header 1 | Header 2 |", "| --- | --- |", "| val 1 | val 2 |"},
			want:  []string{"| Header 1 | Header 2 |", "| -------- | -------- |", "| val 1    | val 2    |"},
		},
		{
			name:  "cjk width",
			input: []string{"| 名称 | v |", "|---|:-:|", "| 院子 | 1 |"},
			want:  []string{"| 名称 | v   |", "| ---- | :-: |", "| 院子 | 1   |"},
		},
		{
			name:  "no separator left alone",
			input: []string{"| a | b |", "| c | d |"},
			want:  []string{"| a | b |", "| c | d |"},
		},
		{
			name:  "single row left alone",
			input: []string{"text", "|x|", "more"},
			want:  []string{"text", "|x|", "more"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AlignTables(markdown.Document(tt.input))
			if !slices.Equal(got, tt.want) {
				t.Errorf("AlignTables() = %q, want %q", got, tt.want)
			}

			if again := AlignTables(got); !slices.Equal(again, got) {
				t.Errorf("AlignTables() not idempotent: %q", again)
			}
		})
	}
}
