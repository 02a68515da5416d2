package align

import (
	"errors"
	"reflect"
	"testing"

	"blogmigrate/internal/markdown"
	"blogmigrate/internal/models"
)

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Keywords = []string{"摄", "照", "photo", "©", "来源", "via"}
	cfg.PromoDenylist = []string{"感谢关注", "往期精彩"}
	cfg.TrailingMarkers = []string{"* * *", "感谢关注"}

	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return p
}

func media(urls ...string) []models.MediaItem {
	out := make([]models.MediaItem, len(urls))
	for i, u := range urls {
		out[i] = models.MediaItem{URL: u, OrdinalIndex: i}
	}

	return out
}

// checkProperties asserts the invariants every output must satisfy.
func checkProperties(t *testing.T, doc markdown.Document) {
	t.Helper()

	seen := map[string]bool{}
	blanks := 0

	for i, line := range doc {
		if ref, ok := markdown.ParseMediaRef(line); ok {
			if seen[ref.URL] {
				t.Errorf("line %d: media %s referenced twice", i, ref.URL)
			}

			seen[ref.URL] = true
		}

		if markdown.IsBlank(line) {
			blanks++
			if blanks > 2 {
				t.Errorf("line %d: more than two consecutive blank lines", i)
			}
		} else {
			blanks = 0
		}
	}
}

func TestAlignAndReflow_ScenarioA(t *testing.T) {
	p := newTestPipeline(t)
	original := markdown.Parse("我们搬进来是在去年春天。\n（春天的院子|张三 摄）\n院子里种满了花。")
	target := markdown.Parse("我们搬进来是在去年春天。\n\n院子里种满了花。")

	res := p.AlignAndReflow(original, target, media("https://x.test/a.jpg"), nil)

	want := markdown.Document{
		"我们搬进来是在去年春天。",
		"",
		"![春天的院子|张三 摄](https://x.test/a.jpg)",
		"",
		"（春天的院子|张三 摄）",
		"",
		"院子里种满了花。",
	}
	if !reflect.DeepEqual(res.Document, want) {
		t.Fatalf("AlignAndReflow() =\n%q\nwant\n%q", res.Document, want)
	}

	if res.Summary.Status != models.StatusAligned || res.Summary.Matched != 1 {
		t.Errorf("Summary = %+v", res.Summary)
	}

	checkProperties(t, res.Document)
}

func TestAlignAndReflow_ScenarioB_InsufficientMedia(t *testing.T) {
	p := newTestPipeline(t)
	original := markdown.Parse("第一段很长的文字内容。\n（甲 摄）\n第二段也很长的文字内容。\n（乙 摄）\n第三段同样很长的文字。")
	target := markdown.Parse("第一段很长的文字内容。\n\n第二段也很长的文字内容。\n\n第三段同样很长的文字。")

	res := p.AlignAndReflow(original, target, media("https://x.test/0.jpg"), nil)

	want := markdown.Document{
		"第一段很长的文字内容。",
		"",
		"![甲 摄](https://x.test/0.jpg)",
		"",
		"（甲 摄）",
		"",
		"第二段也很长的文字内容。",
		"",
		"第三段同样很长的文字。",
	}
	if !reflect.DeepEqual(res.Document, want) {
		t.Fatalf("AlignAndReflow() =\n%q\nwant\n%q", res.Document, want)
	}

	unmatched := res.Summary.Unmatched()
	if len(unmatched) != 1 || unmatched[0].Caption.NormalizedText != "乙 摄" {
		t.Fatalf("Unmatched() = %+v", unmatched)
	}

	if !errors.Is(OutcomeError(unmatched[0].Outcome), ErrInsufficientMedia) {
		t.Errorf("outcome = %s, want insufficient_media", unmatched[0].Outcome)
	}

	checkProperties(t, res.Document)
}

func TestAlignAndReflow_ScenarioC_RepeatedCaption(t *testing.T) {
	p := newTestPipeline(t)

	got, stats := p.Dedupe(markdown.Document{"（张三 摄）", "（张三 摄）", "（张三 摄）"})
	if want := (markdown.Document{"（张三 摄）"}); !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe() = %q, want %q", got, want)
	}

	if stats.CaptionRemoved != 2 {
		t.Errorf("CaptionRemoved = %d, want 2", stats.CaptionRemoved)
	}
}

func TestAlignAndReflow_ScenarioD_NoPosition(t *testing.T) {
	p := newTestPipeline(t)
	original := markdown.Parse("这段话在目标里不存在啊啊。\n（丙 摄）\n这一段也被编辑删掉了。")
	target := markdown.Parse("完全不同的内容。")

	res := p.AlignAndReflow(original, target, media("https://x.test/0.jpg"), nil)

	if got := res.Summary.Results[0].Outcome; got != models.OutcomeNoPositionFound {
		t.Fatalf("outcome = %s, want no_position_found", got)
	}

	want := markdown.Document{"完全不同的内容。", "", "![图片](https://x.test/0.jpg)", ""}
	if !reflect.DeepEqual(res.Document, want) {
		t.Errorf("AlignAndReflow() = %q, want %q", res.Document, want)
	}

	if res.Summary.Matched != 0 || res.Summary.MediaAppended != 1 {
		t.Errorf("Summary = %+v", res.Summary)
	}
}

func TestAlignAndReflow_NoCaptions(t *testing.T) {
	p := newTestPipeline(t)
	target := markdown.Parse("正文。\n\n\n\n更多正文。")

	res := p.AlignAndReflow(markdown.Parse("没有任何说明。"), target, media("https://x.test/0.jpg"), nil)

	if !errors.Is(res.Err(), ErrNoCaptionsFound) {
		t.Errorf("Err() = %v, want ErrNoCaptionsFound", res.Err())
	}

	if !reflect.DeepEqual(res.Document, target) {
		t.Errorf("document changed: %q", res.Document)
	}
}

func TestAlignAndReflow_NoMediaKeepsTarget(t *testing.T) {
	p := newTestPipeline(t)
	original := markdown.Parse("我们搬进来是在去年春天。\n（春天的院子|张三 摄）\n院子里种满了花。")
	target := markdown.Parse("我们搬进来是在去年春天。\n\n![春天的院子](https://x.test/a.jpg)\n\n（春天的院子|张三 摄）\n\n院子里种满了花。")

	res := p.AlignAndReflow(original, target, nil, nil)

	if !reflect.DeepEqual(res.Document, target) {
		t.Fatalf("AlignAndReflow() =\n%q\nwant target unchanged", res.Document)
	}

	if res.Summary.Status != models.StatusNoMediaFound {
		t.Errorf("Status = %s, want %s", res.Summary.Status, models.StatusNoMediaFound)
	}

	if !errors.Is(res.Err(), ErrNoMediaFound) {
		t.Errorf("Err() = %v, want ErrNoMediaFound", res.Err())
	}

	if got := len(res.Summary.Unmatched()); got != 1 {
		t.Errorf("Unmatched() = %d captions, want 1", got)
	}
}

func TestAlignAndReflow_Idempotent(t *testing.T) {
	p := newTestPipeline(t)
	original := markdown.Parse("开头一句话写在这里。\n（甲 摄）\n中间一句话写在这里。\n_（远方的山）_\n结尾一句话写在这里。\n（丙 摄）\n被删掉的段落啊啊啊。")
	target := markdown.Parse("\n开头一句话写在这里。\n中间一句话写在这里。\n\n\n\n结尾一句话写在这里。\n![旧图](https://x.test/old.jpg)\n（旧图 摄）\n* * *\n感谢关注")
	items := media("https://x.test/0.jpg", "https://x.test/1.jpg", "https://x.test/2.jpg", "https://x.test/3.jpg")

	once := p.AlignAndReflow(original, target, items, nil)
	twice := p.AlignAndReflow(original, once.Document, items, nil)

	if !reflect.DeepEqual(once.Document, twice.Document) {
		t.Errorf("AlignAndReflow() not idempotent:\n%q\n%q", once.Document, twice.Document)
	}

	if twice.Summary.Status != models.StatusUnchanged {
		t.Errorf("second run status = %s, want unchanged", twice.Summary.Status)
	}

	checkProperties(t, once.Document)

	captionLines := 0

	for _, line := range once.Document {
		if markdown.IsBracketedLine(line) {
			captionLines++
		}
	}

	if captionLines > len(p.Locate(original)) {
		t.Errorf("output has %d caption lines, original has %d", captionLines, len(p.Locate(original)))
	}
}

func TestAlignAndReflow_Override(t *testing.T) {
	p := newTestPipeline(t)
	original := markdown.Parse("第一段很长的文字内容。\n（甲 摄）\n第二段也很长的文字内容。")
	target := markdown.Parse("第一段很长的文字内容。\n\n第二段也很长的文字内容。\n\n第三段同样很长的文字。")

	res := p.AlignAndReflow(original, target, media("https://x.test/0.jpg"), Overrides{"甲 摄": 4})

	if got := res.Summary.Results[0].Position; got != 4 {
		t.Fatalf("position = %d, want 4", got)
	}

	if res.Document[6] != "（甲 摄）" || res.Document[8] != "第三段同样很长的文字。" {
		t.Errorf("AlignAndReflow() = %q", res.Document)
	}
}
