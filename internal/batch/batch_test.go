package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blogmigrate/internal/config"
	"blogmigrate/internal/crawler"
	"blogmigrate/internal/ledger"
	"blogmigrate/internal/logger"
	"blogmigrate/internal/models"
)

const sourceHTML = `<html><head><title>春天的院子</title></head><body>
<div id="js_content">
<p>我们搬进来是在去年春天。</p>
<img data-src="https://mmbiz.qpic.cn/a.jpg">
<p>院子里种满了花。</p>
</div></body></html>`

type fakeSource struct {
	pages    map[string]string
	gets     int
	uncached bool
	err      error
	calls    []time.Time
}

func (f *fakeSource) SourceURL(title string) (string, error) {
	if _, ok := f.pages[title]; !ok {
		return "", crawler.ErrArticleNotFound
	}

	return "https://mp.weixin.qq.com/s/" + title, nil
}

func (f *fakeSource) Get(_ context.Context, url string) (*crawler.Page, error) {
	f.gets++
	f.calls = append(f.calls, time.Now())

	if f.err != nil {
		return nil, f.err
	}

	title := strings.TrimPrefix(url, "https://mp.weixin.qq.com/s/")

	return &crawler.Page{URL: url, HTML: f.pages[title], FromCache: !f.uncached}, nil
}

type fixture struct {
	cfg    *config.Config
	posts  string
	source *fakeSource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.PostsDir = filepath.Join(root, "posts")
	cfg.Paths.OriginalsDir = filepath.Join(root, "originals")
	cfg.Fetch.DelayMs = 0
	cfg.Features.Write = true

	require.NoError(t, os.MkdirAll(cfg.Paths.PostsDir, 0755))
	require.NoError(t, os.MkdirAll(cfg.Paths.OriginalsDir, 0755))

	writeFile(t, filepath.Join(cfg.Paths.OriginalsDir, "春天的院子.md"),
		"我们搬进来是在去年春天。\n（春天的院子|张三 摄）\n院子里种满了花。\n")
	writeFile(t, filepath.Join(cfg.Paths.OriginalsDir, "春天的院子-1.md"), "stale duplicate export\n")

	return &fixture{
		cfg:    cfg,
		posts:  cfg.Paths.PostsDir,
		source: &fakeSource{pages: map[string]string{"春天的院子": sourceHTML}},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) runner(t *testing.T, lg *ledger.Ledger) *Runner {
	t.Helper()

	r, err := New(f.cfg, logger.Discard(), f.source, lg)
	require.NoError(t, err)

	return r
}

func TestRunner_AlignsAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	post := filepath.Join(f.posts, "spring.md")
	writeFile(t, post, "---\ntitle: 春天的院子\n---\n我们搬进来是在去年春天。\n\n院子里种满了花。\n")

	report, err := f.runner(t, nil).Run(context.Background(), []string{post})
	require.NoError(t, err)
	require.Len(t, report.Summaries, 1)
	assert.Equal(t, models.StatusAligned, report.Summaries[0].Status)
	assert.Equal(t, 1, report.Written)
	assert.NotEmpty(t, report.RunID)

	data, err := os.ReadFile(post)
	require.NoError(t, err)

	content := string(data)
	assert.True(t, strings.HasPrefix(content, "---\ntitle: 春天的院子\n---\n"))
	assert.Contains(t, content, "![春天的院子|张三 摄](https://mmbiz.qpic.cn/a.jpg)")
	assert.Contains(t, content, "（春天的院子|张三 摄）")

	report, err = f.runner(t, nil).Run(context.Background(), []string{post})
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnchanged, report.Summaries[0].Status)

	again, err := os.ReadFile(post)
	require.NoError(t, err)
	assert.Equal(t, content, string(again))
}

func TestRunner_DryRunDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	f.cfg.Features.Write = false

	post := filepath.Join(f.posts, "spring.md")
	body := "---\ntitle: 春天的院子\n---\n我们搬进来是在去年春天。\n\n院子里种满了花。\n"
	writeFile(t, post, body)

	report, err := f.runner(t, nil).Run(context.Background(), []string{post})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAligned, report.Summaries[0].Status)
	assert.Zero(t, report.Written)

	data, err := os.ReadFile(post)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestRunner_NoMediaLeavesPostAlone(t *testing.T) {
	f := newFixture(t)
	f.source.pages["春天的院子"] = `<html><body><div id="js_content"><p>我们搬进来是在去年春天。</p></div></body></html>`

	post := filepath.Join(f.posts, "spring.md")
	body := "---\ntitle: 春天的院子\n---\n我们搬进来是在去年春天。\n\n![春天的院子](https://x.test/a.jpg)\n\n" +
		"（春天的院子|张三 摄）\n\n院子里种满了花。\n"
	writeFile(t, post, body)

	report, err := f.runner(t, nil).Run(context.Background(), []string{post})
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoMediaFound, report.Summaries[0].Status)
	assert.Zero(t, report.Written)

	data, err := os.ReadFile(post)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))
}

func TestRunner_ContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	missing := filepath.Join(f.posts, "a-missing.md")
	post := filepath.Join(f.posts, "b-spring.md")
	writeFile(t, missing, "---\ntitle: 不存在的文章\n---\n正文\n")
	writeFile(t, post, "---\ntitle: 春天的院子\n---\n我们搬进来是在去年春天。\n\n院子里种满了花。\n")

	lg, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	defer lg.Close()

	report, err := f.runner(t, lg).Run(context.Background(), []string{missing, post})
	require.NoError(t, err)
	require.Len(t, report.Summaries, 2)
	assert.Equal(t, models.StatusFailed, report.Summaries[0].Status)
	assert.Contains(t, report.Summaries[0].Error, ErrOriginalNotFound.Error())
	assert.Equal(t, models.StatusAligned, report.Summaries[1].Status)
	assert.Equal(t, 1, report.Failed)

	docs, err := lg.Documents(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	run, err := lg.GetRun(context.Background(), report.RunID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Aligned)
}

func TestRunner_StrictStopsOnFailure(t *testing.T) {
	f := newFixture(t)
	f.cfg.Features.Strict = true

	missing := filepath.Join(f.posts, "a-missing.md")
	post := filepath.Join(f.posts, "b-spring.md")
	writeFile(t, missing, "---\ntitle: 不存在的文章\n---\n正文\n")
	writeFile(t, post, "---\ntitle: 春天的院子\n---\n正文\n")

	report, err := f.runner(t, nil).Run(context.Background(), []string{missing, post})
	assert.True(t, errors.Is(err, ErrOriginalNotFound))
	assert.Len(t, report.Summaries, 1)
	assert.Zero(t, f.source.gets)
}

func TestRunner_ThrottlesBetweenFetches(t *testing.T) {
	tests := []struct {
		name     string
		uncached bool
		err      error
		wantGap  bool
	}{
		{name: "network fetch", uncached: true, wantGap: true},
		{name: "failed fetch", uncached: true, err: crawler.ErrTimeout, wantGap: true},
		{name: "cache hit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.cfg.Fetch.DelayMs = 80
			f.source.uncached = tt.uncached
			f.source.err = tt.err

			var posts []string
			for _, name := range []string{"a.md", "b.md"} {
				post := filepath.Join(f.posts, name)
				writeFile(t, post, "---\ntitle: 春天的院子\n---\n我们搬进来是在去年春天。\n\n院子里种满了花。\n")
				posts = append(posts, post)
			}

			_, err := f.runner(t, nil).Run(context.Background(), posts)
			require.NoError(t, err)
			require.Len(t, f.source.calls, 2)

			gap := f.source.calls[1].Sub(f.source.calls[0])
			if tt.wantGap {
				assert.GreaterOrEqual(t, gap, 80*time.Millisecond)
			} else {
				assert.Less(t, gap, 80*time.Millisecond)
			}
		})
	}
}

func TestRunner_Cancelled(t *testing.T) {
	f := newFixture(t)
	post := filepath.Join(f.posts, "spring.md")
	writeFile(t, post, "正文\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.runner(t, nil).Run(ctx, []string{post})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Summaries)
}

func TestLock(t *testing.T) {
	dir := t.TempDir()

	unlock, err := Lock(dir)
	require.NoError(t, err)

	_, err = Lock(dir)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()

	unlock, err = Lock(dir)
	require.NoError(t, err)
	unlock()
}

func TestRunner_LocksThePostsOwnDirectory(t *testing.T) {
	f := newFixture(t)
	elsewhere := t.TempDir()
	post := filepath.Join(elsewhere, "spring.md")
	writeFile(t, post, "---\ntitle: 春天的院子\n---\n我们搬进来是在去年春天。\n\n院子里种满了花。\n")

	unlock, err := Lock(elsewhere)
	require.NoError(t, err)

	_, err = f.runner(t, nil).Run(context.Background(), []string{post})
	assert.ErrorIs(t, err, ErrLocked)
	assert.Zero(t, f.source.gets)

	unlock()

	unlock, err = Lock(f.posts)
	require.NoError(t, err)

	defer unlock()

	report, err := f.runner(t, nil).Run(context.Background(), []string{post})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAligned, report.Summaries[0].Status)
}

func TestLockDir(t *testing.T) {
	dir := t.TempDir()
	post := filepath.Join(dir, "a.md")
	writeFile(t, post, "")

	assert.Equal(t, dir, LockDir(dir))
	assert.Equal(t, dir, LockDir(post))
}

func TestListPosts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), "")
	writeFile(t, filepath.Join(dir, "a.md"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")

	got, err := ListPosts(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.md"), filepath.Join(dir, "b.md")}, got)

	got, err = ListPosts(filepath.Join(dir, "b.md"))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = ListPosts(t.TempDir())
	assert.ErrorIs(t, err, ErrNoPosts)
}
