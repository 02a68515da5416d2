// Package batch drives the alignment pipeline over a directory of posts.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"blogmigrate/internal/align"
	"blogmigrate/internal/config"
	"blogmigrate/internal/crawler"
	"blogmigrate/internal/extractor"
	"blogmigrate/internal/formatter"
	"blogmigrate/internal/ledger"
	"blogmigrate/internal/logger"
	"blogmigrate/internal/markdown"
	"blogmigrate/internal/models"
	"blogmigrate/pkg/frontmatter"
	"blogmigrate/pkg/utils"
)

// LockName is the lock file created in each directory a run writes to.
const LockName = ".blogmigrate.lock"

const previewWidth = 40

var (
	ErrLocked           = errors.New("another run holds the posts directory lock")
	ErrOriginalNotFound = errors.New("original export not found")
	ErrNoPosts          = errors.New("no markdown posts found")
	ErrNoSource         = errors.New("page source is required")
)

// Source resolves post titles to pages. *crawler.Client implements it.
type Source interface {
	SourceURL(title string) (string, error)
	Get(ctx context.Context, url string) (*crawler.Page, error)
}

// Report is the outcome of one run.
type Report struct {
	RunID     string
	Summaries []models.Summary
	Written   int
	Failed    int
	Duration  time.Duration
}

// Runner aligns posts one after another.
type Runner struct {
	cfg       *config.Config
	log       *logger.Logger
	pipeline  *align.Pipeline
	source    Source
	extractor *extractor.Extractor
	formatter *formatter.Formatter
	ledger    *ledger.Ledger
	originals []string
}

// New creates a runner. lg may be nil to skip recording.
func New(cfg *config.Config, log *logger.Logger, source Source, lg *ledger.Ledger) (*Runner, error) {
	if source == nil {
		return nil, ErrNoSource
	}

	pipeline, err := align.New(cfg.Pipeline())
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		log:       log,
		pipeline:  pipeline,
		source:    source,
		extractor: extractor.New(cfg.ContentOptions(), cfg.MediaRules()),
		formatter: formatter.New(cfg.Rules()),
		ledger:    lg,
	}, nil
}

// ListPosts returns the markdown files at path, which may be a single file or
// a directory.
func ListPosts(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return []string{path}, nil
	}

	files, err := filepath.Glob(filepath.Join(path, "*.md"))
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoPosts, path)
	}

	slices.Sort(files)

	return files, nil
}

// Lock takes the exclusive run lock on dir. The returned function releases it.
func Lock(dir string) (func(), error) {
	fl := flock.New(filepath.Join(dir, LockName))

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, fl.Path())
	}

	return func() { _ = fl.Unlock() }, nil
}

// LockDir returns the directory whose lock guards writes to path.
func LockDir(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}

	return filepath.Dir(path)
}

// lockPosts locks every directory holding one of posts, in sorted order.
func lockPosts(posts []string) (func(), error) {
	dirs := make([]string, 0, 1)
	for _, p := range posts {
		dirs = append(dirs, LockDir(p))
	}

	slices.Sort(dirs)
	dirs = slices.Compact(dirs)

	unlocks := make([]func(), 0, len(dirs))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, dir := range dirs {
		unlock, err := Lock(dir)
		if err != nil {
			release()

			return nil, err
		}

		unlocks = append(unlocks, unlock)
	}

	return release, nil
}

// Run aligns every post in order. A failed post is recorded and skipped
// unless features.strict is set. Cancellation is checked between posts.
func (r *Runner) Run(ctx context.Context, posts []string) (*Report, error) {
	unlock, err := lockPosts(posts)
	if err != nil {
		return nil, err
	}
	defer unlock()

	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	log := r.log.With("run", report.RunID)

	if r.ledger != nil {
		if err := r.ledger.StartRun(ctx, report.RunID, r.cfg.Paths.PostsDir, r.cfg.Features.Write); err != nil {
			return nil, err
		}
	}

	log.Info(fmt.Sprintf("🚀 Aligning %d posts", len(posts)), "write", r.cfg.Features.Write)

	var runErr error

	for i, post := range posts {
		if err := ctx.Err(); err != nil {
			runErr = err

			break
		}

		summary, fetched, err := r.Process(ctx, post)
		if err != nil {
			summary.Status = models.StatusFailed
			summary.Error = err.Error()
			report.Failed++

			log.Error("❌ Post failed", "doc", summary.Document, "error", err)
		}

		if summary.Status == models.StatusAligned && r.cfg.Features.Write {
			report.Written++
		}

		report.Summaries = append(report.Summaries, summary)

		if r.ledger != nil {
			if lerr := r.ledger.RecordDocument(ctx, report.RunID, summary); lerr != nil {
				log.Warn("Failed to record document", "doc", summary.Document, "error", lerr)
			}
		}

		if err != nil && r.cfg.Features.Strict {
			runErr = err

			break
		}

		if fetched && i < len(posts)-1 {
			if err := sleep(ctx, r.cfg.Fetch.GetDelay()); err != nil {
				runErr = err

				break
			}
		}
	}

	if r.ledger != nil {
		if err := r.ledger.FinishRun(context.WithoutCancel(ctx), report.RunID); err != nil {
			log.Warn("Failed to finish run", "error", err)
		}
	}

	report.Duration = time.Since(start)
	log.Info(fmt.Sprintf("✅ Run finished in %v", report.Duration.Round(time.Millisecond)),
		"posts", len(report.Summaries), "written", report.Written, "failed", report.Failed)

	return report, runErr
}

// Process aligns one post. fetched reports whether a network request was
// made for the source page, successful or not.
func (r *Runner) Process(ctx context.Context, path string) (models.Summary, bool, error) {
	name := filepath.Base(path)
	summary := models.Summary{Document: name}
	log := r.log.With("doc", name)

	content, err := os.ReadFile(path)
	if err != nil {
		return summary, false, fmt.Errorf("failed to read post: %w", err)
	}

	fm, body := frontmatter.Split(string(content))

	title := strings.TrimSuffix(name, filepath.Ext(name))
	if fm != nil && fm.Title != "" {
		title = fm.Title
	}

	original, err := r.loadOriginal(title)
	if err != nil {
		return summary, false, err
	}

	url, err := r.source.SourceURL(title)
	if err != nil {
		return summary, false, err
	}

	page, err := r.source.Get(ctx, url)
	if err != nil {
		if page == nil {
			return summary, true, err
		}

		log.Warn("Page fetched but not cached", "error", err)
	}

	fetched := !page.FromCache
	log.Debug("Source page", "url", page.URL, "size", humanize.Bytes(uint64(len(page.HTML))),
		"cached", page.FromCache, "attempts", page.Attempts)

	ext, err := r.extractor.Extract(page.HTML, page.URL)
	if err != nil {
		return summary, fetched, err
	}

	for _, rej := range ext.Rejected {
		log.Debug("Image rejected", "src", rej.Image.Src, "reason", rej.Reason)
	}

	target := markdown.Parse(body)
	if r.cfg.Reflow.RestoreParagraphs {
		target = r.formatter.Format(target)
	}

	res := r.pipeline.AlignAndReflow(original, target, ext.Media, r.cfg.OverridesFor(name))
	summary = res.Summary
	summary.Document = name

	if err := res.Err(); err != nil {
		log.Warn("Nothing to align, post left as is", "status", summary.Status, "reason", err)

		return summary, fetched, nil
	}

	for _, u := range summary.Unmatched() {
		log.Warn("Caption not aligned", "caption", utils.Preview(u.Caption.NormalizedText, previewWidth),
			"outcome", u.Outcome.String())
	}

	log.Info("Aligned", "status", summary.Status, "captions", summary.CaptionsFound, "media", summary.MediaFound,
		"inserted", summary.MediaInserted, "appended", summary.MediaAppended)

	out := res.Document.String()
	if frontmatter.Hash(out) == frontmatter.Hash(body) {
		if summary.Status == models.StatusAligned {
			summary.Status = models.StatusUnchanged
		}

		return summary, fetched, nil
	}

	if summary.Status == models.StatusUnchanged {
		summary.Status = models.StatusAligned
	}

	if !r.cfg.Features.Write {
		return summary, fetched, nil
	}

	if err := WriteFile(path, frontmatter.Join(fm, out)); err != nil {
		return summary, fetched, err
	}

	log.Info("💾 Post updated", "size", humanize.Bytes(uint64(len(out))))

	return summary, fetched, nil
}

// WriteFile replaces path through a temporary file in the same directory.
func WriteFile(path, content string) error {
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}

// loadOriginal finds the original export whose file name matches title.
// Exports suffixed "-1" are duplicates and ignored.
func (r *Runner) loadOriginal(title string) (markdown.Document, error) {
	if r.originals == nil {
		files, err := filepath.Glob(filepath.Join(r.cfg.Paths.OriginalsDir, "*.md"))
		if err != nil {
			return nil, err
		}

		slices.Sort(files)
		r.originals = files
	}

	for _, f := range r.originals {
		stem := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		if strings.HasSuffix(stem, "-1") || !utils.TitlesMatch(title, stem) {
			continue
		}

		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read original: %w", err)
		}

		_, body := frontmatter.Split(string(data))

		return markdown.Parse(body), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrOriginalNotFound, title)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
