package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"blogmigrate/internal/batch"
	"blogmigrate/internal/cache"
	"blogmigrate/internal/config"
	"blogmigrate/internal/crawler"
	"blogmigrate/internal/ledger"
	"blogmigrate/internal/logger"
)

// errFailedPosts is returned when a run finishes with failed posts.
var errFailedPosts = errors.New("some posts failed")

func newAlignCommand(ctx *commandContext) *cobra.Command {
	var (
		post   string
		write  bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "align",
		Short: "Insert source images next to their captions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("write") {
				cfg.Features.Write = write
			}

			if cmd.Flags().Changed("strict") {
				cfg.Features.Strict = strict
			}

			path := cfg.Paths.PostsDir
			if post != "" {
				path = post
			}

			posts, err := batch.ListPosts(path)
			if err != nil {
				return err
			}

			log := ctx.logger()

			source, closeSource, err := newSource(cfg, log)
			if err != nil {
				return err
			}
			defer closeSource()

			lg, err := ledger.Open(cfg.Paths.LedgerPath)
			if err != nil {
				return err
			}
			defer lg.Close()

			runner, err := batch.New(cfg, log, source, lg)
			if err != nil {
				return err
			}

			report, runErr := runner.Run(cmd.Context(), posts)
			if report != nil {
				printRunReport(cmd, report)
			}

			if runErr != nil {
				return runErr
			}

			if report.Failed > 0 {
				return fmt.Errorf("%w: %d of %d", errFailedPosts, report.Failed, len(report.Summaries))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&post, "post", "", "Align a single post instead of the posts directory")
	cmd.Flags().BoolVar(&write, "write", false, "Write aligned posts back to disk")
	cmd.Flags().BoolVar(&strict, "strict", false, "Stop at the first failed post")

	return cmd
}

// newSource wires the fetcher, the optional page cache and the article list.
func newSource(cfg *config.Config, log *logger.Logger) (*crawler.Client, func(), error) {
	index, err := crawler.LoadArticleIndex(cfg.Paths.ArticlesList)
	if err != nil {
		return nil, nil, err
	}

	log.Debug("Article list loaded", "articles", index.Len())

	scraper := crawler.NewScraper(cfg.Fetch)

	if !cfg.Features.EnableCaching {
		return crawler.NewClient(scraper, nil, index), func() {}, nil
	}

	store, err := cache.Open(cfg.Paths.CacheDir, cfg.Fetch.GetCacheTTL(), log)
	if err != nil {
		return nil, nil, err
	}

	if n, err := store.Len(); err == nil {
		log.Debug("Page cache opened", "dir", cfg.Paths.CacheDir, "pages", n)
	}

	closeFn := func() {
		if err := store.Close(); err != nil {
			log.Warn("Failed to close cache", "error", err)
		}
	}

	return crawler.NewClient(scraper, store, index), closeFn, nil
}

func printRunReport(cmd *cobra.Command, report *batch.Report) {
	out := cmd.OutOrStdout()

	rows := make([][]string, 0, len(report.Summaries))
	for _, s := range report.Summaries {
		rows = append(rows, []string{
			s.Document,
			string(s.Status),
			strconv.Itoa(s.CaptionsFound),
			strconv.Itoa(s.MediaFound),
			strconv.Itoa(s.MediaInserted),
			strconv.Itoa(s.MediaAppended),
			strconv.Itoa(len(s.Unmatched())),
		})
	}

	writeTable(out,
		[]string{"Post", "Status", "Captions", "Media", "Inserted", "Appended", "Unmatched"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight})

	fmt.Fprintf(out, "Run %s: %d posts, %d written, %d failed in %v\n",
		report.RunID, len(report.Summaries), report.Written, report.Failed, report.Duration.Round(time.Millisecond))
}
