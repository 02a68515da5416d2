package main

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"blogmigrate/internal/align"
	"blogmigrate/internal/batch"
	"blogmigrate/internal/markdown"
	"blogmigrate/pkg/frontmatter"
)

func newDedupeCommand(ctx *commandContext) *cobra.Command {
	var (
		path  string
		write bool
	)

	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Remove repeated media references and captions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if path == "" {
				path = cfg.Paths.PostsDir
			}

			posts, err := batch.ListPosts(path)
			if err != nil {
				return err
			}

			if write {
				unlock, err := batch.Lock(batch.LockDir(path))
				if err != nil {
					return err
				}
				defer unlock()
			}

			pipeline, err := align.New(cfg.Pipeline())
			if err != nil {
				return err
			}

			log := ctx.logger()
			rows := make([][]string, 0, len(posts))

			for _, post := range posts {
				content, err := os.ReadFile(post)
				if err != nil {
					return err
				}

				fm, body := frontmatter.Split(string(content))
				doc, stats := pipeline.Dedupe(markdown.Parse(body))

				changed := doc.String() != body
				if changed && write {
					if err := batch.WriteFile(post, frontmatter.Join(fm, doc.String())); err != nil {
						return err
					}

					log.Info("Deduplicated", "doc", filepath.Base(post),
						"media", stats.MediaRemoved, "captions", stats.CaptionRemoved)
				}

				rows = append(rows, []string{
					filepath.Base(post),
					strconv.Itoa(stats.MediaRemoved),
					strconv.Itoa(stats.CaptionRemoved),
					strconv.FormatBool(changed && write),
				})
			}

			writeTable(cmd.OutOrStdout(),
				[]string{"Post", "Media removed", "Captions removed", "Written"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft})

			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Post file or directory (default: posts directory)")
	cmd.Flags().BoolVar(&write, "write", false, "Write deduplicated posts back to disk")

	return cmd
}
