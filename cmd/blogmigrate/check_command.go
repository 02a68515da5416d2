package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"blogmigrate/internal/batch"
	"blogmigrate/internal/markdown"
	"blogmigrate/internal/validator"
	"blogmigrate/pkg/frontmatter"
)

// errCheckFailed is returned when at least one post has errors.
var errCheckFailed = errors.New("check failed")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report layout problems in posts",
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

			v := validator.New(cfg.Rules(), cfg.Reflow.MaxBlankRun)
			out := cmd.OutOrStdout()
			invalid := 0

			for _, post := range posts {
				content, err := os.ReadFile(post)
				if err != nil {
					return err
				}

				_, body := frontmatter.Split(string(content))
				result := v.Validate(markdown.Parse(body))

				if !result.IsValid {
					invalid++
				}

				if result.IsValid && len(result.Warnings) == 0 {
					continue
				}

				fmt.Fprintf(out, "%s: %s\n", filepath.Base(post), result)
				result.Print(out)
			}

			fmt.Fprintf(out, "Checked %d posts, %d with errors\n", len(posts), invalid)

			if invalid > 0 {
				return fmt.Errorf("%w: %d posts", errCheckFailed, invalid)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "Post file or directory (default: posts directory)")

	return cmd
}
