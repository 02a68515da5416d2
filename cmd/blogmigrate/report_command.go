package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"blogmigrate/internal/ledger"
	"blogmigrate/pkg/utils"
)

const captionColumnWidth = 48

func newReportCommand(ctx *commandContext) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the unmatched captions of a recorded run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lg, err := ledger.Open(cfg.Paths.LedgerPath)
			if err != nil {
				return err
			}
			defer lg.Close()

			c := cmd.Context()

			if runID == "" {
				if runID, err = lg.LatestRunID(c); err != nil {
					return err
				}
			}

			run, err := lg.GetRun(c, runID)
			if err != nil {
				return err
			}

			unmatched, err := lg.Unmatched(c, runID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run %s started %s: %d posts, %d aligned, %d failed\n",
				run.ID, run.StartedAt.Local().Format("2006-01-02 15:04"), run.Documents, run.Aligned, run.Failed)

			if len(unmatched) == 0 {
				fmt.Fprintln(out, "No unmatched captions")

				return nil
			}

			rows := make([][]string, 0, len(unmatched))
			for _, u := range unmatched {
				rows = append(rows, []string{
					u.Document,
					strconv.Itoa(u.SourceLine + 1),
					utils.Preview(u.Caption, captionColumnWidth),
					u.Outcome,
				})
			}

			writeTable(out, []string{"Post", "Line", "Caption", "Outcome"}, rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft})

			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id (default: latest run)")

	return cmd
}
