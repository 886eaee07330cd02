package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
)

func newReportCommand(ctx *commandContext) *cobra.Command {
	var pathOnly bool

	cmd := &cobra.Command{
		Use:   "report <job-id>",
		Short: "Print the analysis report for a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				rpt, err := store.GetReportByJob(cmd.Context(), id)
				if err != nil {
					return err
				}
				if rpt == nil {
					return fmt.Errorf("no report recorded for job %d", id)
				}

				out := cmd.OutOrStdout()
				if pathOnly {
					fmt.Fprintln(out, rpt.ArtifactPath)
					return nil
				}

				var summary any
				if err := json.Unmarshal([]byte(rpt.SummaryJSON), &summary); err != nil {
					return fmt.Errorf("decode report summary: %w", err)
				}
				return writeJSON(cmd, summary)
			})
		},
	}

	cmd.Flags().BoolVar(&pathOnly, "path", false, "Print only the report artifact path")
	return cmd
}
