package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []jobs.Status
			if trimmed := strings.TrimSpace(statusFlag); trimmed != "" {
				for _, part := range strings.Split(trimmed, ",") {
					status, ok := jobs.ParseStatus(part)
					if !ok {
						return fmt.Errorf("unknown status %q", part)
					}
					statuses = append(statuses, status)
				}
			}

			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				list, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, jobRowsJSON(list))
				}

				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No jobs found")
					return nil
				}

				rows := make([][]string, 0, len(list))
				for _, job := range list {
					rows = append(rows, []string{
						fmt.Sprintf("%d", job.ID),
						humanizeStatus(job.Status),
						fmt.Sprintf("%3.0f%%", job.Progress*100),
						humanizeLabel(job.Label),
						formatScore(job.OverallScore),
						job.MediaID,
						job.CreatedAt.Local().Format(time.DateTime),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Status", "Progress", "Label", "Score", "Media", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Filter by status (comma separated)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

type jobRowJSON struct {
	ID       int64    `json:"id"`
	MediaID  string   `json:"mediaId"`
	Status   string   `json:"status"`
	Stage    string   `json:"stage"`
	Progress float64  `json:"progress"`
	Label    string   `json:"label,omitempty"`
	Score    *float64 `json:"score,omitempty"`
	Error    string   `json:"error,omitempty"`
	Created  string   `json:"createdAt"`
	Updated  string   `json:"updatedAt"`
}

func jobRowsJSON(list []*jobs.Job) []jobRowJSON {
	rows := make([]jobRowJSON, 0, len(list))
	for _, job := range list {
		rows = append(rows, jobRowJSON{
			ID:       job.ID,
			MediaID:  job.MediaID,
			Status:   string(job.Status),
			Stage:    string(job.Stage),
			Progress: job.Progress,
			Label:    string(job.Label),
			Score:    job.OverallScore,
			Error:    job.ErrorMessage,
			Created:  job.CreatedAt.UTC().Format(time.RFC3339),
			Updated:  job.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	return rows
}
