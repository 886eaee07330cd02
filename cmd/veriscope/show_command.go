package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/scoring"
)

func parseJobID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", arg)
	}
	return id, nil
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show details for a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}

				results, err := jobs.DecodeResults(job.ResultsJSON)
				if err != nil {
					return err
				}
				opts, err := job.Options()
				if err != nil {
					return err
				}

				if jsonOut {
					return writeJSON(cmd, map[string]any{
						"job":     jobRowsJSON([]*jobs.Job{job})[0],
						"options": opts,
						"results": results,
					})
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader(fmt.Sprintf("Job %d", job.ID), colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Status", statusKindForJob(job), humanizeStatus(job.Status), colorize))
				fmt.Fprintln(out, renderStatusLine("Stage", statusInfo, humanizeStatus(job.Stage), colorize))
				fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%3.0f%% %s", job.Progress*100, job.ProgressMessage), colorize))
				fmt.Fprintln(out, renderStatusLine("Media", statusInfo, job.MediaID, colorize))
				fmt.Fprintln(out, renderStatusLine("Created", statusInfo, job.CreatedAt.Local().Format(time.DateTime), colorize))
				if job.ErrorMessage != "" {
					fmt.Fprintln(out, renderStatusLine("Error", statusError, job.ErrorMessage, colorize))
				}
				if job.Label != "" {
					fmt.Fprintln(out, renderStatusLine("Verdict", statusInfo,
						fmt.Sprintf("%s (score %s)", humanizeLabel(job.Label), formatScore(job.OverallScore)), colorize))
				}

				fmt.Fprintln(out, renderStatusLine("Passes", statusInfo,
					fmt.Sprintf("video=%s audio=%s lipsync=%s retain=%s",
						yesNo(opts.Video), yesNo(opts.Audio), yesNo(opts.Lipsync), yesNo(opts.RetainArtifacts)), colorize))

				if rows := modalityRows(results); len(rows) > 0 {
					fmt.Fprintln(out)
					fmt.Fprintln(out, renderTable(
						[]string{"Modality", "Score", "Confidence", "Label", "Flagged", "Model"},
						rows,
						[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft},
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of formatted output")
	return cmd
}

func statusKindForJob(job *jobs.Job) statusKind {
	switch job.Status {
	case jobs.StatusDone:
		return statusOK
	case jobs.StatusFailed:
		return statusError
	case jobs.StatusPending:
		return statusInfo
	default:
		return statusWarn
	}
}

func modalityRows(results jobs.Results) [][]string {
	var rows [][]string
	for _, modality := range scoring.Modalities() {
		outcome := results.Modality(modality)
		if outcome == nil {
			continue
		}
		if outcome.Skipped {
			rows = append(rows, []string{
				string(modality), "-", "-", "Skipped", "-", outcome.SkipReason,
			})
			continue
		}
		rows = append(rows, []string{
			string(modality),
			fmt.Sprintf("%.2f", outcome.Score),
			fmt.Sprintf("%.2f", outcome.Confidence),
			humanizeLabel(outcome.Label),
			fmt.Sprintf("%d/%d", outcome.FlaggedCount, outcome.UnitCount),
			outcome.ModelName,
		})
	}
	if results.Fusion != nil {
		rows = append(rows, []string{
			"fused",
			fmt.Sprintf("%.2f", results.Fusion.Score),
			fmt.Sprintf("%.2f", results.Fusion.Confidence),
			humanizeLabel(results.Fusion.Label),
			"-",
			fmt.Sprintf("agreement %.2f", results.Fusion.Agreement),
		})
	}
	return rows
}
