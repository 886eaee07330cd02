package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/services"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop <job-id>",
		Short: "Stop an in-flight job",
		Long: "Marks the job failed with a stop reason. A worker currently holding the job " +
			"observes the change at its next stage boundary and abandons the run.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}

			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				job, err := store.MarkFailed(cmd.Context(), id, jobs.UserStopReason)
				if err != nil {
					if errors.Is(err, services.ErrNotFound) {
						return fmt.Errorf("job %d not found", id)
					}
					if errors.Is(err, services.ErrState) {
						return fmt.Errorf("job %d is already finished", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job #%d stopped at stage %s\n", job.ID, humanizeStatus(job.Stage))
				return nil
			})
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Queue fresh jobs for failed runs",
		Long: "Creates a new pending job for the media behind each failed job, reusing the " +
			"original submission options. The failed job keeps its error message. Media that " +
			"already has a live job is skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseJobID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				count, err := store.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if count == 0 {
					fmt.Fprintln(out, "No failed jobs to retry")
					return nil
				}
				fmt.Fprintf(out, "Queued %d retry job(s)\n", count)
				return nil
			})
		},
	}
}
