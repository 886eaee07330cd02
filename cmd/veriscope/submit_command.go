package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/media"
	"veriscope/internal/notifications"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var noVideo bool
	var noAudio bool
	var noLipsync bool
	var retain bool

	cmd := &cobra.Command{
		Use:   "submit <path>",
		Short: "Submit a media file for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := jobs.DefaultOptions()
			opts.Video = !noVideo
			opts.Audio = !noAudio
			opts.Lipsync = !noLipsync
			opts.RetainArtifacts = retain
			if !opts.Video && !opts.Audio {
				return fmt.Errorf("at least one of video or audio analysis must remain enabled")
			}

			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				intake := media.NewIntake(store, cfg, logging.NewNop())
				item, created, err := intake.Ingest(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if !created {
					fmt.Fprintf(out, "Media already registered as %s (%s)\n", item.ID, item.OriginalFilename)
				}

				job, queued, err := store.NewJob(cmd.Context(), item.ID, opts)
				if err != nil {
					return err
				}
				if !queued {
					fmt.Fprintf(out, "Job #%d is already active for this media (status %s)\n", job.ID, humanizeStatus(job.Status))
					return nil
				}
				fmt.Fprintf(out, "Queued job #%d for %s\n", job.ID, filepath.Base(item.OriginalFilename))
				notifications.NewService(cfg).NotifyJobQueued(cmd.Context(), item.OriginalFilename, job.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noVideo, "no-video", false, "Skip video frame analysis")
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "Skip audio analysis")
	cmd.Flags().BoolVar(&noLipsync, "no-lipsync", false, "Skip lip-sync analysis")
	cmd.Flags().BoolVar(&retain, "retain", false, "Retain staging artifacts after the report is written")
	return cmd
}
