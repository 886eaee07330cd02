package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"veriscope/internal/config"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/media"
	"veriscope/internal/simulation"
)

func newSimulateCommand(ctx *commandContext) *cobra.Command {
	var noVideo bool
	var noAudio bool
	var noLipsync bool

	cmd := &cobra.Command{
		Use:   "simulate <path>",
		Short: "Fabricate a complete analysis for demos and integration checks",
		Long: "Registers the file and completes a job immediately with deterministic " +
			"fabricated outcomes instead of running the analysis pipeline. Filenames " +
			"containing manipulation keywords land in the fake score band.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := jobs.DefaultOptions()
			opts.Video = !noVideo
			opts.Audio = !noAudio
			opts.Lipsync = !noLipsync

			return ctx.withStore(func(cfg *config.Config, store *jobs.Store) error {
				intake := media.NewIntake(store, cfg, logging.NewNop())
				item, _, err := intake.Ingest(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				runner, err := simulation.NewRunner(cfg, store, logging.NewNop())
				if err != nil {
					return err
				}
				job, err := runner.Run(cmd.Context(), item.ID, opts)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Simulated job #%d for %s\n", job.ID, item.OriginalFilename)
				fmt.Fprintf(out, "Verdict: %s (score %s)\n", humanizeLabel(job.Label), formatScore(job.OverallScore))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&noVideo, "no-video", false, "Skip the fabricated video outcome")
	cmd.Flags().BoolVar(&noAudio, "no-audio", false, "Skip the fabricated audio outcome")
	cmd.Flags().BoolVar(&noLipsync, "no-lipsync", false, "Skip the fabricated lip-sync outcome")
	return cmd
}
