package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"veriscope/internal/fusion"
)

func newCalibrateCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "calibrate <samples.json>",
		Short: "Grid-search fusion weights against a labeled sample set",
		Long: "Reads a JSON array of labeled samples (videoScore, audioScore, " +
			"lipsyncScore, fake) and reports the base weight triple with the best " +
			"classification accuracy at the 0.5 decision boundary.",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read samples: %w", err)
			}
			var samples []fusion.LabeledSample
			if err := json.Unmarshal(raw, &samples); err != nil {
				return fmt.Errorf("parse samples: %w", err)
			}

			weights, accuracy, err := fusion.Calibrate(samples)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"weights":  weights,
					"accuracy": accuracy,
					"samples":  len(samples),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Video", "Audio", "Lipsync", "Accuracy", "Samples"},
				[][]string{{
					fmt.Sprintf("%.2f", weights.Video),
					fmt.Sprintf("%.2f", weights.Audio),
					fmt.Sprintf("%.2f", weights.Lipsync),
					fmt.Sprintf("%.1f%%", accuracy*100),
					fmt.Sprintf("%d", len(samples)),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			fmt.Fprintln(out, "Apply the weights under [fusion] in the configuration file.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}
