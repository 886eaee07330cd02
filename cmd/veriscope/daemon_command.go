package main

import (
	"github.com/spf13/cobra"

	"veriscope/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var logLevel string

	runCmd := &cobra.Command{
		Use:          "run",
		Short:        "Run the veriscope daemon in the foreground",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: logLevelOrConfig(logLevel, cfg.Logging.Level),
			})
		},
	}
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon lifecycle commands",
	}
	daemonCmd.AddCommand(runCmd)
	return daemonCmd
}

func logLevelOrConfig(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}
