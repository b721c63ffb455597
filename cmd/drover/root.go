package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var debugEnabled bool

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "drover",
		Short: "Drover - checkpointed batch runs of LLM prompts",
		Long: `Drover renders a prompt chain for every record in a dataset, sends the
result to an LLM provider, and persists progress to a checkpoint so an
interrupted run picks up where it stopped instead of starting over.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debugEnabled {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debugEnabled, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newResumeCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newEstimateCommand())
	rootCmd.AddCommand(newCheckpointCommand())
	rootCmd.AddCommand(newInitCommand())

	return rootCmd
}

func execute() error {
	return newRootCommand().Execute()
}
