package main

import (
	"fmt"

	"github.com/droverhq/drover/internal/checkpoint"
	"github.com/droverhq/drover/internal/config"
	"github.com/spf13/cobra"
)

func newResumeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <spec>",
		Short: "Resume an interrupted run from its checkpoint",
		Long: `Resume a run from its checkpoint: records that already have an outcome
are skipped and only the pending remainder is processed. The checkpoint
must match the current spec, dataset and provider configuration.

Records that failed permanently stay failed on resume. Pass
--retry-failed to clear their outcomes and attempt them again.`,
		Args: cobra.ExactArgs(1),
		RunE: resumeCommandE,
	}

	addRunFlags(cmd)
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Re-attempt records that failed permanently")

	return cmd
}

func resumeCommandE(cmd *cobra.Command, args []string) error {
	spec, specPath, err := loadSpecForRun(cmd, args[0])
	if err != nil {
		return err
	}

	cfg := config.NewRunConfig(spec,
		config.WithSpecDir(absSpecDir(specPath)),
		config.WithDataPath(dataPath),
		config.WithCheckpointPath(checkpointPath),
		config.WithOutputPath(outputPath),
	)
	if cfg.CheckpointPath() == "" {
		return fmt.Errorf("no checkpoint path: set run.checkpoint or run.output in the spec, or pass --checkpoint")
	}
	store := checkpoint.NewStore(cfg.CheckpointPath())
	if !store.Exists() {
		return fmt.Errorf("no checkpoint at %s: nothing to resume (use `drover run` to start one)", cfg.CheckpointPath())
	}

	return executeRun(spec, specPath)
}
