package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/droverhq/drover/internal/checkpoint"
	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/projectconfig"
	"github.com/spf13/cobra"
)

func newCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect and manage run checkpoints",
	}

	cmd.AddCommand(newCheckpointShowCommand())
	cmd.AddCommand(newCheckpointClearCommand())

	return cmd
}

func newCheckpointShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <spec | checkpoint.json>",
		Short: "Show a checkpoint's progress",
		Long: `Show what a checkpoint contains: run id, progress counts and when it
was last written. Accepts a spec (the checkpoint path is derived the
same way run derives it) or a checkpoint file directly; arguments
ending in .json are treated as checkpoint files.`,
		Args: cobra.ExactArgs(1),
		RunE: runCheckpointShow,
	}
}

func runCheckpointShow(cmd *cobra.Command, args []string) error {
	path, err := resolveCheckpointArg(args[0])
	if err != nil {
		return err
	}

	store := checkpoint.NewStore(path)
	cp, err := store.Load()
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint at %s", path)
	}

	completed, failed := cp.Counts()
	pending := cp.TotalRecords - completed - failed

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Checkpoint: %s\n\n", store.Path())
	fmt.Fprintf(w, "Run ID:    %s\n", cp.RunID)
	if cp.SpecName != "" {
		fmt.Fprintf(w, "Spec:      %s\n", cp.SpecName)
	}
	fmt.Fprintf(w, "Started:   %s\n", cp.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Updated:   %s\n", cp.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Progress:  %d/%d completed, %d failed, %d pending\n",
		completed, cp.TotalRecords, failed, pending)
	return nil
}

func newCheckpointClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <spec | checkpoint.json>",
		Short: "Delete a run's checkpoint",
		Long: `Delete a checkpoint so the next run starts from scratch. Accepts a
spec or a checkpoint file, like checkpoint show.`,
		Args: cobra.ExactArgs(1),
		RunE: runCheckpointClear,
	}
}

func runCheckpointClear(cmd *cobra.Command, args []string) error {
	path, err := resolveCheckpointArg(args[0])
	if err != nil {
		return err
	}

	store := checkpoint.NewStore(path)
	if !store.Exists() {
		fmt.Fprintf(cmd.OutOrStdout(), "No checkpoint at %s\n", store.Path())
		return nil
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Checkpoint cleared: %s\n", store.Path())
	return nil
}

// resolveCheckpointArg maps a CLI argument to a checkpoint path. Arguments
// ending in .json are checkpoint files; anything else is a spec whose
// checkpoint path is derived the same way run derives it.
func resolveCheckpointArg(arg string) (string, error) {
	if strings.HasSuffix(arg, ".json") {
		return arg, nil
	}

	pcfg, err := projectconfig.Load(".")
	if err != nil {
		return "", err
	}
	specPath := pcfg.ResolveSpecPath(arg)

	spec, err := models.LoadRunSpec(specPath)
	if err != nil {
		return "", fmt.Errorf("failed to load spec: %w", err)
	}

	outputOverride := ""
	if spec.Config.OutputPath == "" && pcfg.Paths.Results != "" {
		outputOverride = filepath.Join(pcfg.Paths.Results, spec.Name+".json")
	}
	cfg := config.NewRunConfig(spec,
		config.WithSpecDir(absSpecDir(specPath)),
		config.WithOutputPath(outputOverride),
	)
	if cfg.CheckpointPath() == "" {
		return "", fmt.Errorf("spec %s has no checkpoint path", specPath)
	}
	return cfg.CheckpointPath(), nil
}
