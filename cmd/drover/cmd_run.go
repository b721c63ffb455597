package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/pipeline"
	"github.com/droverhq/drover/internal/projectconfig"
	"github.com/droverhq/drover/internal/providers"
	"github.com/droverhq/drover/internal/reporting"
	"github.com/droverhq/drover/internal/spinner"
	"github.com/spf13/cobra"
)

// RecordFailureError signals that the run finished but one or more records
// failed permanently. main exits with ExitRecordsFailed for it.
type RecordFailureError struct {
	Message string
}

func (e *RecordFailureError) Error() string {
	return e.Message
}

// Flags shared between run and resume.
var (
	dataPath       string
	checkpointPath string
	outputPath     string
	verbose        bool
	transcriptDir  string
	parallel       bool
	workers        int
	saveEvery      int
	budget         int
	failFast       bool
	format         string
	showTable      bool
	compressFlag   bool
	modelOverride  string
	providerKind   string
	sampleSize     int
	shuffleOrder   bool
	orderSeed      int64
	delayMs        int

	overwrite   bool // run only
	retryFailed bool // resume only
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <spec>",
		Short: "Run a batch spec against the configured provider",
		Long: `Run a batch spec: every dataset record is rendered through the prompt
chain, sent to the provider, and its outcome recorded in the checkpoint.

If a checkpoint from an earlier invocation exists and matches the current
configuration, the run resumes automatically and records that already
have outcomes are skipped. Use --overwrite to discard it and start fresh.

Bare spec names resolve against the specs directory from .drover.yaml:

  drover run triage            # specs/triage.yaml
  drover run ./jobs/triage.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runCommandE,
	}

	addRunFlags(cmd)
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Discard any existing checkpoint and start from scratch")

	return cmd
}

// addRunFlags binds the flags run and resume have in common.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&dataPath, "data", "", "Dataset file (overrides the spec)")
	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Checkpoint file (overrides the spec)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Results JSON file (overrides the spec; a .gz suffix compresses)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Per-record progress detail")
	cmd.Flags().StringVar(&transcriptDir, "transcript-dir", "", "Directory for per-record transcript files")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Process records concurrently")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent workers (default 4, with --parallel)")
	cmd.Flags().IntVar(&saveEvery, "save-every", 0, "Checkpoint after this many record outcomes (overrides the spec)")
	cmd.Flags().IntVar(&budget, "budget", 0, "Cap on records attempted this invocation (overrides the spec)")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop after the first permanently failed record")
	cmd.Flags().StringVar(&format, "format", "default", "Summary format: default, markdown")
	cmd.Flags().BoolVar(&showTable, "table", false, "Print a per-record results table after the summary")
	cmd.Flags().BoolVar(&compressFlag, "compress", false, "Gzip transcript files")
	cmd.Flags().StringVar(&modelOverride, "model", "", "Model to use (overrides the spec)")
	cmd.Flags().StringVar(&providerKind, "provider", "", "Provider type: openai, copilot, mock (overrides the spec)")
	cmd.Flags().IntVar(&sampleSize, "sample", 0, "Process a seeded random sample of this many records")
	cmd.Flags().BoolVar(&shuffleOrder, "shuffle", false, "Shuffle the processing order (seeded)")
	cmd.Flags().Int64Var(&orderSeed, "seed", 0, "Seed for shuffle and sampling")
	cmd.Flags().IntVar(&delayMs, "delay", 0, "Minimum gap between provider calls in milliseconds")
}

func runCommandE(cmd *cobra.Command, args []string) error {
	spec, specPath, err := loadSpecForRun(cmd, args[0])
	if err != nil {
		return err
	}
	return executeRun(spec, specPath)
}

// loadSpecForRun resolves the spec argument through the project config,
// loads the spec, and layers project defaults and CLI overrides onto it.
func loadSpecForRun(cmd *cobra.Command, arg string) (*models.RunSpec, string, error) {
	if format != "default" && format != "markdown" {
		return nil, "", fmt.Errorf("invalid format %q: expected default or markdown", format)
	}

	pcfg, err := projectconfig.Load(".")
	if err != nil {
		return nil, "", err
	}

	specPath := pcfg.ResolveSpecPath(arg)

	spec, err := models.LoadRunSpec(specPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load spec: %w", err)
	}

	applyProjectDefaults(cmd, spec, pcfg)

	// CLI flags win over both the spec and the project config.
	if providerKind != "" {
		spec.Provider.Kind = providerKind
	}
	if modelOverride != "" {
		spec.Provider.ModelID = modelOverride
	}
	if parallel {
		spec.Config.Concurrent = true
	}
	if workers > 0 {
		spec.Config.Workers = workers
	}
	if saveEvery > 0 {
		spec.Config.SaveEvery = saveEvery
	}
	if budget > 0 {
		spec.Config.Budget = budget
	}
	if failFast {
		spec.Config.StopOnError = true
	}
	if compressFlag {
		spec.Config.Compress = true
	}
	if sampleSize > 0 {
		spec.Dataset.Sample = sampleSize
	}
	if shuffleOrder {
		spec.Dataset.Shuffle = true
	}
	if cmd.Flags().Changed("seed") {
		spec.Dataset.Seed = orderSeed
	}
	if delayMs > 0 {
		spec.Config.DelayMs = delayMs
	}

	// A spec without an output path still gets results persisted, under
	// the project results directory. The stable file name also anchors
	// the derived checkpoint path across invocations.
	if outputPath == "" && spec.Config.OutputPath == "" && pcfg.Paths.Results != "" {
		outputPath = filepath.Join(pcfg.Paths.Results, spec.Name+".json")
	}

	return spec, specPath, nil
}

// applyProjectDefaults fills gaps in the spec from .drover.yaml. Explicit
// spec values and CLI flags both win over these.
func applyProjectDefaults(cmd *cobra.Command, spec *models.RunSpec, pcfg *projectconfig.ProjectConfig) {
	d := pcfg.Defaults

	if !cmd.Flags().Changed("verbose") && d.Verbose != nil {
		verbose = *d.Verbose
	}
	if !cmd.Flags().Changed("parallel") && d.Parallel != nil && *d.Parallel {
		spec.Config.Concurrent = true
	}
	if spec.Config.Workers == 0 && d.Workers > 0 {
		spec.Config.Workers = d.Workers
	}
	if spec.Provider.BaseURL == "" && d.BaseURL != "" {
		spec.Provider.BaseURL = d.BaseURL
	}
	if d.Compress != nil && *d.Compress {
		spec.Config.Compress = true
	}
	if transcriptDir == "" && spec.Config.TranscriptDir == "" && pcfg.Paths.Transcripts != "" {
		transcriptDir = pcfg.Paths.Transcripts
	}
}

// absSpecDir returns the spec file's directory as an absolute path, so
// relative paths inside the spec resolve against the spec's location
// rather than the working directory.
func absSpecDir(specPath string) string {
	dir := filepath.Dir(specPath)
	if !filepath.IsAbs(dir) {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	return dir
}

// executeRun drives a configured spec through the pipeline and reports the
// outcome. Shared by run and resume.
func executeRun(spec *models.RunSpec, specPath string) error {
	cfg := config.NewRunConfig(spec,
		config.WithSpecDir(absSpecDir(specPath)),
		config.WithDataPath(dataPath),
		config.WithCheckpointPath(checkpointPath),
		config.WithOutputPath(outputPath),
		config.WithTranscriptDir(transcriptDir),
		config.WithVerbose(verbose),
		config.WithOverwrite(overwrite),
		config.WithRetryFailed(retryFailed),
	)

	if cfg.CheckpointPath() == "" {
		return fmt.Errorf("no checkpoint path: set run.checkpoint or run.output in the spec, or pass --checkpoint")
	}

	provider, err := buildProvider(spec)
	if err != nil {
		return err
	}
	defer provider.Close() //nolint:errcheck

	fmt.Printf("Running spec: %s\n", spec.Name)
	fmt.Printf("Provider: %s\n", spec.Provider.Kind)
	if spec.Provider.ModelID != "" {
		fmt.Printf("Model: %s\n", spec.Provider.ModelID)
	}
	fmt.Printf("Checkpoint: %s\n", cfg.CheckpointPath())
	if spec.Config.Concurrent {
		w := spec.Config.Workers
		if w <= 0 {
			w = 4
		}
		fmt.Printf("Parallel: %d workers\n", w)
	}
	fmt.Println()

	runner := pipeline.NewRunner(cfg, provider)

	var sp *spinner.Spinner
	switch {
	case verbose:
		runner.OnProgress(verboseProgressListener)
	case spec.Config.Concurrent:
		// Interleaved per-record lines are unreadable with workers
		// racing; show a live count instead.
		sp = spinner.Start(os.Stdout, "Processing records...")
		runner.OnProgress(spinnerProgressListener(sp))
	default:
		runner.OnProgress(simpleProgressListener)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, runErr := runner.Run(ctx)
	if sp != nil {
		sp.Stop()
	}

	if outcome != nil {
		switch format {
		case "markdown":
			fmt.Print(reporting.FormatMarkdown(outcome))
		default:
			fmt.Print(reporting.FormatSummary(outcome))
			if showTable {
				fmt.Println()
				fmt.Print(reporting.FormatRecordTable(outcome))
			}
		}
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("interrupted; progress saved to %s", cfg.CheckpointPath())
		}
		return fmt.Errorf("run failed: %w", runErr)
	}

	if out := cfg.OutputPath(); out != "" {
		if err := reporting.WriteOutcome(outcome, out); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
		fmt.Printf("\nResults saved to: %s\n", out)
	}

	if outcome.Digest.Failed > 0 {
		return &RecordFailureError{
			Message: fmt.Sprintf("run completed with %d failed record(s)", outcome.Digest.Failed),
		}
	}

	return nil
}

// buildProvider constructs the provider named by the spec. API keys come
// from the environment, never from spec files.
func buildProvider(spec *models.RunSpec) (providers.Provider, error) {
	switch spec.Provider.Kind {
	case models.ProviderMock:
		return providers.NewMockProvider(), nil
	case models.ProviderOpenAI:
		return providers.NewOpenAIProvider(providers.OpenAIConfig{
			BaseURL: spec.Provider.BaseURL,
		}), nil
	case models.ProviderCopilot:
		return providers.NewCopilotProvider(nil), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", spec.Provider.Kind)
	}
}

// verboseProgressListener prints one block per pipeline event.
func verboseProgressListener(event pipeline.ProgressEvent) {
	switch event.EventType {
	case pipeline.EventRunStart:
		if resumed, ok := event.Details["resumed"].(bool); ok && resumed {
			done, _ := event.Details["done"].(int)
			fmt.Printf("Resuming: %d of %d records already have outcomes\n", done, event.TotalRecords)
		}
		pending, _ := event.Details["pending"].(int)
		fmt.Printf("Starting run with %d pending record(s)...\n\n", pending)
	case pipeline.EventRecordStart:
		fmt.Printf("[%d/%d] Record %d...", event.RecordNum, event.TotalRecords, event.RecordIndex)
	case pipeline.EventRecordComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		if event.Attempt > 1 {
			fmt.Printf(" %s (%v, %d attempts)\n", event.Status, duration, event.Attempt)
		} else {
			fmt.Printf(" %s (%v)\n", event.Status, duration)
		}
	case pipeline.EventRecordFailed:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf(" %s (%v)\n", event.Status, duration)
		if msg, ok := event.Details["error"].(string); ok && msg != "" {
			fmt.Printf("  [ERROR] %s\n", msg)
		}
	case pipeline.EventRecordSkipped:
		fmt.Printf("[%d/%d] Record %d [skipped: %s]\n", event.RecordNum, event.TotalRecords, event.RecordIndex, event.Status)
	case pipeline.EventRetryWait:
		delayMs, _ := event.Details["delay_ms"].(int64)
		fmt.Printf("\n  [RETRY] record %d attempt %d failed; next try in %v\n",
			event.RecordIndex, event.Attempt, time.Duration(delayMs)*time.Millisecond)
	case pipeline.EventCheckpointSaved:
		completed, _ := event.Details["completed"].(int)
		failed, _ := event.Details["failed"].(int)
		fmt.Printf("  [CHECKPOINT] saved: %d completed, %d failed\n", completed, failed)
	case pipeline.EventRunStopped:
		reason, _ := event.Details["reason"].(string)
		fmt.Printf("\nStopping early: %s\n", reason)
	case pipeline.EventRunComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("\nRun completed in %v\n\n", duration)
	}
}

// simpleProgressListener prints one line per finished record.
func simpleProgressListener(event pipeline.ProgressEvent) {
	switch event.EventType {
	case pipeline.EventRecordComplete:
		duration := time.Duration(event.DurationMs) * time.Millisecond
		fmt.Printf("✓ [%d/%d] record %d (%v)\n", event.RecordNum, event.TotalRecords, event.RecordIndex, duration)
	case pipeline.EventRecordFailed:
		msg, _ := event.Details["error"].(string)
		fmt.Printf("✗ [%d/%d] record %d: %s\n", event.RecordNum, event.TotalRecords, event.RecordIndex, msg)
	case pipeline.EventRecordSkipped:
		icon := "✓"
		if event.Status == models.StatusFailed {
			icon = "✗"
		}
		fmt.Printf("%s [%d/%d] record %d [skipped]\n", icon, event.RecordNum, event.TotalRecords, event.RecordIndex)
	}
}

// spinnerProgressListener feeds live counts into the spinner. Events
// arrive from worker goroutines, so the counters sit behind a mutex.
func spinnerProgressListener(sp *spinner.Spinner) pipeline.ProgressListener {
	var mu sync.Mutex
	done, failed := 0, 0
	return func(event pipeline.ProgressEvent) {
		switch event.EventType {
		case pipeline.EventRecordComplete, pipeline.EventRecordFailed:
			mu.Lock()
			done++
			if event.EventType == pipeline.EventRecordFailed {
				failed++
			}
			msg := fmt.Sprintf("Processed %d/%d records", done, event.TotalRecords)
			if failed > 0 {
				msg += fmt.Sprintf(" (%d failed)", failed)
			}
			mu.Unlock()
			sp.SetMessage(msg)
		}
	}
}
