// Package pipeline drives dataset records through the prompt chain and
// persists progress so an interrupted run can pick up where it stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/droverhq/drover/internal/checkpoint"
	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/hooks"
	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/providers"
	"github.com/droverhq/drover/internal/transcript"
	"golang.org/x/sync/errgroup"
)

// defaultWorkers bounds concurrent record processing when the spec enables
// parallelism without naming a worker count.
const defaultWorkers = 4

// EventType constants for progress events
type EventType string

const (
	EventRunStart        EventType = "run_start"
	EventRunComplete     EventType = "run_complete"
	EventRunStopped      EventType = "run_stopped"
	EventRecordStart     EventType = "record_start"
	EventRecordComplete  EventType = "record_complete"
	EventRecordFailed    EventType = "record_failed"
	EventRecordSkipped   EventType = "record_skipped"
	EventRetryWait       EventType = "retry_wait"
	EventCheckpointSaved EventType = "checkpoint_saved"
)

// ProgressEvent carries information about record execution progress
type ProgressEvent struct {
	EventType    EventType
	RecordIndex  int
	RecordNum    int // 1-based position within this invocation's worklist
	TotalRecords int
	Attempt      int
	Status       models.Status
	DurationMs   int64
	Details      map[string]any
}

// ProgressListener receives progress events during a run
type ProgressListener func(event ProgressEvent)

// errStopRun signals the fail-fast stop. It never escapes Run.
var errStopRun = errors.New("stopping after first failure")

// Runner executes a batch run: it drives every pending record through the
// prompt chain against the provider, records outcomes into the checkpoint
// and persists it at the configured interval.
type Runner struct {
	cfg      *config.RunConfig
	provider providers.Provider
	store    *checkpoint.Store
	retry    providers.RetryPolicy
	limiter  *providers.RateLimiter
	verbose  bool

	hookRunner  *hooks.Runner
	transcripts *transcript.Writer

	// cpMu serializes checkpoint mutation and persistence across workers.
	cpMu      sync.Mutex
	saves     int
	sinceSave int

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithRetryPolicy overrides the provider retry policy.
func WithRetryPolicy(policy providers.RetryPolicy) RunnerOption {
	return func(r *Runner) { r.retry = policy }
}

// NewRunner creates a runner for the given configuration and provider.
// The provider is borrowed, not owned; closing it stays with the caller.
func NewRunner(cfg *config.RunConfig, provider providers.Provider, opts ...RunnerOption) *Runner {
	spec := cfg.Spec()

	policy := providers.DefaultRetryPolicy()
	if spec.Config.MaxAttempts > 0 {
		policy.MaxAttempts = spec.Config.MaxAttempts
	}

	var limiter *providers.RateLimiter
	if spec.Config.DelayMs > 0 {
		limiter = providers.NewRateLimiter(time.Duration(spec.Config.DelayMs) * time.Millisecond)
	}

	r := &Runner{
		cfg:      cfg,
		provider: provider,
		store:    checkpoint.NewStore(cfg.CheckpointPath()),
		retry:    policy,
		limiter:  limiter,
		verbose:  cfg.Verbose(),
	}

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnProgress registers a listener for progress events
func (r *Runner) OnProgress(listener ProgressListener) {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// notifyProgress sends an event to all registered listeners
func (r *Runner) notifyProgress(event ProgressEvent) {
	r.progressMu.Lock()
	listeners := make([]ProgressListener, len(r.listeners))
	copy(listeners, r.listeners)
	r.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run executes the batch and returns the run outcome. A nil error does not
// mean every record completed; per-record failures are reported through the
// outcome. The error is non-nil for fatal conditions only: an unusable
// checkpoint, a persistence failure or cancellation.
func (r *Runner) Run(ctx context.Context) (*models.RunOutcome, error) {
	start := time.Now()
	spec := r.cfg.Spec()

	st, err := r.setup()
	if err != nil {
		return nil, err
	}

	r.transcripts = transcript.NewWriter(r.cfg.TranscriptDir(), st.cp.RunID, spec.Config.Compress)
	r.hookRunner = &hooks.Runner{
		Verbose: r.verbose,
		Env: map[string]string{
			"DROVER_RUN_ID":     st.cp.RunID,
			"DROVER_SPEC_NAME":  spec.Name,
			"DROVER_CHECKPOINT": r.store.Path(),
			"DROVER_OUTPUT":     r.cfg.OutputPath(),
		},
	}

	// after_run hooks fire even when the run aborts partway through, so
	// they run on a context that survives cancellation.
	defer func() {
		if err := r.hookRunner.Execute(context.WithoutCancel(ctx), "after_run", spec.Hooks.AfterRun); err != nil {
			fmt.Printf("[WARN] after_run hook failed: %v\n", err)
		}
	}()

	if err := r.hookRunner.Execute(ctx, "before_run", spec.Hooks.BeforeRun); err != nil {
		return nil, fmt.Errorf("before_run hook failed: %w", err)
	}

	pending := st.cp.Pending()
	if budget := spec.Config.Budget; budget > 0 && len(pending) > budget {
		pending = pending[:budget]
	}

	completed, failed := st.cp.Counts()
	r.notifyProgress(ProgressEvent{
		EventType:    EventRunStart,
		TotalRecords: len(st.cp.ProcessingOrder()),
		Details: map[string]any{
			"pending": len(pending),
			"resumed": st.resumed,
			"done":    completed + failed,
		},
	})

	// On resume, records that already have an outcome are surfaced as
	// skipped so listeners can account for every record in the order.
	if st.resumed {
		order := st.cp.ProcessingOrder()
		for i, index := range order {
			if prior, ok := st.cp.Results[index]; ok {
				r.notifyProgress(ProgressEvent{
					EventType:    EventRecordSkipped,
					RecordIndex:  index,
					RecordNum:    i + 1,
					TotalRecords: len(order),
					Status:       prior.Status,
				})
			}
		}
	}

	var runErr error
	if spec.Config.Concurrent {
		runErr = r.runConcurrent(ctx, st, pending)
	} else {
		runErr = r.runSequential(ctx, st, pending)
	}

	if errors.Is(runErr, errStopRun) {
		r.notifyProgress(ProgressEvent{
			EventType: EventRunStopped,
			Details:   map[string]any{"reason": errStopRun.Error()},
		})
		runErr = nil
	}

	// The final state always goes to disk, cancellation included. Without
	// this the completions since the last interval save would be lost.
	r.cpMu.Lock()
	saveErr := r.persist(st.cp)
	r.cpMu.Unlock()
	if saveErr != nil && runErr == nil {
		runErr = saveErr
	}

	outcome := r.buildOutcome(st, time.Since(start))

	if runErr == nil {
		r.notifyProgress(ProgressEvent{
			EventType:    EventRunComplete,
			TotalRecords: outcome.Digest.TotalRecords,
			DurationMs:   outcome.Digest.DurationMs,
			Details: map[string]any{
				"completed": outcome.Digest.Completed,
				"failed":    outcome.Digest.Failed,
			},
		})
	}

	return outcome, runErr
}

// runSequential processes pending records one at a time in processing
// order.
func (r *Runner) runSequential(ctx context.Context, st *runState, pending []int) error {
	for i, index := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := r.processRecord(ctx, st, index, i+1, len(pending))
		if err != nil {
			return err
		}
		if err := r.completeRecord(st, outcome); err != nil {
			return err
		}

		if outcome.Status == models.StatusFailed && st.spec.Config.StopOnError {
			return errStopRun
		}
	}
	return nil
}

// runConcurrent processes pending records with a bounded worker pool.
// Checkpoint mutation stays serialized behind cpMu; only provider calls
// overlap.
func (r *Runner) runConcurrent(ctx context.Context, st *runState, pending []int) error {
	workers := st.spec.Config.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for i, index := range pending {
		num := i + 1
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			outcome, err := r.processRecord(groupCtx, st, index, num, len(pending))
			if err != nil {
				return err
			}
			if err := r.completeRecord(st, outcome); err != nil {
				return err
			}

			if outcome.Status == models.StatusFailed && st.spec.Config.StopOnError {
				return errStopRun
			}
			return nil
		})
	}

	return group.Wait()
}

// completeRecord stores a terminal outcome and persists the checkpoint
// when enough new outcomes accumulated since the last save.
func (r *Runner) completeRecord(st *runState, outcome *models.RecordOutcome) error {
	r.cpMu.Lock()
	defer r.cpMu.Unlock()

	st.cp.Add(outcome)
	r.sinceSave++

	if r.sinceSave >= st.spec.Config.SaveEvery {
		if err := r.persist(st.cp); err != nil {
			return err
		}
	}
	return nil
}

// persist saves the checkpoint and emits a checkpoint_saved event.
// Callers hold cpMu. A save failure is fatal to the run; continuing
// without durable progress would break the resume contract.
func (r *Runner) persist(cp *checkpoint.Checkpoint) error {
	if err := r.store.Save(cp); err != nil {
		return err
	}
	r.saves++
	r.sinceSave = 0

	completed, failed := cp.Counts()
	r.notifyProgress(ProgressEvent{
		EventType: EventCheckpointSaved,
		Details: map[string]any{
			"path":      r.store.Path(),
			"completed": completed,
			"failed":    failed,
		},
	})
	return nil
}

// buildOutcome assembles the run outcome from the checkpoint state.
// Records are reported in ascending source index order regardless of the
// processing order; unattempted ones appear as pending.
func (r *Runner) buildOutcome(st *runState, duration time.Duration) *models.RunOutcome {
	spec := st.spec
	order := st.cp.ProcessingOrder()

	records := make([]models.RecordOutcome, 0, len(order))
	for _, index := range order {
		if outcome, ok := st.cp.Results[index]; ok {
			records = append(records, *outcome)
		} else {
			records = append(records, models.RecordOutcome{Index: index, Status: models.StatusPending})
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Index < records[j].Index })

	workers := 0
	if spec.Config.Concurrent {
		workers = spec.Config.Workers
		if workers <= 0 {
			workers = defaultWorkers
		}
	}

	return &models.RunOutcome{
		RunID:     st.cp.RunID,
		SpecName:  spec.Name,
		Timestamp: time.Now().UTC(),
		Setup: models.OutcomeSetup{
			ProviderKind: spec.Provider.Kind,
			ModelID:      spec.Provider.ModelID,
			Temperature:  spec.Generation.Temperature,
			MaxTokens:    spec.Generation.MaxTokens,
			Steps:        spec.StepNames(),
			SaveEvery:    spec.Config.SaveEvery,
			Workers:      workers,
		},
		Digest:  models.ComputeDigest(records, len(order), duration, r.saves),
		Records: records,
	}
}
