package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/droverhq/drover/internal/hooks"
	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/processors"
	"github.com/droverhq/drover/internal/providers"
	"github.com/droverhq/drover/internal/template"
)

// processRecord drives one record through the full step chain. Errors from
// the provider or processors become a failed outcome, not an error; the
// error return is reserved for run-level aborts (cancellation), in which
// case the record stays unrecorded so a resume attempts it again.
func (r *Runner) processRecord(ctx context.Context, st *runState, index, num, total int) (*models.RecordOutcome, error) {
	start := time.Now()
	rec := st.records[index]

	r.notifyProgress(ProgressEvent{
		EventType:    EventRecordStart,
		RecordIndex:  index,
		RecordNum:    num,
		TotalRecords: total,
	})

	var steps []models.StepResult
	var usage models.UsageDigest
	attempts := 0

	fail := func(err error) *models.RecordOutcome {
		outcome := &models.RecordOutcome{
			Index:      index,
			Status:     models.StatusFailed,
			Attempts:   attempts,
			DurationMs: time.Since(start).Milliseconds(),
			Steps:      steps,
			Usage:      usage,
			ErrorMsg:   err.Error(),
		}
		r.notifyProgress(ProgressEvent{
			EventType:    EventRecordFailed,
			RecordIndex:  index,
			RecordNum:    num,
			TotalRecords: total,
			Status:       models.StatusFailed,
			DurationMs:   outcome.DurationMs,
			Details:      map[string]any{"error": err.Error()},
		})
		return outcome
	}

	if len(st.spec.Hooks.BeforeRecord) > 0 {
		if err := r.recordHooks(index).Execute(ctx, "before_record", st.spec.Hooks.BeforeRecord); err != nil {
			return fail(fmt.Errorf("before_record hook: %w", err)), nil
		}
	}

	messages := make([]providers.Message, 0, len(st.spec.Steps)*2+1)
	if sm := st.spec.Generation.SystemMessage; sm != "" {
		messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: sm})
	}

	for stepIdx, step := range st.spec.Steps {
		tmplCtx := &template.Context{
			RunID:       st.cp.RunID,
			StepName:    step.Identifier,
			RecordIndex: index,
			Timestamp:   st.timestamp,
			Record:      rec,
		}
		prompt, err := template.Render(st.prompts[stepIdx].Content, tmplCtx)
		if err != nil {
			return fail(fmt.Errorf("step %s: %w", step.Identifier, err)), nil
		}
		messages = append(messages, providers.Message{Role: providers.RoleUser, Content: prompt})

		resp, calls, err := r.callWithRetry(ctx, st, index, messages)
		attempts += calls
		if err != nil {
			// The parent context going away is a shutdown, not a fault
			// of this record.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return fail(fmt.Errorf("step %s: %w", step.Identifier, err)), nil
		}
		usage.TokensIn += resp.Usage.PromptTokens
		usage.TokensOut += resp.Usage.CompletionTokens
		usage.TokensTotal += resp.Usage.TotalTokens

		out, err := processors.Run(ctx, st.chains[stepIdx], resp.Content)
		if err != nil {
			return fail(fmt.Errorf("step %s: %w", step.Identifier, err)), nil
		}

		steps = append(steps, models.StepResult{Step: step.Identifier, Content: out.Content, Parsed: out.Parsed})

		// The raw reply, not the processed one, becomes conversation
		// context for the next step.
		messages = append(messages, providers.Message{Role: providers.RoleAssistant, Content: resp.Content})
	}

	outcome := &models.RecordOutcome{
		Index:      index,
		Status:     models.StatusCompleted,
		Attempts:   attempts,
		DurationMs: time.Since(start).Milliseconds(),
		Steps:      steps,
		Usage:      usage,
	}

	if _, err := r.transcripts.Write(outcome, messages); err != nil {
		fmt.Printf("[WARN] transcript for record %d: %v\n", index, err)
	}

	if len(st.spec.Hooks.AfterRecord) > 0 {
		if err := r.recordHooks(index).Execute(ctx, "after_record", st.spec.Hooks.AfterRecord); err != nil {
			fmt.Printf("[WARN] after_record hook failed: %v\n", err)
		}
	}

	r.notifyProgress(ProgressEvent{
		EventType:    EventRecordComplete,
		RecordIndex:  index,
		RecordNum:    num,
		TotalRecords: total,
		Attempt:      attempts,
		Status:       models.StatusCompleted,
		DurationMs:   outcome.DurationMs,
	})

	return outcome, nil
}

// callWithRetry sends one completion request, retrying transient failures
// with exponential backoff. It reports how many attempts were made.
func (r *Runner) callWithRetry(ctx context.Context, st *runState, index int, messages []providers.Message) (*providers.Response, int, error) {
	req := &providers.Request{
		Model:       st.spec.Provider.ModelID,
		Messages:    messages,
		Temperature: st.spec.Generation.Temperature,
		MaxTokens:   st.spec.Generation.MaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, attempt - 1, err
		}

		resp, err := r.completeOnce(ctx, st, req)
		if err == nil {
			return resp, attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, attempt, ctx.Err()
		}
		if !r.retry.ShouldRetry(err) {
			return nil, attempt, err
		}
		if attempt == r.retry.MaxAttempts {
			break
		}

		delay := r.retry.Delay(attempt)
		r.notifyProgress(ProgressEvent{
			EventType:   EventRetryWait,
			RecordIndex: index,
			Attempt:     attempt,
			Details: map[string]any{
				"delay_ms": delay.Milliseconds(),
				"error":    err.Error(),
			},
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, r.retry.MaxAttempts, fmt.Errorf("%d attempts exhausted: %w", r.retry.MaxAttempts, lastErr)
}

// completeOnce makes a single provider call under the per-call timeout.
func (r *Runner) completeOnce(ctx context.Context, st *runState, req *providers.Request) (*providers.Response, error) {
	if timeout := st.spec.Config.TimeoutSec; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer cancel()
	}
	return r.provider.Complete(ctx, req)
}

// recordHooks returns a hook runner whose environment identifies the
// record being processed.
func (r *Runner) recordHooks(index int) *hooks.Runner {
	env := make(map[string]string, len(r.hookRunner.Env)+1)
	for k, v := range r.hookRunner.Env {
		env[k] = v
	}
	env["DROVER_RECORD_INDEX"] = strconv.Itoa(index)

	return &hooks.Runner{Verbose: r.hookRunner.Verbose, Env: env}
}
