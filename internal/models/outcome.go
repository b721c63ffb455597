package models

import (
	"time"

	"github.com/droverhq/drover/internal/metrics"
)

// Status represents the outcome status of a record or run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusPending marks records that were never attempted, either because
	// the run was interrupted or a budget cut it short.
	StatusPending Status = "pending"
)

// ProcessorKind identifies the type of post-processor (e.g. trim, json).
type ProcessorKind string

const (
	ProcessorKindTrim  ProcessorKind = "trim"
	ProcessorKindJSON  ProcessorKind = "json"
	ProcessorKindRegex ProcessorKind = "regex"
)

// RunOutcome represents the complete result of a batch run
type RunOutcome struct {
	RunID     string          `json:"run_id"`
	SpecName  string          `json:"spec_name"`
	Timestamp time.Time       `json:"timestamp"`
	Setup     OutcomeSetup    `json:"config"`
	Digest    OutcomeDigest   `json:"summary"`
	Records   []RecordOutcome `json:"records"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
}

type OutcomeSetup struct {
	ProviderKind string   `json:"provider"`
	ModelID      string   `json:"model_id"`
	Temperature  float64  `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
	Steps        []string `json:"steps"`
	SaveEvery    int      `json:"save_every"`
	Workers      int      `json:"workers,omitempty"`
}

type OutcomeDigest struct {
	TotalRecords    int     `json:"total_records"`
	Completed       int     `json:"completed"`
	Failed          int     `json:"failed"`
	Pending         int     `json:"pending"`
	SuccessRate     float64 `json:"success_rate"`
	DurationMs      int64   `json:"duration_ms"`
	MeanLatencyMs   float64 `json:"mean_latency_ms"`
	StdDevLatencyMs float64 `json:"std_dev_latency_ms"`
	TokensIn        int     `json:"tokens_in"`
	TokensOut       int     `json:"tokens_out"`
	Checkpoints     int     `json:"checkpoints"`
}

// RecordOutcome is the result of driving one record through the chain
type RecordOutcome struct {
	Index    int    `json:"index"`
	Status   Status `json:"status"`
	Attempts int    `json:"attempts"`
	// NOTE: if Status == [StatusFailed], then [ErrorMsg] carries the message
	// from the last error.
	DurationMs int64        `json:"duration_ms"`
	Steps      []StepResult `json:"steps,omitempty"`
	Usage      UsageDigest  `json:"usage"`
	ErrorMsg   string       `json:"error_msg,omitempty"`
}

// StepResult holds one chain step's reply for a record. Content is the
// post-processed reply text; Parsed is the structured value when a json
// processor decoded one, otherwise it mirrors Content.
type StepResult struct {
	Step    string `json:"step"`
	Content string `json:"content"`
	Parsed  any    `json:"parsed,omitempty"`
}

type UsageDigest struct {
	TokensIn    int `json:"tokens_in"`
	TokensOut   int `json:"tokens_out"`
	TokensTotal int `json:"tokens_total"`
}

// FinalContent returns the last step's content, or "" when no step ran.
func (r *RecordOutcome) FinalContent() string {
	if len(r.Steps) == 0 {
		return ""
	}
	return r.Steps[len(r.Steps)-1].Content
}

// ComputeDigest aggregates record outcomes into a run digest.
func ComputeDigest(records []RecordOutcome, total int, duration time.Duration, checkpoints int) OutcomeDigest {
	d := OutcomeDigest{
		TotalRecords: total,
		DurationMs:   duration.Milliseconds(),
		Checkpoints:  checkpoints,
	}

	var latencies []float64
	for _, r := range records {
		switch r.Status {
		case StatusCompleted:
			d.Completed++
			latencies = append(latencies, float64(r.DurationMs))
		case StatusFailed:
			d.Failed++
		}
		d.TokensIn += r.Usage.TokensIn
		d.TokensOut += r.Usage.TokensOut
	}
	d.Pending = total - d.Completed - d.Failed
	if d.Pending < 0 {
		d.Pending = 0
	}

	attempted := d.Completed + d.Failed
	if attempted > 0 {
		d.SuccessRate = float64(d.Completed) / float64(attempted)
	}
	d.MeanLatencyMs = metrics.Mean(latencies)
	d.StdDevLatencyMs = metrics.StdDev(latencies)

	return d
}
