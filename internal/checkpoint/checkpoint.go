// Package checkpoint persists batch progress so an interrupted run can
// resume after the last completed record instead of starting over.
package checkpoint

import (
	"fmt"
	"time"

	"github.com/droverhq/drover/internal/models"
)

// Version is the checkpoint file format version.
const Version = 1

// Checkpoint is the durable progress state of one run. Results maps a
// record's source index to its terminal outcome; Order, when present,
// holds the source indices to process in processing order (a
// permutation for shuffled runs, a subset for sampled ones).
// Everything a resume needs is reconstructed from this structure alone.
type Checkpoint struct {
	Version     int       `json:"version"`
	RunID       string    `json:"run_id"`
	SpecName    string    `json:"spec_name,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	StartedAt   time.Time `json:"started_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	TotalRecords int   `json:"total_records"`
	Order        []int `json:"order,omitempty"`

	// HighestContiguous is the furthest position in processing order up
	// to which every record has a recorded outcome, -1 when position 0
	// is still pending. Refreshed on every save.
	HighestContiguous int `json:"highest_contiguous"`

	Results map[int]*models.RecordOutcome `json:"results"`
}

// New creates an empty checkpoint for a fresh run.
func New(runID, specName, fingerprint string, total int, order []int) *Checkpoint {
	return &Checkpoint{
		Version:           Version,
		RunID:             runID,
		SpecName:          specName,
		Fingerprint:       fingerprint,
		StartedAt:         time.Now().UTC(),
		TotalRecords:      total,
		Order:             order,
		HighestContiguous: -1,
		Results:           map[int]*models.RecordOutcome{},
	}
}

// Has reports whether the record at source index has a recorded outcome,
// completed or failed.
func (c *Checkpoint) Has(index int) bool {
	_, ok := c.Results[index]
	return ok
}

// Add records a terminal outcome for one record.
func (c *Checkpoint) Add(outcome *models.RecordOutcome) {
	if c.Results == nil {
		c.Results = map[int]*models.RecordOutcome{}
	}
	c.Results[outcome.Index] = outcome
}

// Counts returns how many recorded outcomes completed and failed.
func (c *Checkpoint) Counts() (completed, failed int) {
	for _, outcome := range c.Results {
		switch outcome.Status {
		case models.StatusCompleted:
			completed++
		case models.StatusFailed:
			failed++
		}
	}
	return completed, failed
}

// ProcessingOrder returns source indices in the order records are
// processed. Without a stored permutation this is the identity order.
func (c *Checkpoint) ProcessingOrder() []int {
	if len(c.Order) > 0 {
		return c.Order
	}
	order := make([]int, c.TotalRecords)
	for i := range order {
		order[i] = i
	}
	return order
}

// Pending returns the source indices that still need processing, in
// processing order.
func (c *Checkpoint) Pending() []int {
	var pending []int
	for _, index := range c.ProcessingOrder() {
		if !c.Has(index) {
			pending = append(pending, index)
		}
	}
	return pending
}

// ContiguousPrefix returns how many leading positions of the processing
// order have recorded outcomes.
func (c *Checkpoint) ContiguousPrefix() int {
	n := 0
	for _, index := range c.ProcessingOrder() {
		if !c.Has(index) {
			break
		}
		n++
	}
	return n
}

// ClearFailed drops failed outcomes so a resume re-attempts them.
// Returns how many were dropped.
func (c *Checkpoint) ClearFailed() int {
	dropped := 0
	for index, outcome := range c.Results {
		if outcome.Status == models.StatusFailed {
			delete(c.Results, index)
			dropped++
		}
	}
	return dropped
}

// VerifyFingerprint fails when the checkpoint was written under a
// different configuration than expected.
func (c *Checkpoint) VerifyFingerprint(expected string) error {
	if c.Fingerprint != expected {
		return fmt.Errorf("%w: file has %.12s, current configuration is %.12s",
			ErrFingerprintMismatch, c.Fingerprint, expected)
	}
	return nil
}

// Validate checks structural integrity after a load. Any failure means
// the file cannot be trusted for resumption.
func (c *Checkpoint) Validate() error {
	if c.Version != Version {
		return fmt.Errorf("unsupported version %d (want %d)", c.Version, Version)
	}
	if c.RunID == "" {
		return fmt.Errorf("missing run_id")
	}
	if c.Fingerprint == "" {
		return fmt.Errorf("missing fingerprint")
	}
	if c.TotalRecords <= 0 {
		return fmt.Errorf("non-positive total_records %d", c.TotalRecords)
	}

	if len(c.Order) > 0 {
		// Sampled runs store an order shorter than total_records; it can
		// never be longer.
		if len(c.Order) > c.TotalRecords {
			return fmt.Errorf("order has %d entries for %d records", len(c.Order), c.TotalRecords)
		}
		seen := make(map[int]bool, len(c.Order))
		for pos, index := range c.Order {
			if index < 0 || index >= c.TotalRecords {
				return fmt.Errorf("order[%d] = %d out of range", pos, index)
			}
			if seen[index] {
				return fmt.Errorf("order repeats index %d", index)
			}
			seen[index] = true
		}
	}

	for index, outcome := range c.Results {
		if index < 0 || index >= c.TotalRecords {
			return fmt.Errorf("result index %d out of range", index)
		}
		if outcome == nil {
			return fmt.Errorf("null result at index %d", index)
		}
		if outcome.Status != models.StatusCompleted && outcome.Status != models.StatusFailed {
			return fmt.Errorf("result at index %d has non-terminal status %q", index, outcome.Status)
		}
	}

	return nil
}
