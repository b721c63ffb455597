package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/droverhq/drover/internal/checkpoint"
	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/dataset"
	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/processors"
	"github.com/droverhq/drover/internal/template"
)

// runState bundles the per-run immutables every record shares.
type runState struct {
	spec      *models.RunSpec
	timestamp string
	records   []dataset.Record
	prompts   []*template.Prompt
	chains    [][]processors.Processor
	cp        *checkpoint.Checkpoint
	resumed   bool
}

// setup loads everything a run needs up front: prompts, processor chains,
// the dataset and the checkpoint. Any failure here aborts before a single
// provider call is made.
func (r *Runner) setup() (*runState, error) {
	spec := r.cfg.Spec()

	prompts, err := template.LoadPrompts(r.cfg.PromptPaths())
	if err != nil {
		return nil, err
	}

	chains, err := buildChains(spec.Steps)
	if err != nil {
		return nil, err
	}

	records, err := loadRecords(r.cfg)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset %s has no records", r.cfg.DataPath())
	}

	fingerprint, err := runFingerprint(r.cfg, prompts)
	if err != nil {
		return nil, err
	}

	order := buildOrder(spec.Dataset, len(records))
	cp, resumed, err := r.openCheckpoint(fingerprint, len(records), order)
	if err != nil {
		return nil, err
	}

	return &runState{
		spec:      spec,
		timestamp: time.Now().UTC().Format(time.RFC3339),
		records:   records,
		prompts:   prompts,
		chains:    chains,
		cp:        cp,
		resumed:   resumed,
	}, nil
}

// openCheckpoint loads an existing checkpoint or starts a fresh one. A
// checkpoint that cannot be parsed, or that was written under a different
// configuration, is fatal rather than silently discarded.
func (r *Runner) openCheckpoint(fingerprint string, total int, order []int) (*checkpoint.Checkpoint, bool, error) {
	if r.cfg.Overwrite() {
		if err := r.store.Clear(); err != nil {
			return nil, false, fmt.Errorf("clearing checkpoint: %w", err)
		}
	}

	cp, err := r.store.Load()
	if err != nil {
		return nil, false, err
	}
	if cp == nil {
		runID := fmt.Sprintf("run-%d", time.Now().Unix())
		return checkpoint.New(runID, r.cfg.Spec().Name, fingerprint, total, order), false, nil
	}

	if err := cp.VerifyFingerprint(fingerprint); err != nil {
		return nil, false, fmt.Errorf("checkpoint %s: %w", r.store.Path(), err)
	}

	if r.cfg.RetryFailed() {
		if dropped := cp.ClearFailed(); dropped > 0 && r.verbose {
			fmt.Printf("Retrying %d failed records\n", dropped)
		}
	}
	return cp, true, nil
}

// loadRecords reads the dataset and applies the configured row range.
func loadRecords(cfg *config.RunConfig) ([]dataset.Record, error) {
	ds := cfg.Spec().Dataset

	records, err := dataset.Load(cfg.DataPath(), ds.Format)
	if err != nil {
		return nil, err
	}

	if ds.StartRow > 0 || ds.EndRow > 0 {
		records, err = dataset.ApplyRange(records, ds.StartRow, ds.EndRow)
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// buildOrder computes the processing order for a fresh run: nil for plain
// index-ascending runs, a permutation when shuffling, a subset when
// sampling. Resumed runs ignore this and trust the stored order.
func buildOrder(ds models.DatasetConfig, n int) []int {
	switch {
	case ds.Sample > 0 && ds.Shuffle:
		k := ds.Sample
		if k > n {
			k = n
		}
		return dataset.Permutation(n, ds.Seed)[:k]
	case ds.Sample > 0:
		return dataset.SampleIndices(n, ds.Sample, ds.Seed)
	case ds.Shuffle:
		return dataset.Permutation(n, ds.Seed)
	default:
		return nil
	}
}

// runFingerprint hashes everything that shapes what gets sent for each
// record: provider and sampling settings, prompt contents, processor
// configuration and the dataset bytes. A stored checkpoint is only
// trusted when its fingerprint matches.
func runFingerprint(cfg *config.RunConfig, prompts []*template.Prompt) (string, error) {
	spec := cfg.Spec()

	datasetDigest, err := checkpoint.FileDigest(cfg.DataPath())
	if err != nil {
		return "", err
	}

	parts := []string{
		spec.Provider.Kind,
		spec.Provider.ModelID,
		spec.Provider.BaseURL,
		spec.Generation.SystemMessage,
		strconv.FormatFloat(spec.Generation.Temperature, 'g', -1, 64),
		strconv.Itoa(spec.Generation.MaxTokens),
		datasetDigest,
		strconv.Itoa(spec.Dataset.StartRow),
		strconv.Itoa(spec.Dataset.EndRow),
		strconv.FormatBool(spec.Dataset.Shuffle),
		strconv.Itoa(spec.Dataset.Sample),
		strconv.FormatInt(spec.Dataset.Seed, 10),
	}

	for i, step := range spec.Steps {
		procJSON, err := json.Marshal(step.Processors)
		if err != nil {
			return "", fmt.Errorf("marshaling processors for step %s: %w", step.Identifier, err)
		}
		parts = append(parts, step.Identifier, prompts[i].Content, string(procJSON))
	}

	return checkpoint.Fingerprint(parts...), nil
}

// buildChains constructs each step's post-processor chain.
func buildChains(steps []models.StepConfig) ([][]processors.Processor, error) {
	chains := make([][]processors.Processor, len(steps))
	for i, step := range steps {
		chain, err := processors.FromConfigs(step.Processors)
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", step.Identifier, err)
		}
		chains[i] = chain
	}
	return chains, nil
}
