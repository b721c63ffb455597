package main

import (
	"fmt"
	"time"

	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/dataset"
	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/projectconfig"
	"github.com/droverhq/drover/internal/template"
	"github.com/droverhq/drover/internal/tokens"
	"github.com/spf13/cobra"
)

func newEstimateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate <spec>",
		Short: "Estimate token spend for a run",
		Long: `Estimate the token cost of a run without calling the provider.

Renders every step prompt for every record and sums the estimated input
tokens, plus the worst case output if every request runs to max_tokens.
Estimates use a characters-per-token heuristic and skip assistant turns,
so treat them as a sizing aid rather than billing truth.`,
		Args: cobra.ExactArgs(1),
		RunE: runEstimateCommand,
	}
	return cmd
}

func runEstimateCommand(cmd *cobra.Command, args []string) error {
	pcfg, err := projectconfig.Load(".")
	if err != nil {
		return err
	}
	specPath := pcfg.ResolveSpecPath(args[0])

	spec, err := models.LoadRunSpec(specPath)
	if err != nil {
		return fmt.Errorf("failed to load spec: %w", err)
	}

	cfg := config.NewRunConfig(spec, config.WithSpecDir(absSpecDir(specPath)))

	records, err := loadCheckRecords(cfg, spec)
	if err != nil {
		return err
	}
	records = orderedRecords(spec, records)

	prompts, err := template.LoadPrompts(cfg.PromptPaths())
	if err != nil {
		return err
	}

	est, err := estimateRun(spec, prompts, records)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Spec: %s\n\n", spec.Name)
	fmt.Fprintf(w, "Records:        %d\n", est.Records)
	fmt.Fprintf(w, "Requests:       %d\n", est.Requests)
	fmt.Fprintf(w, "Input tokens:   ~%d\n", est.InputTokens)
	fmt.Fprintf(w, "Output ceiling: ~%d\n", est.OutputCeiling)
	fmt.Fprintf(w, "Total:          ~%d\n", est.Total())
	return nil
}

// estimateRun sizes the run: every step of every record becomes one
// request whose input is the system message plus all rendered prompts so
// far. Assistant replies are unknowable up front and are not counted.
func estimateRun(spec *models.RunSpec, prompts []*template.Prompt, records []dataset.Record) (*tokens.RunEstimate, error) {
	est := &tokens.RunEstimate{Records: len(records)}
	ts := time.Now().UTC().Format(time.RFC3339)

	for index, rec := range records {
		conversation := make([]string, 0, len(spec.Steps)+1)
		if spec.Generation.SystemMessage != "" {
			conversation = append(conversation, spec.Generation.SystemMessage)
		}

		for stepIdx, step := range spec.Steps {
			rendered, err := template.Render(prompts[stepIdx].Content, &template.Context{
				RunID:       "estimate",
				StepName:    step.Identifier,
				RecordIndex: index,
				Attempt:     1,
				Timestamp:   ts,
				Record:      rec,
			})
			if err != nil {
				return nil, fmt.Errorf("step %s, record %d: %w", step.Identifier, index, err)
			}
			conversation = append(conversation, rendered)
			est.Add(tokens.EstimateConversation(conversation), spec.Generation.MaxTokens)
		}
	}

	return est, nil
}
