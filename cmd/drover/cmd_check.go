package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/droverhq/drover/internal/config"
	"github.com/droverhq/drover/internal/dataset"
	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/projectconfig"
	"github.com/droverhq/drover/internal/template"
	"github.com/droverhq/drover/internal/tokens"
	"github.com/droverhq/drover/internal/validation"
	"github.com/spf13/cobra"
)

// checkReport is the result of validating a spec without running it.
type checkReport struct {
	SpecPath   string              `json:"spec_path"`
	SpecErrors []string            `json:"spec_errors,omitempty"`
	FileErrors map[string][]string `json:"file_errors,omitempty"`
	LoadError  string              `json:"load_error,omitempty"`
	Records    int                 `json:"records"`
	Sampled    int                 `json:"sampled,omitempty"`
	Steps      []stepReport        `json:"steps,omitempty"`
	Valid      bool                `json:"valid"`
}

type stepReport struct {
	Name       string `json:"name"`
	PromptPath string `json:"prompt_path"`
	Tokens     int    `json:"tokens,omitempty"`
	Rendered   string `json:"rendered,omitempty"`
	RenderErr  string `json:"render_error,omitempty"`
}

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <spec>",
		Short: "Validate a spec without calling the provider",
		Long: `Check a run spec before spending tokens on it.

Validates the YAML against the spec schema, verifies that referenced
prompt and dataset files exist, loads the dataset, and renders each
step's prompt for the first records. No provider requests are made.`,
		Args:          cobra.ExactArgs(1),
		RunE:          runCheck,
		SilenceErrors: true,
	}

	cmd.Flags().String("format", "text", "Output format: text, json")
	cmd.Flags().Int("render", 1, "Render prompts for the first N records (0 disables)")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	checkFormat, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if checkFormat != "text" && checkFormat != "json" {
		return fmt.Errorf("invalid format %q: expected text or json", checkFormat)
	}
	renderCount, err := cmd.Flags().GetInt("render")
	if err != nil {
		return err
	}

	pcfg, err := projectconfig.Load(".")
	if err != nil {
		return err
	}
	specPath := pcfg.ResolveSpecPath(args[0])

	report := buildCheckReport(specPath, renderCount)

	if checkFormat == "json" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(report); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	} else {
		displayCheckReport(cmd.OutOrStdout(), report)
	}

	if !report.Valid {
		return fmt.Errorf("spec %s failed validation", specPath)
	}
	return nil
}

func buildCheckReport(specPath string, renderCount int) *checkReport {
	report := &checkReport{SpecPath: specPath}

	specErrs, fileErrs, err := validation.ValidateSpecFile(specPath)
	if err != nil {
		report.LoadError = err.Error()
		return report
	}
	report.SpecErrors = specErrs
	report.FileErrors = fileErrs
	if len(specErrs) > 0 {
		return report
	}

	spec, err := models.LoadRunSpec(specPath)
	if err != nil {
		report.LoadError = err.Error()
		return report
	}

	cfg := config.NewRunConfig(spec, config.WithSpecDir(absSpecDir(specPath)))

	records, err := loadCheckRecords(cfg, spec)
	if err != nil {
		report.LoadError = err.Error()
		return report
	}
	report.Records = len(records)
	if ordered := orderedRecords(spec, records); len(ordered) != len(records) {
		report.Sampled = len(ordered)
	}

	prompts, err := template.LoadPrompts(cfg.PromptPaths())
	if err != nil {
		report.LoadError = err.Error()
		return report
	}

	limit := renderCount
	if limit > len(records) {
		limit = len(records)
	}
	ts := time.Now().UTC().Format(time.RFC3339)
	for i, step := range spec.Steps {
		sr := stepReport{Name: step.Identifier, PromptPath: step.PromptPath}
		for j := 0; j < limit; j++ {
			rendered, err := template.Render(prompts[i].Content, &template.Context{
				RunID:       "dry-run",
				StepName:    step.Identifier,
				RecordIndex: j,
				Attempt:     1,
				Timestamp:   ts,
				Record:      records[j],
			})
			if err != nil {
				sr.RenderErr = fmt.Sprintf("record %d: %v", j, err)
				break
			}
			if j == 0 {
				sr.Rendered = rendered
				sr.Tokens = tokens.Estimate(rendered)
			}
		}
		report.Steps = append(report.Steps, sr)
	}

	report.Valid = report.LoadError == "" && len(report.SpecErrors) == 0 && len(report.FileErrors) == 0
	for _, s := range report.Steps {
		if s.RenderErr != "" {
			report.Valid = false
		}
	}
	return report
}

// loadCheckRecords loads the dataset the way a run would, including the
// configured row range.
func loadCheckRecords(cfg *config.RunConfig, spec *models.RunSpec) ([]dataset.Record, error) {
	records, err := dataset.Load(cfg.DataPath(), spec.Dataset.Format)
	if err != nil {
		return nil, err
	}
	return dataset.ApplyRange(records, spec.Dataset.StartRow, spec.Dataset.EndRow)
}

// orderedRecords applies the spec's sampling cap, mirroring how the
// pipeline narrows its processing order.
func orderedRecords(spec *models.RunSpec, records []dataset.Record) []dataset.Record {
	if spec.Dataset.Sample > 0 && spec.Dataset.Sample < len(records) {
		idx := dataset.SampleIndices(len(records), spec.Dataset.Sample, spec.Dataset.Seed)
		if out, err := dataset.Reorder(records, idx); err == nil {
			return out
		}
	}
	return records
}

func displayCheckReport(w io.Writer, report *checkReport) {
	fmt.Fprintf(w, "\nChecking %s\n\n", report.SpecPath)

	if len(report.SpecErrors) > 0 {
		fmt.Fprintf(w, "❌ Schema: %d error(s)\n", len(report.SpecErrors))
		for _, e := range report.SpecErrors {
			fmt.Fprintf(w, "   - %s\n", e)
		}
		return
	}

	if len(report.FileErrors) > 0 {
		fmt.Fprintln(w, "❌ Referenced files:")
		for path, errs := range report.FileErrors {
			for _, e := range errs {
				fmt.Fprintf(w, "   - %s: %s\n", path, e)
			}
		}
	}

	if report.LoadError != "" {
		fmt.Fprintf(w, "❌ %s\n", report.LoadError)
		return
	}

	fmt.Fprintln(w, "✅ Schema valid")
	if len(report.FileErrors) == 0 {
		fmt.Fprintln(w, "✅ Referenced files present")
	}

	if report.Sampled > 0 {
		fmt.Fprintf(w, "✅ Dataset: %d record(s), sampling %d\n", report.Records, report.Sampled)
	} else {
		fmt.Fprintf(w, "✅ Dataset: %d record(s)\n", report.Records)
	}

	if len(report.Steps) > 0 {
		fmt.Fprintf(w, "\n%-16s %-36s %8s\n", "STEP", "PROMPT", "~TOKENS")
		fmt.Fprintln(w, strings.Repeat("─", 62))
		for _, s := range report.Steps {
			fmt.Fprintf(w, "%-16s %-36s %8d\n", s.Name, s.PromptPath, s.Tokens)
		}
	}

	for _, s := range report.Steps {
		if s.RenderErr != "" {
			fmt.Fprintf(w, "\n❌ Step %s: %s\n", s.Name, s.RenderErr)
		} else if s.Rendered != "" {
			fmt.Fprintf(w, "\n--- %s (record 0) ---\n%s\n", s.Name, s.Rendered)
		}
	}

	if report.Valid {
		fmt.Fprintln(w, "\n✅ Spec is ready to run")
	}
}
