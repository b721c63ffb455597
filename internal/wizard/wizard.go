// Package wizard drives the interactive `drover init` form and renders
// the scaffolded spec files it produces.
package wizard

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// InitSpec holds all fields collected during the interactive wizard.
// BaseURL is not asked for; it comes from project defaults when set.
type InitSpec struct {
	Name        string
	Description string
	Provider    string
	Model       string
	BaseURL     string
	DatasetPath string
	SaveEvery   int
}

const specYAMLTemplate = `name: {{ .Name }}
{{- if .Description }}
description: {{ .Description }}
{{- end }}

provider:
  type: {{ .Provider }}
  model: {{ .Model }}
{{- if .BaseURL }}
  base_url: {{ .BaseURL }}
{{- end }}

generation:
  system_message: You are a helpful assistant.
  temperature: 0.0
  max_tokens: 1024

steps:
  - name: step1
    prompt: prompts/step1.txt

dataset:
  path: {{ .DatasetPath }}

run:
  checkpoint: out/{{ .Name }}.checkpoint.json
  output: out/{{ .Name }}.json
  save_every: {{ .SaveEvery }}
`

// DefaultPromptStub is the starter prompt written next to a scaffolded
// spec. Fields of each dataset record are available as {{.Record.<column>}}.
const DefaultPromptStub = `Classify the sentiment of the following text as positive, negative, or neutral.

Text: {{.Record.text}}

Answer with a single word.
`

// ValidateName rejects names with path-traversal characters or empty names.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("spec name must not be empty")
	}
	cleaned := filepath.Clean(name)
	if cleaned == ".." || strings.Contains(cleaned, "/") || strings.Contains(cleaned, "\\") {
		return fmt.Errorf("spec name %q contains invalid path characters", name)
	}
	return nil
}

// RunInitWizard runs an interactive huh form to collect spec metadata.
// If initialName is non-empty, it pre-populates the name field.
func RunInitWizard(in io.Reader, out io.Writer, initialName string) (*InitSpec, error) {
	var (
		name        = initialName
		description string
		provider    string
		model       string
		datasetPath string
		saveEvery   = "50"
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Spec name").
				Description("A kebab-case name for this run spec").
				Placeholder("ticket-triage").
				Value(&name).
				Validate(func(s string) error {
					return ValidateName(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Description").
				Description("What does this run do?").
				Placeholder("Label support tickets").
				Value(&description),
			huh.NewSelect[string]().
				Title("Provider").
				Options(
					huh.NewOption("openai", "openai"),
					huh.NewOption("copilot", "copilot"),
					huh.NewOption("mock", "mock"),
				).
				Value(&provider),
			huh.NewInput().
				Title("Model").
				Description("Model identifier sent with every request").
				Placeholder("gpt-4o-mini").
				Value(&model),
			huh.NewInput().
				Title("Dataset path").
				Description("CSV, JSON or JSONL file with one record per row").
				Placeholder("data/records.csv").
				Value(&datasetPath).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("dataset path is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Checkpoint interval").
				Description("Persist progress after this many completed records").
				Value(&saveEvery).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n < 1 {
						return fmt.Errorf("must be a number >= 1")
					}
					return nil
				}),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	interval, _ := strconv.Atoi(strings.TrimSpace(saveEvery))

	return &InitSpec{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		Provider:    provider,
		Model:       strings.TrimSpace(model),
		DatasetPath: strings.TrimSpace(datasetPath),
		SaveEvery:   interval,
	}, nil
}

// GenerateSpecYAML renders a run spec from the given wizard answers.
func GenerateSpecYAML(spec *InitSpec) (string, error) {
	tmpl, err := template.New("specyaml").Parse(specYAMLTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, spec); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
