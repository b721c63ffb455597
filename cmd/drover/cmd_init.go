package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/projectconfig"
	"github.com/droverhq/drover/internal/wizard"
	"github.com/spf13/cobra"
)

const projectConfigTemplate = `# drover project configuration.
# Bare spec names on the command line resolve under paths.specs.

paths:
  specs: ./
  results: out/

defaults:
  provider: %s
  model: %s
`

const gitignoreStub = `out/
results/
*.checkpoint.json
`

const defaultDatasetCSV = `text,label
I love this product and the fast shipping.,positive
This is the worst support experience I have ever had.,negative
The package arrived on Tuesday.,neutral
`

const defaultDatasetJSONL = `{"text": "I love this product and the fast shipping.", "label": "positive"}
{"text": "This is the worst support experience I have ever had.", "label": "negative"}
{"text": "The package arrived on Tuesday.", "label": "neutral"}
`

const defaultDatasetJSON = `[
  {"text": "I love this product and the fast shipping.", "label": "positive"},
  {"text": "This is the worst support experience I have ever had.", "label": "negative"},
  {"text": "The package arrived on Tuesday.", "label": "neutral"}
]
`

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Scaffold a new drover project",
		Long: `Scaffold a runnable project: a starter spec, a prompt, a sample
dataset and a .drover.yaml with project defaults. Existing files are
never overwritten.

With --interactive the spec fields are collected through a form;
otherwise project defaults fill them in.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}

	cmd.Flags().BoolP("interactive", "i", false, "Collect spec fields interactively")
	cmd.Flags().String("name", "", "Spec name (default: the directory name)")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	interactive, err := cmd.Flags().GetBool("interactive")
	if err != nil {
		return err
	}
	name, err := cmd.Flags().GetString("name")
	if err != nil {
		return err
	}

	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if name == "" {
		name = filepath.Base(absDir)
	}
	if err := wizard.ValidateName(name); err != nil {
		return err
	}

	pcfg, err := projectconfig.Load(absDir)
	if err != nil {
		return err
	}

	var spec *wizard.InitSpec
	if interactive {
		spec, err = wizard.RunInitWizard(cmd.InOrStdin(), cmd.OutOrStdout(), name)
		if err != nil {
			return err
		}
	} else {
		spec = &wizard.InitSpec{
			Name:        name,
			Provider:    pcfg.Defaults.Provider,
			Model:       pcfg.Defaults.Model,
			DatasetPath: "data/records.csv",
			SaveEvery:   models.DefaultSaveEvery,
		}
	}
	if spec.BaseURL == "" {
		spec.BaseURL = pcfg.Defaults.BaseURL
	}

	specYAML, err := wizard.GenerateSpecYAML(spec)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initializing drover project in %s\n\n", absDir)

	files := []struct {
		path    string
		content string
	}{
		{filepath.Join(absDir, spec.Name+".yaml"), specYAML},
		{filepath.Join(absDir, "prompts", "step1.txt"), wizard.DefaultPromptStub},
		{filepath.Join(absDir, filepath.FromSlash(spec.DatasetPath)), datasetStub(spec.DatasetPath)},
		{filepath.Join(absDir, ".drover.yaml"), fmt.Sprintf(projectConfigTemplate, spec.Provider, spec.Model)},
		{filepath.Join(absDir, ".gitignore"), gitignoreStub},
	}

	for _, f := range files {
		created, err := writeIfMissing(f.path, f.content)
		if err != nil {
			return err
		}
		rel := f.path
		if r, relErr := filepath.Rel(absDir, f.path); relErr == nil {
			rel = r
		}
		if created {
			fmt.Fprintf(out, "  created %s\n", rel)
		} else {
			fmt.Fprintf(out, "  exists  %s (skipped)\n", rel)
		}
	}

	fmt.Fprintf(out, "\nProject ready. Try it with:\n\n  drover run %s\n", spec.Name)
	return nil
}

// datasetStub returns starter records matching the dataset file's format.
func datasetStub(path string) string {
	switch filepath.Ext(path) {
	case ".jsonl", ".ndjson":
		return defaultDatasetJSONL
	case ".json":
		return defaultDatasetJSON
	default:
		return defaultDatasetCSV
	}
}

// writeIfMissing writes content to path unless the file already exists.
// Reports whether the file was created.
func writeIfMissing(path, content string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}
