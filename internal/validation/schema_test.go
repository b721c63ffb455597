package validation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validSpecYAML = `name: ticket-triage
description: Label support tickets by sentiment
provider:
  type: mock
  model: test-model
generation:
  system_message: You are a terse classifier.
  temperature: 0.2
  max_tokens: 256
steps:
  - name: classify
    prompt: prompts/classify.txt
    processors:
      - type: json
        name: parse-label
dataset:
  path: data/tickets.csv
  format: csv
run:
  checkpoint: out/checkpoint.json
  output: out/results.json
  save_every: 10
`

const invalidSpecYAML = `name: ticket-triage
provider:
  type: anthropic
  model: test-model
generation:
  temperature: 3.5
steps:
  - name: classify
    prompt: prompts/classify.txt
dataset:
  path: data/tickets.csv
`

const missingStepsYAML = `name: ticket-triage
provider:
  type: mock
dataset:
  path: data/tickets.csv
`

func TestValidateSpecBytes_Valid(t *testing.T) {
	errs := ValidateSpecBytes([]byte(validSpecYAML))
	require.Empty(t, errs, "valid spec should have no errors")
}

func TestValidateSpecBytes_Invalid(t *testing.T) {
	errs := ValidateSpecBytes([]byte(invalidSpecYAML))
	require.NotEmpty(t, errs, "invalid spec should have errors")

	joined := joinErrs(errs)
	require.Contains(t, joined, "provider/type")
	require.Contains(t, joined, "temperature")
}

func TestValidateSpecBytes_MissingSteps(t *testing.T) {
	errs := ValidateSpecBytes([]byte(missingStepsYAML))
	require.NotEmpty(t, errs, "spec without steps should have errors")

	joined := joinErrs(errs)
	require.Contains(t, joined, "steps")
}

func TestValidateSpecBytes_NotYAML(t *testing.T) {
	errs := ValidateSpecBytes([]byte("{not valid yaml: ["))
	require.NotEmpty(t, errs)
	require.Contains(t, errs[0], "YAML parse error")
}

func writeSpecFixture(t *testing.T, dir string) string {
	t.Helper()

	specPath := filepath.Join(dir, "spec.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(validSpecYAML), 0644))

	promptsDir := filepath.Join(dir, "prompts")
	require.NoError(t, os.MkdirAll(promptsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(promptsDir, "classify.txt"), []byte("Classify: {{.Record.text}}"), 0644))

	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "tickets.csv"), []byte("text\nhello\n"), 0644))

	return specPath
}

func TestValidateSpecFile_Valid(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpecFixture(t, dir)

	specErrs, fileErrs, err := ValidateSpecFile(specPath)
	require.NoError(t, err)
	require.Empty(t, specErrs, "valid spec file should have no errors")
	require.Empty(t, fileErrs, "referenced files all exist")
}

func TestValidateSpecFile_InvalidSpec(t *testing.T) {
	dir := t.TempDir()

	specPath := filepath.Join(dir, "spec.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(invalidSpecYAML), 0644))

	specErrs, _, err := ValidateSpecFile(specPath)
	require.NoError(t, err)
	require.NotEmpty(t, specErrs, "invalid spec should return errors")
}

func TestValidateSpecFile_MissingPrompt(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpecFixture(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "prompts", "classify.txt")))

	specErrs, fileErrs, err := ValidateSpecFile(specPath)
	require.NoError(t, err)
	require.Empty(t, specErrs, "spec itself is valid")

	promptErrs, ok := fileErrs["prompts/classify.txt"]
	require.True(t, ok, "should have errors for the missing prompt")
	require.Contains(t, promptErrs, "file not found")
}

func TestValidateSpecFile_MissingDataset(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpecFixture(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "data", "tickets.csv")))

	_, fileErrs, err := ValidateSpecFile(specPath)
	require.NoError(t, err)

	dataErrs, ok := fileErrs["data/tickets.csv"]
	require.True(t, ok, "should have errors for the missing dataset")
	require.Contains(t, dataErrs, "file not found")
}

func TestValidateSpecFile_EmptyPrompt(t *testing.T) {
	dir := t.TempDir()
	specPath := writeSpecFixture(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "classify.txt"), nil, 0644))

	_, fileErrs, err := ValidateSpecFile(specPath)
	require.NoError(t, err)

	promptErrs, ok := fileErrs["prompts/classify.txt"]
	require.True(t, ok, "should flag the empty prompt")
	require.Contains(t, promptErrs, "file is empty")
}

func TestValidateSpecFile_NotFound(t *testing.T) {
	_, _, err := ValidateSpecFile("/nonexistent/spec.yaml")
	require.Error(t, err)
}

func joinErrs(errs []string) string {
	result := ""
	for _, e := range errs {
		result += e + "\n"
	}
	return result
}
