package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/droverhq/drover/internal/hooks"
	"github.com/droverhq/drover/internal/utils"
	"gopkg.in/yaml.v3"
)

// RunSpec represents a complete batch run specification
type RunSpec struct {
	SpecIdentity `yaml:",inline"`
	Version      string           `yaml:"version,omitempty"`
	Provider     ProviderConfig   `yaml:"provider"`
	Generation   GenerationConfig `yaml:"generation,omitempty"`
	Steps        []StepConfig     `yaml:"steps"`
	Dataset      DatasetConfig    `yaml:"dataset"`
	Config       Config           `yaml:"run"`
	Hooks        hooks.Config     `yaml:"hooks,omitempty"`
}

type SpecIdentity struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// ProviderConfig selects and configures the completion backend
type ProviderConfig struct {
	Kind    string `yaml:"type" json:"kind"`
	ModelID string `yaml:"model" json:"model_id"`
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
}

// GenerationConfig holds the sampling parameters sent with every request
type GenerationConfig struct {
	SystemMessage string  `yaml:"system_message,omitempty" json:"system_message,omitempty"`
	Temperature   float64 `yaml:"temperature" json:"temperature"`
	MaxTokens     int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// StepConfig is one link of the prompting chain. Steps execute in order
// against a shared conversation: each step appends its rendered prompt as a
// user message and the model reply as an assistant message.
type StepConfig struct {
	PromptPath string            `yaml:"prompt" json:"prompt_path"`
	Identifier string            `yaml:"name,omitempty" json:"identifier,omitempty"`
	Processors []ProcessorConfig `yaml:"processors,omitempty" json:"processors,omitempty"`
}

// ProcessorConfig defines a post-processor applied to a step's reply
type ProcessorConfig struct {
	Kind       ProcessorKind  `yaml:"type" json:"kind"`
	Identifier string         `yaml:"name" json:"identifier"`
	Parameters map[string]any `yaml:"config,omitempty" json:"parameters,omitempty"`
}

// DatasetConfig locates and shapes the input records
type DatasetConfig struct {
	Path     string `yaml:"path" json:"path"`
	Format   string `yaml:"format,omitempty" json:"format,omitempty"`
	StartRow int    `yaml:"start_row,omitempty" json:"start_row,omitempty"`
	EndRow   int    `yaml:"end_row,omitempty" json:"end_row,omitempty"`
	Shuffle  bool   `yaml:"shuffle,omitempty" json:"shuffle,omitempty"`
	Sample   int    `yaml:"sample,omitempty" json:"sample,omitempty"`
	Seed     int64  `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Config controls execution behavior
type Config struct {
	CheckpointPath string `yaml:"checkpoint,omitempty" json:"checkpoint_path,omitempty"`
	OutputPath     string `yaml:"output,omitempty" json:"output_path,omitempty"`
	SaveEvery      int    `yaml:"save_every" json:"save_every"`
	Concurrent     bool   `yaml:"parallel" json:"concurrent"`
	Workers        int    `yaml:"max_workers,omitempty" json:"workers,omitempty"`
	StopOnError    bool   `yaml:"fail_fast,omitempty" json:"stop_on_error,omitempty"`
	MaxAttempts    int    `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	DelayMs        int    `yaml:"delay_ms,omitempty" json:"delay_ms,omitempty"`
	TimeoutSec     int    `yaml:"timeout_seconds,omitempty" json:"timeout_sec,omitempty"`
	Budget         int    `yaml:"budget,omitempty" json:"budget,omitempty"`
	TranscriptDir  string `yaml:"transcripts,omitempty" json:"transcript_dir,omitempty"`
	Compress       bool   `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// Provider kinds understood by the CLI.
const (
	ProviderOpenAI  = "openai"
	ProviderCopilot = "copilot"
	ProviderMock    = "mock"
)

// Defaults applied by LoadRunSpec when the spec leaves a field unset.
const (
	DefaultSystemMessage = "You are a helpful assistant."
	DefaultMaxTokens     = 1024
	DefaultSaveEvery     = 50
	DefaultTimeoutSec    = 300
)

// LoadRunSpec loads a spec from a YAML file
func LoadRunSpec(path string) (*RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var spec RunSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}

	spec.applyDefaults()

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return &spec, nil
}

func (s *RunSpec) applyDefaults() {
	if s.Generation.SystemMessage == "" {
		s.Generation.SystemMessage = DefaultSystemMessage
	}
	if s.Generation.MaxTokens == 0 {
		s.Generation.MaxTokens = DefaultMaxTokens
	}
	if s.Config.SaveEvery == 0 {
		s.Config.SaveEvery = DefaultSaveEvery
	}
	if s.Config.TimeoutSec == 0 {
		s.Config.TimeoutSec = DefaultTimeoutSec
	}

	for i := range s.Steps {
		if s.Steps[i].Identifier == "" {
			s.Steps[i].Identifier = stepNameFromPath(s.Steps[i].PromptPath)
		}
	}
}

// Validate checks that the spec is valid
func (s *RunSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	switch s.Provider.Kind {
	case ProviderOpenAI, ProviderCopilot, ProviderMock:
	case "":
		return fmt.Errorf("provider.type is required")
	default:
		return fmt.Errorf("provider.type %q is not one of openai, copilot, mock", s.Provider.Kind)
	}
	if s.Provider.Kind != ProviderMock && s.Provider.ModelID == "" {
		return fmt.Errorf("provider.model is required for provider type %q", s.Provider.Kind)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, step := range s.Steps {
		if step.PromptPath == "" {
			return fmt.Errorf("steps[%d].prompt is required", i)
		}
	}
	if s.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	if s.Config.SaveEvery < 1 {
		return fmt.Errorf("save_every must be at least 1, got %d", s.Config.SaveEvery)
	}
	if s.Config.TimeoutSec < 1 {
		return fmt.Errorf("timeout_seconds must be at least 1, got %d", s.Config.TimeoutSec)
	}
	if s.Config.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative, got %d", s.Config.MaxAttempts)
	}
	if s.Config.Budget < 0 {
		return fmt.Errorf("budget cannot be negative, got %d", s.Config.Budget)
	}
	if s.Dataset.Sample < 0 {
		return fmt.Errorf("dataset.sample cannot be negative, got %d", s.Dataset.Sample)
	}
	if s.Generation.Temperature < 0 || s.Generation.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", s.Generation.Temperature)
	}
	if seen := duplicateStepName(s.Steps); seen != "" {
		return fmt.Errorf("duplicate step name %q", seen)
	}
	return nil
}

// StepNames returns the resolved step identifiers in chain order.
func (s *RunSpec) StepNames() []string {
	names := make([]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		names = append(names, step.Identifier)
	}
	return names
}

// ResolvePromptPaths returns absolute prompt paths, resolving relative
// entries against basePath (normally the spec file's directory).
func (s *RunSpec) ResolvePromptPaths(basePath string) []string {
	paths := make([]string, 0, len(s.Steps))
	for _, step := range s.Steps {
		paths = append(paths, step.PromptPath)
	}
	return utils.ResolvePaths(paths, basePath)
}

func stepNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func duplicateStepName(steps []StepConfig) string {
	seen := map[string]bool{}
	for _, step := range steps {
		if seen[step.Identifier] {
			return step.Identifier
		}
		seen[step.Identifier] = true
	}
	return ""
}
