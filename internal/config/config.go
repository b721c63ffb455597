package config

import (
	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/utils"
)

// RunConfig bundles a parsed spec with the environment a run executes in:
// where the spec lives, where the data comes from, and where checkpoint,
// output and transcript files go. Values set by options win over the
// corresponding spec fields; relative spec paths resolve against SpecDir.
type RunConfig struct {
	spec           *models.RunSpec
	specDir        string
	dataPath       string
	checkpointPath string
	outputPath     string
	transcriptDir  string
	verbose        bool
	overwrite      bool
	retryFailed    bool
}

// Option mutates a RunConfig during construction.
type Option func(*RunConfig)

// NewRunConfig builds a RunConfig from a spec and options.
// Passing a nil option panics.
func NewRunConfig(spec *models.RunSpec, opts ...Option) *RunConfig {
	cfg := &RunConfig{spec: spec}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithSpecDir sets the directory the spec file was loaded from. Relative
// dataset, prompt, checkpoint and output paths resolve against it.
func WithSpecDir(dir string) Option {
	return func(c *RunConfig) { c.specDir = dir }
}

// WithDataPath overrides the spec's dataset path.
func WithDataPath(path string) Option {
	return func(c *RunConfig) { c.dataPath = path }
}

// WithCheckpointPath overrides the spec's checkpoint path.
func WithCheckpointPath(path string) Option {
	return func(c *RunConfig) { c.checkpointPath = path }
}

// WithOutputPath overrides the spec's output path.
func WithOutputPath(path string) Option {
	return func(c *RunConfig) { c.outputPath = path }
}

// WithTranscriptDir overrides the spec's transcript directory.
func WithTranscriptDir(dir string) Option {
	return func(c *RunConfig) { c.transcriptDir = dir }
}

// WithVerbose enables verbose progress output.
func WithVerbose(verbose bool) Option {
	return func(c *RunConfig) { c.verbose = verbose }
}

// WithOverwrite discards any existing checkpoint instead of resuming.
func WithOverwrite(overwrite bool) Option {
	return func(c *RunConfig) { c.overwrite = overwrite }
}

// WithRetryFailed drops failed records from a resumed checkpoint so they
// are attempted again.
func WithRetryFailed(retry bool) Option {
	return func(c *RunConfig) { c.retryFailed = retry }
}

func (c *RunConfig) Spec() *models.RunSpec { return c.spec }
func (c *RunConfig) SpecDir() string       { return c.specDir }
func (c *RunConfig) Verbose() bool         { return c.verbose }
func (c *RunConfig) Overwrite() bool       { return c.overwrite }
func (c *RunConfig) RetryFailed() bool     { return c.retryFailed }

// DataPath returns the effective dataset path: the override when set,
// otherwise the spec's dataset path resolved against SpecDir.
func (c *RunConfig) DataPath() string {
	if c.dataPath != "" {
		return c.dataPath
	}
	if c.spec == nil {
		return ""
	}
	return utils.ResolvePath(c.spec.Dataset.Path, c.specDir)
}

// CheckpointPath returns the effective checkpoint path. When neither an
// override nor a spec value is present, it derives <output>.checkpoint.json
// next to the output file, so checkpointing is on by default.
func (c *RunConfig) CheckpointPath() string {
	if c.checkpointPath != "" {
		return c.checkpointPath
	}
	if c.spec != nil && c.spec.Config.CheckpointPath != "" {
		return utils.ResolvePath(c.spec.Config.CheckpointPath, c.specDir)
	}
	if out := c.OutputPath(); out != "" {
		return out + ".checkpoint.json"
	}
	return ""
}

// OutputPath returns the effective results path.
func (c *RunConfig) OutputPath() string {
	if c.outputPath != "" {
		return c.outputPath
	}
	if c.spec == nil {
		return ""
	}
	return utils.ResolvePath(c.spec.Config.OutputPath, c.specDir)
}

// TranscriptDir returns the effective transcript directory, empty when
// transcripts are disabled.
func (c *RunConfig) TranscriptDir() string {
	if c.transcriptDir != "" {
		return c.transcriptDir
	}
	if c.spec == nil {
		return ""
	}
	return utils.ResolvePath(c.spec.Config.TranscriptDir, c.specDir)
}

// PromptPaths returns the chain's prompt files resolved against SpecDir.
func (c *RunConfig) PromptPaths() []string {
	if c.spec == nil {
		return nil
	}
	return c.spec.ResolvePromptPaths(c.specDir)
}
