// Package projectconfig provides the ProjectConfig struct and loader for
// .drover.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for project configuration. New() references them and no
// other code should duplicate them.
const (
	DefaultSpecsDir   = "specs/"
	DefaultResultsDir = "results/"

	DefaultProvider = "openai"
	DefaultModel    = "gpt-4o-mini"
	DefaultWorkers  = 4
)

// PathsConfig holds directory paths for specs, results, and transcripts.
type PathsConfig struct {
	Specs       string `yaml:"specs,omitempty"`
	Results     string `yaml:"results,omitempty"`
	Transcripts string `yaml:"transcripts,omitempty"`
}

// DefaultsConfig holds default execution parameters applied when neither
// the spec nor a CLI flag sets them.
type DefaultsConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
	Parallel *bool  `yaml:"parallel,omitempty"`
	Workers  int    `yaml:"workers,omitempty"`
	Verbose  *bool  `yaml:"verbose,omitempty"`
	Compress *bool  `yaml:"compress,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from .drover.yaml.
type ProjectConfig struct {
	Paths    PathsConfig    `yaml:"paths,omitempty"`
	Defaults DefaultsConfig `yaml:"defaults,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Paths: PathsConfig{
			Specs:   DefaultSpecsDir,
			Results: DefaultResultsDir,
		},
		Defaults: DefaultsConfig{
			Provider: DefaultProvider,
			Model:    DefaultModel,
			Parallel: boolPtr(false),
			Workers:  DefaultWorkers,
			Verbose:  boolPtr(false),
			Compress: boolPtr(false),
		},
	}
}

// Load finds .drover.yaml by walking up from startDir (max 10 levels),
// unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error.
// Real I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found, defaults apply
		}
		return nil, fmt.Errorf("loading .drover.yaml: %w", err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing .drover.yaml: %w", err)
	}

	// Merge file values onto defaults.
	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .drover.yaml (max 10 levels).
// Returns os.ErrNotExist if no config file is found. Propagates real I/O
// errors (e.g. permission denied) instead of silently swallowing them.
func findConfigFile(dir string) ([]byte, error) {
	// Convert to absolute path so filepath.Dir(".") walks correctly.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < 10; i++ {
		p := filepath.Join(dir, ".drover.yaml")
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Paths.Specs != "" {
		dst.Paths.Specs = src.Paths.Specs
	}
	if src.Paths.Results != "" {
		dst.Paths.Results = src.Paths.Results
	}
	if src.Paths.Transcripts != "" {
		dst.Paths.Transcripts = src.Paths.Transcripts
	}

	if src.Defaults.Provider != "" {
		dst.Defaults.Provider = src.Defaults.Provider
	}
	if src.Defaults.Model != "" {
		dst.Defaults.Model = src.Defaults.Model
	}
	if src.Defaults.BaseURL != "" {
		dst.Defaults.BaseURL = src.Defaults.BaseURL
	}
	if src.Defaults.Parallel != nil {
		dst.Defaults.Parallel = src.Defaults.Parallel
	}
	if src.Defaults.Workers != 0 {
		dst.Defaults.Workers = src.Defaults.Workers
	}
	if src.Defaults.Verbose != nil {
		dst.Defaults.Verbose = src.Defaults.Verbose
	}
	if src.Defaults.Compress != nil {
		dst.Defaults.Compress = src.Defaults.Compress
	}
}

// ResolveSpecPath turns a spec argument into a file path. Existing paths
// pass through; bare names resolve to <paths.specs>/<name>.yaml.
func (c *ProjectConfig) ResolveSpecPath(arg string) string {
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	if filepath.Ext(arg) == "" {
		return filepath.Join(c.Paths.Specs, arg+".yaml")
	}
	return filepath.Join(c.Paths.Specs, arg)
}

func boolPtr(b bool) *bool {
	return &b
}
