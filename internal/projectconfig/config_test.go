package projectconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_ReturnsAllDefaults(t *testing.T) {
	cfg := New()

	// Paths
	assertEqual(t, "Paths.Specs", "specs/", cfg.Paths.Specs)
	assertEqual(t, "Paths.Results", "results/", cfg.Paths.Results)
	assertEqual(t, "Paths.Transcripts", "", cfg.Paths.Transcripts)

	// Defaults
	assertEqual(t, "Defaults.Provider", "openai", cfg.Defaults.Provider)
	assertEqual(t, "Defaults.Model", "gpt-4o-mini", cfg.Defaults.Model)
	assertEqual(t, "Defaults.BaseURL", "", cfg.Defaults.BaseURL)
	assertBoolPtr(t, "Defaults.Parallel", false, cfg.Defaults.Parallel)
	assertEqualInt(t, "Defaults.Workers", 4, cfg.Defaults.Workers)
	assertBoolPtr(t, "Defaults.Verbose", false, cfg.Defaults.Verbose)
	assertBoolPtr(t, "Defaults.Compress", false, cfg.Defaults.Compress)
}

func TestLoad_FullConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".drover.yaml", `
paths:
  specs: "jobs/"
  results: "out/"
  transcripts: "out/transcripts/"
defaults:
  provider: mock
  model: test-model
  base_url: "http://localhost:8080/v1"
  parallel: true
  workers: 8
  verbose: true
  compress: true
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	assertEqual(t, "Paths.Specs", "jobs/", cfg.Paths.Specs)
	assertEqual(t, "Paths.Results", "out/", cfg.Paths.Results)
	assertEqual(t, "Paths.Transcripts", "out/transcripts/", cfg.Paths.Transcripts)
	assertEqual(t, "Defaults.Provider", "mock", cfg.Defaults.Provider)
	assertEqual(t, "Defaults.Model", "test-model", cfg.Defaults.Model)
	assertEqual(t, "Defaults.BaseURL", "http://localhost:8080/v1", cfg.Defaults.BaseURL)
	assertBoolPtr(t, "Defaults.Parallel", true, cfg.Defaults.Parallel)
	assertEqualInt(t, "Defaults.Workers", 8, cfg.Defaults.Workers)
	assertBoolPtr(t, "Defaults.Verbose", true, cfg.Defaults.Verbose)
	assertBoolPtr(t, "Defaults.Compress", true, cfg.Defaults.Compress)
}

func TestLoad_PartialConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".drover.yaml", `
defaults:
  provider: copilot
  model: gpt-5
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Overridden
	assertEqual(t, "Defaults.Provider", "copilot", cfg.Defaults.Provider)
	assertEqual(t, "Defaults.Model", "gpt-5", cfg.Defaults.Model)

	// Defaults preserved
	assertEqual(t, "Paths.Specs", "specs/", cfg.Paths.Specs)
	assertEqualInt(t, "Defaults.Workers", 4, cfg.Defaults.Workers)
	assertBoolPtr(t, "Defaults.Parallel", false, cfg.Defaults.Parallel)
}

func TestLoad_MissingFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Should be identical to New()
	defaults := New()
	assertEqual(t, "Defaults.Provider", defaults.Defaults.Provider, cfg.Defaults.Provider)
	assertEqual(t, "Defaults.Model", defaults.Defaults.Model, cfg.Defaults.Model)
	assertEqualInt(t, "Defaults.Workers", defaults.Defaults.Workers, cfg.Defaults.Workers)
	assertEqual(t, "Paths.Results", defaults.Paths.Results, cfg.Paths.Results)
}

func TestLoad_InvalidYAML_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".drover.yaml", `
defaults:
  provider: [not valid yaml
    this is broken
`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load() should return error for invalid YAML")
	}
}

func TestLoad_WalksUpDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".drover.yaml", `
defaults:
  provider: found-it
`)

	child := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(child)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	assertEqual(t, "Defaults.Provider", "found-it", cfg.Defaults.Provider)
	// Other defaults still populated
	assertEqual(t, "Defaults.Model", "gpt-4o-mini", cfg.Defaults.Model)
}

func TestBoolPointerFields(t *testing.T) {
	t.Run("defaults preserved when not set in YAML", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".drover.yaml", `
defaults:
  provider: mock
`)
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		// Parallel absent from the file keeps the default false through merge
		assertBoolPtr(t, "Defaults.Parallel", false, cfg.Defaults.Parallel)
	})

	t.Run("explicitly false", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".drover.yaml", `
defaults:
  parallel: false
  verbose: false
  compress: false
`)
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		assertBoolPtr(t, "Defaults.Parallel", false, cfg.Defaults.Parallel)
		assertBoolPtr(t, "Defaults.Verbose", false, cfg.Defaults.Verbose)
		assertBoolPtr(t, "Defaults.Compress", false, cfg.Defaults.Compress)
	})

	t.Run("explicitly true", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, ".drover.yaml", `
defaults:
  parallel: true
  verbose: true
  compress: true
`)
		cfg, err := Load(dir)
		if err != nil {
			t.Fatalf("Load() error: %v", err)
		}
		assertBoolPtr(t, "Defaults.Parallel", true, cfg.Defaults.Parallel)
		assertBoolPtr(t, "Defaults.Verbose", true, cfg.Defaults.Verbose)
		assertBoolPtr(t, "Defaults.Compress", true, cfg.Defaults.Compress)
	})
}

func TestResolveSpecPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "existing.yaml", "name: x\n")

	cfg := New()
	cfg.Paths.Specs = "jobs/"

	existing := filepath.Join(dir, "existing.yaml")
	if got := cfg.ResolveSpecPath(existing); got != existing {
		t.Errorf("ResolveSpecPath(existing) = %q, want %q", got, existing)
	}
	if got := cfg.ResolveSpecPath("triage"); got != filepath.Join("jobs", "triage.yaml") {
		t.Errorf("ResolveSpecPath(bare name) = %q", got)
	}
	if got := cfg.ResolveSpecPath("triage.yaml"); got != filepath.Join("jobs", "triage.yaml") {
		t.Errorf("ResolveSpecPath(named file) = %q", got)
	}
}

// --- test helpers ---

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertEqual(t *testing.T, field, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}

func assertEqualInt(t *testing.T, field string, want, got int) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %d, want %d", field, got, want)
	}
}

func assertBoolPtr(t *testing.T, field string, want bool, got *bool) {
	t.Helper()
	if got == nil {
		t.Errorf("%s is nil, want *%v", field, want)
		return
	}
	if *got != want {
		t.Errorf("%s = %v, want %v", field, *got, want)
	}
}
