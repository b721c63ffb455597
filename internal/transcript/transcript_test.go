package transcript

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/providers"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"simple", "simple"},
		{"Run With Spaces", "run-with-spaces"},
		{"run/with/slashes", "runwithslashes"},
		{"special@chars!", "specialchars"},
		{"", "unnamed"},
		{"  padded  ", "padded"},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			got := sanitizeName(tt.input)
			if got != tt.want {
				t.Errorf("sanitizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFilename(t *testing.T) {
	got := Filename("My Run", 3, false)
	want := "my-run-record-0003.json"
	if got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}

	got = Filename("run-abc123", 41, true)
	want = "run-abc123-record-0041.json.gz"
	if got != want {
		t.Errorf("Filename() = %q, want %q", got, want)
	}
}

func testOutcome() *models.RecordOutcome {
	return &models.RecordOutcome{
		Index:      3,
		Status:     models.StatusCompleted,
		Attempts:   1,
		DurationMs: 1200,
		Steps: []models.StepResult{
			{Step: "classify", Content: "positive", Parsed: "positive"},
		},
		Usage: models.UsageDigest{TokensIn: 50, TokensOut: 10, TokensTotal: 60},
	}
}

func testConversation() []providers.Message {
	return []providers.Message{
		{Role: providers.RoleSystem, Content: "You are terse."},
		{Role: providers.RoleUser, Content: "Classify: great movie"},
		{Role: providers.RoleAssistant, Content: "positive"},
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "run-1", false)

	path, err := w.Write(testOutcome(), testConversation())
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if filepath.Base(path) != "run-1-record-0003.json" {
		t.Errorf("path = %q, want base %q", path, "run-1-record-0003.json")
	}

	decoded, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}

	if decoded.RunID != "run-1" {
		t.Errorf("RunID = %q, want %q", decoded.RunID, "run-1")
	}
	if decoded.RecordIndex != 3 {
		t.Errorf("RecordIndex = %d, want %d", decoded.RecordIndex, 3)
	}
	if decoded.Status != models.StatusCompleted {
		t.Errorf("Status = %q, want %q", decoded.Status, models.StatusCompleted)
	}
	if decoded.DurationMs != 1200 {
		t.Errorf("DurationMs = %d, want %d", decoded.DurationMs, 1200)
	}
	if len(decoded.Conversation) != 3 {
		t.Fatalf("len(Conversation) = %d, want %d", len(decoded.Conversation), 3)
	}
	if decoded.Conversation[0].Role != "system" {
		t.Errorf("Conversation[0].Role = %q, want %q", decoded.Conversation[0].Role, "system")
	}
	if decoded.Conversation[2].Content != "positive" {
		t.Errorf("Conversation[2].Content = %q, want %q", decoded.Conversation[2].Content, "positive")
	}
	if decoded.Usage.TokensTotal != 60 {
		t.Errorf("Usage.TokensTotal = %d, want %d", decoded.Usage.TokensTotal, 60)
	}
}

func TestWrite_Gzip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "run-1", true)

	path, err := w.Write(testOutcome(), testConversation())
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if filepath.Ext(path) != ".gz" {
		t.Fatalf("path = %q, want .gz extension", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if len(raw) < 2 || raw[0] != 0x1f || raw[1] != 0x8b {
		t.Fatal("file does not start with the gzip magic bytes")
	}

	decoded, err := Read(path)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if decoded.RecordIndex != 3 {
		t.Errorf("RecordIndex = %d, want %d", decoded.RecordIndex, 3)
	}
	if decoded.Steps[0].Content != "positive" {
		t.Errorf("Steps[0].Content = %q, want %q", decoded.Steps[0].Content, "positive")
	}
}

func TestWrite_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	w := NewWriter(dir, "run-2", false)

	path, err := w.Write(testOutcome(), testConversation())
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("transcript file was not created in nested dir: %v", err)
	}
}

func TestNilWriterDiscards(t *testing.T) {
	w := NewWriter("", "run-3", false)
	if w != nil {
		t.Fatal("NewWriter with empty dir should return nil")
	}

	path, err := w.Write(testOutcome(), testConversation())
	if err != nil {
		t.Fatalf("nil Writer.Write() error: %v", err)
	}
	if path != "" {
		t.Errorf("nil Writer.Write() path = %q, want empty", path)
	}
}
