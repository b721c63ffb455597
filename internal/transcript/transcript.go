// Package transcript persists the full provider exchange for each record,
// so a reply can be inspected after the run without re-sending anything.
package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/droverhq/drover/internal/models"
	"github.com/droverhq/drover/internal/providers"
	"github.com/klauspost/compress/gzip"
)

// sanitize replaces characters that are unsafe in filenames.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// Turn is one message of the conversation, in the order it was sent to or
// received from the provider.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RecordTranscript is the full exchange for one record.
type RecordTranscript struct {
	RunID        string              `json:"run_id"`
	RecordIndex  int                 `json:"record_index"`
	Status       models.Status       `json:"status"`
	WrittenAt    time.Time           `json:"written_at"`
	DurationMs   int64               `json:"duration_ms"`
	Conversation []Turn              `json:"conversation"`
	Steps        []models.StepResult `json:"steps,omitempty"`
	Usage        models.UsageDigest  `json:"usage"`
	ErrorMsg     string              `json:"error_msg,omitempty"`
}

// Filename returns the transcript filename for a record. Re-running a
// record within the same run overwrites its earlier transcript.
func Filename(runID string, index int, compress bool) string {
	name := fmt.Sprintf("%s-record-%04d.json", sanitizeName(runID), index)
	if compress {
		name += ".gz"
	}
	return name
}

// Writer persists record transcripts into a directory. A nil Writer
// discards everything, so callers can pass the configured value through
// without checking whether transcripts are enabled.
type Writer struct {
	dir      string
	runID    string
	compress bool
}

// NewWriter returns a Writer for dir, or nil when dir is empty.
func NewWriter(dir, runID string, compress bool) *Writer {
	if dir == "" {
		return nil
	}
	return &Writer{dir: dir, runID: runID, compress: compress}
}

// Write serializes the transcript for one record and writes it to the
// directory, gzip-compressed when configured. Returns the written path.
func (w *Writer) Write(outcome *models.RecordOutcome, conversation []providers.Message) (string, error) {
	if w == nil {
		return "", nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcript dir: %w", err)
	}

	data, err := json.MarshalIndent(build(w.runID, outcome, conversation), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}

	path := filepath.Join(w.dir, Filename(w.runID, outcome.Index, w.compress))
	if w.compress {
		err = writeGzip(path, data)
	} else {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		return "", fmt.Errorf("write transcript: %w", err)
	}
	return path, nil
}

// Read loads a transcript written by Write, transparently decompressing
// .gz files.
func Read(path string) (*RecordTranscript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		defer zr.Close() //nolint:errcheck
		r = zr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	var t RecordTranscript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return &t, nil
}

func build(runID string, outcome *models.RecordOutcome, conversation []providers.Message) *RecordTranscript {
	turns := make([]Turn, 0, len(conversation))
	for _, m := range conversation {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}

	return &RecordTranscript{
		RunID:        runID,
		RecordIndex:  outcome.Index,
		Status:       outcome.Status,
		WrittenAt:    time.Now().UTC(),
		DurationMs:   outcome.DurationMs,
		Conversation: turns,
		Steps:        outcome.Steps,
		Usage:        outcome.Usage,
		ErrorMsg:     outcome.ErrorMsg,
	}
}

func writeGzip(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	zw := gzip.NewWriter(f)
	if _, err := zw.Write(data); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}
