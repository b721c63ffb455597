// Package reporting renders run outcomes for people: a stdout summary,
// an aligned per-record table, and a markdown report for CI surfaces.
package reporting

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/droverhq/drover/internal/metrics"
	"github.com/droverhq/drover/internal/models"
)

// formatDuration formats a duration in a consistent, human-readable way.
// This ensures stable output regardless of Go version changes.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.String()
}

// FormatSummary renders the end-of-run report printed to stdout.
func FormatSummary(outcome *models.RunOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("=" + strings.Repeat("=", 50) + "\n")
	b.WriteString(" RUN RESULTS\n")
	b.WriteString("=" + strings.Repeat("=", 50) + "\n\n")

	b.WriteString(fmt.Sprintf("Spec:           %s\n", outcome.SpecName))
	b.WriteString(fmt.Sprintf("Run ID:         %s\n", outcome.RunID))
	b.WriteString(fmt.Sprintf("Model:          %s\n", outcome.Setup.ModelID))
	b.WriteString(fmt.Sprintf("Total Records:  %d\n", d.TotalRecords))
	b.WriteString(fmt.Sprintf("Completed:      %d\n", d.Completed))
	b.WriteString(fmt.Sprintf("Failed:         %d\n", d.Failed))
	b.WriteString(fmt.Sprintf("Pending:        %d\n", d.Pending))
	b.WriteString(fmt.Sprintf("Success Rate:   %.1f%%\n", d.SuccessRate*100))
	b.WriteString(fmt.Sprintf("Tokens:         %d in, %d out\n", d.TokensIn, d.TokensOut))
	b.WriteString(fmt.Sprintf("Mean Latency:   %.0fms (stddev %.0fms)\n", d.MeanLatencyMs, d.StdDevLatencyMs))
	if lat := completedLatencies(outcome.Records); len(lat) > 0 {
		b.WriteString(fmt.Sprintf("P95 Latency:    %.0fms\n", metrics.Percentile(lat, 95)))
	}
	b.WriteString(fmt.Sprintf("Checkpoints:    %d\n", d.Checkpoints))
	b.WriteString(fmt.Sprintf("Duration:       %s\n", formatDuration(duration)))

	if d.Failed > 0 {
		b.WriteString("\nFailed Records:\n")
		for _, rec := range outcome.Records {
			if rec.Status != models.StatusFailed {
				continue
			}
			b.WriteString(fmt.Sprintf("  - record %d (attempts: %d): %s\n",
				rec.Index, rec.Attempts, rec.ErrorMsg))
		}
	}

	if d.Pending > 0 {
		b.WriteString(fmt.Sprintf("\n%d records still pending; `drover resume` picks up where this run stopped.\n", d.Pending))
	}

	return b.String()
}

// Output column bounds for the per-record table.
const (
	minOutputWidth = 12
	maxOutputWidth = 48
)

// FormatRecordTable renders a per-record breakdown. Columns are padded by
// display width so wide characters in model output keep the table straight.
func FormatRecordTable(outcome *models.RunOutcome) string {
	const colIndex = 7
	const colStatus = 10
	const colAttempts = 9
	const colDuration = 10

	outputWidth := minOutputWidth
	for _, rec := range outcome.Records {
		if w := runewidth.StringWidth(recordPreview(&rec)); w > outputWidth {
			outputWidth = w
		}
	}
	if outputWidth > maxOutputWidth {
		outputWidth = maxOutputWidth
	}

	totalWidth := colIndex + colStatus + colAttempts + colDuration + outputWidth + 8 // 4 gaps of 2 spaces

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s  %s  %s  %s  %s\n",
		padRight("Record", colIndex),
		padRight("Status", colStatus),
		padRight("Attempts", colAttempts),
		padRight("Duration", colDuration),
		"Output"))
	b.WriteString(strings.Repeat("─", totalWidth) + "\n")

	for _, rec := range outcome.Records {
		b.WriteString(fmt.Sprintf("%s  %s  %s  %s  %s\n",
			padRight(fmt.Sprintf("%d", rec.Index), colIndex),
			padRight(string(rec.Status), colStatus),
			padRight(fmt.Sprintf("%d", rec.Attempts), colAttempts),
			padRight(fmt.Sprintf("%dms", rec.DurationMs), colDuration),
			runewidth.Truncate(recordPreview(&rec), outputWidth, "…")))
	}

	return b.String()
}

// completedLatencies collects per-record durations for the same records
// the digest's mean covers.
func completedLatencies(records []models.RecordOutcome) []float64 {
	var out []float64
	for _, rec := range records {
		if rec.Status == models.StatusCompleted {
			out = append(out, float64(rec.DurationMs))
		}
	}
	return out
}

// recordPreview picks the one-line cell text for a record: the error for
// failures, the final reply otherwise.
func recordPreview(rec *models.RecordOutcome) string {
	text := rec.FinalContent()
	if rec.Status == models.StatusFailed {
		text = rec.ErrorMsg
	}
	return strings.ReplaceAll(text, "\n", " ")
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

// FormatMarkdown formats a RunOutcome as a markdown report for CI job
// summaries and PR comments.
func FormatMarkdown(outcome *models.RunOutcome) string {
	var b strings.Builder

	d := outcome.Digest
	duration := time.Duration(d.DurationMs) * time.Millisecond

	b.WriteString("## Drover Run Results\n\n")

	statusIcon := "✅ Completed"
	if d.Failed > 0 {
		statusIcon = "❌ Failed records"
	}
	if d.Pending > 0 {
		statusIcon = "⚠ Incomplete"
	}

	b.WriteString(fmt.Sprintf("**Status:** %s | **Model:** %s | **Duration:** %s\n\n",
		statusIcon, outcome.Setup.ModelID, formatDuration(duration)))

	b.WriteString(fmt.Sprintf("- **Records:** %d total, %d completed, %d failed, %d pending\n",
		d.TotalRecords, d.Completed, d.Failed, d.Pending))
	b.WriteString(fmt.Sprintf("- **Success Rate:** %.1f%%\n", d.SuccessRate*100))
	b.WriteString(fmt.Sprintf("- **Tokens:** %d in, %d out\n", d.TokensIn, d.TokensOut))
	b.WriteString(fmt.Sprintf("- **Latency:** %.0fms mean (stddev %.0fms)\n\n", d.MeanLatencyMs, d.StdDevLatencyMs))

	if d.Failed > 0 {
		b.WriteString("### Failed Records\n\n")
		b.WriteString("| Record | Attempts | Error |\n")
		b.WriteString("|--------|----------|-------|\n")
		for _, rec := range outcome.Records {
			if rec.Status != models.StatusFailed {
				continue
			}
			b.WriteString(fmt.Sprintf("| %d | %d | %s |\n",
				rec.Index, rec.Attempts, markdownCell(rec.ErrorMsg)))
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	b.WriteString(fmt.Sprintf("**Spec:** %s | **Run:** %s | **Provider:** %s\n",
		outcome.SpecName, outcome.RunID, outcome.Setup.ProviderKind))

	return b.String()
}

// markdownCell makes a string safe inside a markdown table cell.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
