package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
)

// LoadCSV reads a CSV file and returns rows as records of column to value.
// The first row is treated as headers (column names).
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("csv: %s is empty (no header row)", path)
	}

	headers := rows[0]
	records := make([]Record, 0, len(rows)-1)

	for i, row := range rows[1:] {
		if len(row) != len(headers) {
			return nil, fmt.Errorf("csv: row %d has %d columns, expected %d", i+2, len(row), len(headers))
		}
		rec := make(Record, len(headers))
		for j, h := range headers {
			rec[h] = row[j]
		}
		records = append(records, rec)
	}

	return records, nil
}

// LoadCSVRange reads rows in the given range [start, end] (1-based, inclusive).
// Row 1 is the first data row (after headers); a zero bound leaves that side
// of the range open.
func LoadCSVRange(path string, start, end int) ([]Record, error) {
	allRecords, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	return ApplyRange(allRecords, start, end)
}

// ApplyRange slices records to the 1-based inclusive row range [start, end].
// A zero start or end leaves that side open; end is clamped to the available
// rows and a start beyond them yields an empty slice.
func ApplyRange(records []Record, start, end int) ([]Record, error) {
	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = len(records)
	}
	if start < 1 {
		return nil, fmt.Errorf("dataset: range start must be >= 1, got %d", start)
	}
	if end < start {
		return nil, fmt.Errorf("dataset: range end (%d) must be >= start (%d)", end, start)
	}

	// Clamp end to available rows
	if end > len(records) {
		end = len(records)
	}

	// If start is beyond available rows, return empty
	if start > len(records) {
		return []Record{}, nil
	}

	return records[start-1 : end], nil
}
