package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Record represents a single input record with field name to value mapping.
type Record map[string]string

// Format identifiers accepted in a spec's dataset block.
const (
	FormatCSV   = "csv"
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// Load reads records from path. When format is empty it is inferred from
// the file extension.
func Load(path, format string) ([]Record, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = FormatCSV
		case ".jsonl", ".ndjson":
			format = FormatJSONL
		case ".json":
			format = FormatJSON
		default:
			return nil, fmt.Errorf("dataset: cannot infer format of %s (use csv, json or jsonl)", path)
		}
	}

	switch format {
	case FormatCSV:
		return LoadCSV(path)
	case FormatJSON:
		return LoadJSON(path)
	case FormatJSONL:
		return LoadJSONL(path)
	default:
		return nil, fmt.Errorf("dataset: unknown format %q", format)
	}
}

// LoadJSON reads a JSON array of records. Array elements may be objects or
// bare strings; a string element becomes {"text": element}.
func LoadJSON(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}

	records := make([]Record, 0, len(raw))
	for i, el := range raw {
		rec, err := toRecord(el)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s element %d: %w", path, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadJSONL reads newline-delimited JSON objects, one record per line.
// Blank lines are skipped.
func LoadJSONL(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			return nil, fmt.Errorf("dataset: %s line %d: %w", path, lineNo, err)
		}
		rec, err := toRecord(raw)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s line %d: %w", path, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	return records, nil
}

// toRecord converts a decoded JSON element into a Record. Strings become
// {"text": s}; object values that are not strings are stringified (numbers
// without a trailing ".0" for integral values, nested structures as compact
// JSON).
func toRecord(el any) (Record, error) {
	switch v := el.(type) {
	case string:
		return Record{"text": v}, nil
	case map[string]any:
		rec := make(Record, len(v))
		for k, val := range v {
			rec[k] = stringifyValue(val)
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported element type %T (want object or string)", el)
	}
}

func stringifyValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	}
}

// Permutation returns a seeded random ordering of n indices. The same
// n and seed always produce the same permutation.
func Permutation(n int, seed int64) []int {
	r := rand.New(rand.NewSource(seed)) //nolint:gosec // reproducible shuffling, not crypto
	return r.Perm(n)
}

// SampleIndices returns k distinct indices from [0, n), sorted ascending.
// When k >= n every index is returned.
func SampleIndices(n, k int, seed int64) []int {
	if k >= n {
		k = n
	}
	perm := Permutation(n, seed)
	picked := append([]int(nil), perm[:k]...)
	sort.Ints(picked)
	return picked
}

// Reorder projects records through order: result[i] = records[order[i]].
// Fails when an index is out of range, which indicates the order was
// computed against a different dataset.
func Reorder(records []Record, order []int) ([]Record, error) {
	out := make([]Record, 0, len(order))
	for i, idx := range order {
		if idx < 0 || idx >= len(records) {
			return nil, fmt.Errorf("dataset: order[%d] = %d out of range for %d records", i, idx, len(records))
		}
		out = append(out, records[idx])
	}
	return out, nil
}
