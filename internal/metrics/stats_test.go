package metrics

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 5.0},
		{"multiple", []float64{1, 2, 3, 4, 5}, 3.0},
		{"all_same", []float64{7, 7, 7}, 7.0},
		{"negative", []float64{-2, 0, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mean(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Mean(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestVariance(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 0},
		{"uniform", []float64{3, 3, 3}, 0},
		{"simple", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 4.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Variance(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Variance(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		expect float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5.0}, 0},
		{"simple", []float64{2, 4, 4, 4, 5, 5, 7, 9}, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StdDev(tt.input)
			if !approxEqual(got, tt.expect) {
				t.Errorf("StdDev(%v) = %f, want %f", tt.input, got, tt.expect)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		p      float64
		expect float64
	}{
		{"empty", nil, 95, 0},
		{"single", []float64{5.0}, 95, 5.0},
		{"median", []float64{1, 2, 3, 4, 5}, 50, 3.0},
		{"p95_of_100", hundred(), 95, 95},
		{"p100", []float64{1, 2, 3}, 100, 3},
		{"unsorted_input", []float64{9, 1, 5}, 50, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.input, tt.p)
			if !approxEqual(got, tt.expect) {
				t.Errorf("Percentile(%v, %v) = %f, want %f", tt.input, tt.p, got, tt.expect)
			}
		})
	}
}

func TestPercentile_DoesNotMutateInput(t *testing.T) {
	input := []float64{3, 1, 2}
	Percentile(input, 50)
	if input[0] != 3 || input[1] != 1 || input[2] != 2 {
		t.Errorf("input was reordered: %v", input)
	}
}

func hundred() []float64 {
	vals := make([]float64, 100)
	for i := range vals {
		vals[i] = float64(i + 1)
	}
	return vals
}
