package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"test", 1},
		{"testing", 2},
		{"The quick brown fox jumps over the lazy dog.", 11},
		{string(make([]byte, 100)), 25},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, Estimate(tt.input), "Estimate(%q)", tt.input)
	}
}

func TestEstimatingCounter(t *testing.T) {
	var counter Counter = NewEstimatingCounter()
	require.Equal(t, 2, counter.Count("testing"))
	require.Equal(t, 0, counter.Count(""))
}

func TestEstimateConversation(t *testing.T) {
	require.Equal(t, 0, EstimateConversation(nil))
	require.Equal(t, 2*(1+MessageOverheadTokens), EstimateConversation([]string{"test", "test"}))
}

func TestRunEstimate(t *testing.T) {
	var e RunEstimate
	e.Records = 2
	e.Add(100, 64)
	e.Add(120, 64)

	require.Equal(t, 2, e.Requests)
	require.Equal(t, 220, e.InputTokens)
	require.Equal(t, 128, e.OutputCeiling)
	require.Equal(t, 348, e.Total())
}
