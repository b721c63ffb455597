// Package tokens approximates token usage so runs can be sized before any
// request is sent.
package tokens

import (
	"math"
)

const charsPerToken = 4

// MessageOverheadTokens approximates the per-message framing cost of chat
// completion protocols.
const MessageOverheadTokens = 3

// Counter counts tokens in text.
type Counter interface {
	Count(text string) int
}

// EstimatingCounter approximates token count as ~4 characters per token.
type EstimatingCounter struct{}

func NewEstimatingCounter() *EstimatingCounter {
	return &EstimatingCounter{}
}

func (*EstimatingCounter) Count(text string) int {
	return Estimate(text)
}

func Estimate(text string) int {
	return int(math.Ceil(float64(len(text)) / float64(charsPerToken)))
}

// EstimateConversation sums the estimate for each message plus framing
// overhead per message.
func EstimateConversation(messages []string) int {
	total := 0
	for _, m := range messages {
		total += Estimate(m) + MessageOverheadTokens
	}
	return total
}

// RunEstimate is the projected cost of a batch run before it starts.
type RunEstimate struct {
	Records       int
	Requests      int
	InputTokens   int
	OutputCeiling int
}

// Add folds one request's projected usage into the estimate.
func (e *RunEstimate) Add(inputTokens, maxOutput int) {
	e.Requests++
	e.InputTokens += inputTokens
	e.OutputCeiling += maxOutput
}

// Total returns the worst-case token spend: all input plus every request
// running to its output cap.
func (e *RunEstimate) Total() int {
	return e.InputTokens + e.OutputCeiling
}
