package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockProvider is an in-process Provider for dry runs and tests. By
// default it echoes the final user message; tests can script exact
// replies or failures through ResponseFunc.
type MockProvider struct {
	// ResponseFunc, when set, produces the reply for each call. call is
	// 1-based.
	ResponseFunc func(call int, req *Request) (*Response, error)

	// FailFirst makes the first n calls fail with a 503 before any
	// ResponseFunc runs.
	FailFirst int

	// Latency simulates processing time per call.
	Latency time.Duration

	mu    sync.Mutex
	calls []*Request
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	call := m.record(req)

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if call <= m.FailFirst {
		return nil, &Error{
			Provider: "mock",
			Status:   503,
			Message:  "scripted transient failure",
		}
	}

	if m.ResponseFunc != nil {
		return m.ResponseFunc(call, req)
	}

	content := fmt.Sprintf("Mock response for: %s", req.LastUserMessage())
	return &Response{
		Content:      content,
		FinishReason: "stop",
		Usage: Usage{
			PromptTokens:     promptChars(req) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (promptChars(req) + len(content)) / 4,
		},
	}, nil
}

func (m *MockProvider) Close() error { return nil }

// CallCount returns how many requests the provider has seen.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns a snapshot of every request received, in arrival order.
func (m *MockProvider) Calls() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockProvider) record(req *Request) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *req
	clone.Messages = make([]Message, len(req.Messages))
	copy(clone.Messages, req.Messages)
	m.calls = append(m.calls, &clone)
	return len(m.calls)
}

func promptChars(req *Request) int {
	n := 0
	for _, msg := range req.Messages {
		n += len(msg.Content)
	}
	return n
}
