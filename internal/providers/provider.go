package providers

import (
	"context"
)

// Chat roles used in Request messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single completion request. Messages carries the full
// conversation so far, system message first; the provider answers the
// final user turn.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response is the provider's reply to a Request.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Usage reports token consumption for one request, when the backend
// provides it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is the interface for completion backends.
type Provider interface {
	// Name returns the provider identifier (e.g. "openai")
	Name() string

	// Complete sends one request and returns the model's reply
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases any resources held by the provider
	Close() error
}

// LastUserMessage returns the content of the final user turn, or "" when
// the request has none.
func (r *Request) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == RoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}
