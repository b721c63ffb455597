package providers

import (
	"strings"

	copilot "github.com/github/copilot-sdk/go"
)

const sessionFailedUnknown = "session failed with unknown error"

// replyCollector gathers the assistant's text from session events. Pass
// its On method to [copilot.Session.On].
type replyCollector struct {
	parts    []string
	errorMsg string
}

func newReplyCollector() *replyCollector {
	return &replyCollector{}
}

func (c *replyCollector) On(event copilot.SessionEvent) {
	switch event.Type {
	case copilot.AssistantMessage, copilot.AssistantMessageDelta:
		if event.Data.Content != nil {
			c.parts = append(c.parts, *event.Data.Content)
		}

	case copilot.SessionError:
		if event.Data.Message == nil || *event.Data.Message == "" {
			c.errorMsg = sessionFailedUnknown
		} else {
			c.errorMsg = *event.Data.Message
		}
	}
}

// Reply returns the assistant text collected so far, joined in arrival
// order.
func (c *replyCollector) Reply() string {
	var b strings.Builder
	for _, part := range c.parts {
		b.WriteString(part)
	}
	return b.String()
}

// ErrorMessage returns the session error message, if any.
func (c *replyCollector) ErrorMessage() string {
	return c.errorMsg
}
