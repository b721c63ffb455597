package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	copilot "github.com/github/copilot-sdk/go"

	"github.com/droverhq/drover/internal/utils"
)

// CopilotProvider implements Provider using the GitHub Copilot CLI. The
// CLI keeps conversation state inside its own sessions, so each call
// opens a fresh session and replays the accumulated turns as one prompt.
type CopilotProvider struct {
	client copilotClient

	startOnce sync.Once
}

type CopilotOptions struct {
	NewClient func(clientOptions *copilot.ClientOptions) copilotClient
}

func NewCopilotProvider(options *CopilotOptions) *CopilotProvider {
	clientOptions := &copilot.ClientOptions{
		LogLevel:  "error",
		AutoStart: copilot.Bool(false),
	}

	var client copilotClient
	if options == nil || options.NewClient == nil {
		client = newCopilotClient(clientOptions)
	} else {
		client = options.NewClient(clientOptions)
	}

	return &CopilotProvider{client: client}
}

func (p *CopilotProvider) Name() string { return "copilot" }

func (p *CopilotProvider) Complete(ctx context.Context, req *Request) (*Response, error) {
	var startErr error

	p.startOnce.Do(func() {
		// NOTE: this is a workaround, copilot client has an 'autostart' feature, but it runs into issues
		// when it tries to autostart from separate goroutines.
		startErr = p.client.Start(ctx)
	})

	if startErr != nil {
		return nil, fmt.Errorf("copilot failed to start: %w", startErr)
	}

	session, err := p.client.CreateSession(ctx, &copilot.SessionConfig{
		Model:               req.Model,
		OnPermissionRequest: allowAllTools,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	collector := newReplyCollector()

	unsubscribe := session.On(collector.On)
	defer unsubscribe()

	unsubscribe = session.On(utils.SessionToSlog)
	defer unsubscribe()

	_, err = session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: flattenPrompt(req.Messages),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Provider: "copilot", Message: err.Error()}
	}
	if msg := collector.ErrorMessage(); msg != "" {
		return nil, &Error{Provider: "copilot", Message: msg}
	}

	slog.Debug("copilot session complete", "session_id", session.SessionID())

	return &Response{
		Content:      collector.Reply(),
		FinishReason: "stop",
	}, nil
}

func (p *CopilotProvider) Close() error {
	return p.client.Stop()
}

// flattenPrompt renders a conversation as a single prompt. A lone user
// turn passes through untouched; multi-turn conversations become a
// transcript with role prefixes.
func flattenPrompt(messages []Message) string {
	var system string
	var turns []Message

	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = msg.Content
			continue
		}
		turns = append(turns, msg)
	}

	var b strings.Builder
	if system != "" {
		b.WriteString(system)
		b.WriteString("\n\n")
	}

	if len(turns) == 1 {
		b.WriteString(turns[0].Content)
		return b.String()
	}

	for _, turn := range turns {
		if turn.Role == RoleAssistant {
			b.WriteString("Assistant: ")
		} else {
			b.WriteString("User: ")
		}
		b.WriteString(turn.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSuffix(b.String(), "\n\n")
}

func allowAllTools(request copilot.PermissionRequest, invocation copilot.PermissionInvocation) (copilot.PermissionRequestResult, error) {
	// value for 'Kind' came from the permissions_test.go in the Copilot SDK.
	return copilot.PermissionRequestResult{Kind: "approved"}, nil
}
