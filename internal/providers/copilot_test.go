package providers

import (
	"context"
	"errors"
	"testing"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/droverhq/drover/internal/utils"
)

func TestCopilotComplete(t *testing.T) {
	ctrl := gomock.NewController(t)
	clientMock := NewMockcopilotClient(ctrl)
	sessionMock := NewMockcopilotSession(ctrl)

	var handlers []copilot.SessionEventHandler

	clientMock.EXPECT().Start(gomock.Any())
	clientMock.EXPECT().CreateSession(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, config *copilot.SessionConfig) (copilotSession, error) {
			require.Equal(t, "gpt-4o-mini", config.Model)
			require.NotNil(t, config.OnPermissionRequest)
			return sessionMock, nil
		})
	clientMock.EXPECT().Stop()

	sessionMock.EXPECT().On(gomock.Any()).Times(2).DoAndReturn(func(h copilot.SessionEventHandler) func() {
		handlers = append(handlers, h)
		return func() {}
	})
	sessionMock.EXPECT().SendAndWait(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, options copilot.MessageOptions) (*copilot.SessionEvent, error) {
			require.Equal(t, "Be brief.\n\nhello?", options.Prompt)

			for _, h := range handlers {
				h(copilot.SessionEvent{Type: copilot.AssistantMessageDelta, Data: copilot.Data{Content: utils.Ptr("Hi ")}})
				h(copilot.SessionEvent{Type: copilot.AssistantMessageDelta, Data: copilot.Data{Content: utils.Ptr("there.")}})
			}
			return &copilot.SessionEvent{}, nil
		})
	sessionMock.EXPECT().SessionID().Return("session-1")

	provider := NewCopilotProvider(&CopilotOptions{
		NewClient: func(clientOptions *copilot.ClientOptions) copilotClient { return clientMock },
	})

	resp, err := provider.Complete(context.Background(), &Request{
		Model: "gpt-4o-mini",
		Messages: []Message{
			{Role: RoleSystem, Content: "Be brief."},
			{Role: RoleUser, Content: "hello?"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "Hi there.", resp.Content)
	require.Equal(t, "stop", resp.FinishReason)

	require.NoError(t, provider.Close())
}

func TestCopilotComplete_SessionError(t *testing.T) {
	ctrl := gomock.NewController(t)
	clientMock := NewMockcopilotClient(ctrl)
	sessionMock := NewMockcopilotSession(ctrl)

	var handlers []copilot.SessionEventHandler

	clientMock.EXPECT().Start(gomock.Any())
	clientMock.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(sessionMock, nil)

	sessionMock.EXPECT().On(gomock.Any()).Times(2).DoAndReturn(func(h copilot.SessionEventHandler) func() {
		handlers = append(handlers, h)
		return func() {}
	})
	sessionMock.EXPECT().SendAndWait(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, options copilot.MessageOptions) (*copilot.SessionEvent, error) {
			for _, h := range handlers {
				h(copilot.SessionEvent{Type: copilot.SessionError, Data: copilot.Data{Message: utils.Ptr("model unavailable")}})
			}
			return &copilot.SessionEvent{}, nil
		})

	provider := NewCopilotProvider(&CopilotOptions{
		NewClient: func(clientOptions *copilot.ClientOptions) copilotClient { return clientMock },
	})

	_, err := provider.Complete(context.Background(), &Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "hello?"}},
	})

	var perr *Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "copilot", perr.Provider)
	require.Equal(t, "model unavailable", perr.Message)
}

func TestCopilotComplete_SendError(t *testing.T) {
	ctrl := gomock.NewController(t)
	clientMock := NewMockcopilotClient(ctrl)
	sessionMock := NewMockcopilotSession(ctrl)

	clientMock.EXPECT().Start(gomock.Any())
	clientMock.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(sessionMock, nil)

	sessionMock.EXPECT().On(gomock.Any()).Times(2).Return(func() {})
	sessionMock.EXPECT().SendAndWait(gomock.Any(), gomock.Any()).Return(nil, errors.New("transport lost"))

	provider := NewCopilotProvider(&CopilotOptions{
		NewClient: func(clientOptions *copilot.ClientOptions) copilotClient { return clientMock },
	})

	_, err := provider.Complete(context.Background(), &Request{
		Model:    "gpt-4o-mini",
		Messages: []Message{{Role: RoleUser, Content: "hello?"}},
	})
	require.ErrorContains(t, err, "transport lost")
	require.False(t, DefaultRetryPolicy().ShouldRetry(err))
}

func TestFlattenPrompt(t *testing.T) {
	tests := []struct {
		Name     string
		Messages []Message
		Expected string
	}{
		{
			Name:     "lone user turn",
			Messages: []Message{{Role: RoleUser, Content: "hello"}},
			Expected: "hello",
		},
		{
			Name: "system plus user",
			Messages: []Message{
				{Role: RoleSystem, Content: "Be brief."},
				{Role: RoleUser, Content: "hello"},
			},
			Expected: "Be brief.\n\nhello",
		},
		{
			Name: "multi turn transcript",
			Messages: []Message{
				{Role: RoleSystem, Content: "Be brief."},
				{Role: RoleUser, Content: "one"},
				{Role: RoleAssistant, Content: "1"},
				{Role: RoleUser, Content: "two"},
			},
			Expected: "Be brief.\n\nUser: one\n\nAssistant: 1\n\nUser: two",
		},
	}

	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			require.Equal(t, tc.Expected, flattenPrompt(tc.Messages))
		})
	}
}
