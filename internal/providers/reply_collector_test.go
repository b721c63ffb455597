package providers

import (
	"testing"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/stretchr/testify/require"

	"github.com/droverhq/drover/internal/utils"
)

func TestReplyCollector(t *testing.T) {
	coll := newReplyCollector()

	coll.On(copilot.SessionEvent{Type: copilot.AssistantMessageDelta, Data: copilot.Data{Content: utils.Ptr("part one ")}})
	coll.On(copilot.SessionEvent{Type: copilot.AssistantMessageDelta, Data: copilot.Data{Content: nil}})
	coll.On(copilot.SessionEvent{Type: copilot.AssistantMessage, Data: copilot.Data{Content: utils.Ptr("part two")}})
	coll.On(copilot.SessionEvent{Type: copilot.SessionIdle})

	require.Equal(t, "part one part two", coll.Reply())
	require.Empty(t, coll.ErrorMessage())
}

func TestReplyCollector_Error(t *testing.T) {
	tests := []struct {
		Message  *string
		Expected string
	}{
		{Message: utils.Ptr(""), Expected: sessionFailedUnknown},
		{Message: nil, Expected: sessionFailedUnknown},
		{Message: utils.Ptr("an error message"), Expected: "an error message"},
	}

	for _, tc := range tests {
		coll := newReplyCollector()

		coll.On(copilot.SessionEvent{
			Type: copilot.SessionError,
			Data: copilot.Data{
				Message: tc.Message,
			},
		})

		require.Equal(t, tc.Expected, coll.ErrorMessage())
	}
}
