package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_FinalResponse(t *testing.T) {
	final := NewAssistantMessage("bot", "done")
	assert.True(t, final.IsFinalResponse())

	call := NewFunctionCallMessage("bot", FunctionCall{ID: "1", Name: "x", Arguments: "{}"})
	assert.False(t, call.IsFinalResponse())
	require.Len(t, call.FunctionCalls(), 1)

	partial := NewAssistantMessage("bot", "d")
	partial.Partial = true
	assert.False(t, partial.IsFinalResponse())

	tool := NewFunctionResponseMessage("bot", "1", "x", "Error: boom", "TOOL_EXECUTION")
	assert.False(t, tool.IsFinalResponse())
	assert.Equal(t, "Error: boom", tool.Text())
	assert.True(t, tool.FunctionResponses()[0].Failed())
}

func TestMessage_JSONPreservesParts(t *testing.T) {
	msg := NewMessage(RoleAssistant, "bot",
		TextPart{Text: "looking that up"},
		FunctionCallPart{FunctionCall: FunctionCall{ID: "c1", Name: "lookup", Arguments: `{"q":"x"}`}},
	)

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, msg.Role, decoded.Role)
	assert.True(t, msg.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, msg.Parts, decoded.Parts)
}

func TestMessage_UnmarshalRejectsUnknownPart(t *testing.T) {
	var m Message
	err := json.Unmarshal([]byte(`{"id":"1","role":"user","parts":[{"type":"image"}]}`), &m)
	assert.Error(t, err)
}

func TestStepLimiter(t *testing.T) {
	l := NewStepLimiter(2)
	require.NoError(t, l.Increment())
	require.NoError(t, l.Increment())
	assert.Equal(t, 0, l.Remaining())
	err := l.Increment()
	assert.ErrorIs(t, err, ErrStepLimitExceeded)

	unlimited := NewStepLimiter(0)
	for i := 0; i < 50; i++ {
		require.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, -1, unlimited.Remaining())
}
