package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the producer of a Message within a conversation.
type Role string

const (
	// RoleSystem carries instructions prepended by the agent loop.
	RoleSystem Role = "system"
	// RoleUser carries inbound chat text.
	RoleUser Role = "user"
	// RoleAssistant carries model output (text and/or tool calls).
	RoleAssistant Role = "assistant"
	// RoleTool carries the result of a tool call.
	RoleTool Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// Message is the unit of conversational history. After it has been appended
// to a session it must be treated as immutable.
//
// Partial messages are streaming fragments of an assistant turn; they are
// forwarded to presentation channels but never persisted.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Author    string    `json:"author,omitempty"`
	Parts     []Part    `json:"parts"`
	Partial   bool      `json:"partial,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewID generates a new unique identifier for messages, invocations and
// progress notifications.
func NewID() string { return uuid.NewString() }

// NewMessage creates a message with the given role, author and parts.
func NewMessage(role Role, author string, parts ...Part) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Author:    author,
		Parts:     parts,
		Timestamp: time.Now().UTC(),
	}
}

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(text string) Message {
	return NewMessage(RoleSystem, "system", TextPart{Text: text})
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	return NewMessage(RoleUser, "user", TextPart{Text: text})
}

// NewAssistantMessage creates an assistant text message authored by author
// (typically the agent name).
func NewAssistantMessage(author, text string) Message {
	return NewMessage(RoleAssistant, author, TextPart{Text: text})
}

// NewFunctionCallMessage represents an agent requesting execution of one or
// more tools.
func NewFunctionCallMessage(author string, calls ...FunctionCall) Message {
	parts := make([]Part, 0, len(calls))
	for _, c := range calls {
		parts = append(parts, FunctionCallPart{FunctionCall: c})
	}
	return NewMessage(RoleAssistant, author, parts...)
}

// NewFunctionResponseMessage records the text outcome of a tool call. A
// non-empty errorKind marks the response as a failure.
func NewFunctionResponseMessage(author, callID, name, response, errorKind string) Message {
	return NewMessage(RoleTool, author, FunctionResponsePart{FunctionResponse: FunctionResponse{
		ID:        callID,
		Name:      name,
		Response:  response,
		ErrorKind: errorKind,
	}})
}

// Text concatenates all text parts. For tool messages the response text of
// every function response is used.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		switch part := p.(type) {
		case TextPart:
			b.WriteString(part.Text)
		case FunctionResponsePart:
			b.WriteString(part.FunctionResponse.Response)
		}
	}
	return b.String()
}

// FunctionCalls returns any FunctionCall parts preserving their original order.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns any FunctionResponse parts preserving their
// original order.
func (m Message) FunctionResponses() []FunctionResponse {
	var responses []FunctionResponse
	for _, p := range m.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}
	return responses
}

// IsFinalResponse reports whether the message completes an assistant turn:
// an assistant message that is not partial and requests no tools.
func (m Message) IsFinalResponse() bool {
	return m.Role == RoleAssistant &&
		!m.Partial &&
		len(m.FunctionCalls()) == 0
}

// Clone returns a copy whose Parts slice can be modified independently.
func (m Message) Clone() Message {
	c := m
	c.Parts = append([]Part(nil), m.Parts...)
	return c
}
