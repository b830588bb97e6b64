package testutil

import (
	"time"

	"github.com/hupe1980/marketingmesh/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder().Author("assistant").AssistantText("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MessageBuilder struct {
	id      string
	role    core.Role
	author  string
	parts   []core.Part
	partial bool
	ts      time.Time
}

// NewMessageBuilder creates a builder with default role user.
func NewMessageBuilder() *MessageBuilder { return &MessageBuilder{role: core.RoleUser} }

// ID overrides the auto-generated message ID (chainable).
func (b *MessageBuilder) ID(id string) *MessageBuilder { b.id = id; return b }

// Author sets the author name (chainable).
func (b *MessageBuilder) Author(a string) *MessageBuilder { b.author = a; return b }

// At pins the timestamp (chainable).
func (b *MessageBuilder) At(ts time.Time) *MessageBuilder { b.ts = ts; return b }

// Partial marks the message as a streaming chunk (chainable).
func (b *MessageBuilder) Partial(p bool) *MessageBuilder { b.partial = p; return b }

// UserText appends a text part and sets role to user (chainable).
func (b *MessageBuilder) UserText(t string) *MessageBuilder {
	b.role = core.RoleUser
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// AssistantText appends a text part and sets role to assistant (chainable).
func (b *MessageBuilder) AssistantText(t string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.parts = append(b.parts, core.TextPart{Text: t})
	return b
}

// Call appends a function call part and sets role to assistant (chainable).
func (b *MessageBuilder) Call(id, name, args string) *MessageBuilder {
	b.role = core.RoleAssistant
	b.parts = append(b.parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}})
	return b
}

// Result appends a function response part and sets role to tool (chainable).
func (b *MessageBuilder) Result(id, name, response string) *MessageBuilder {
	b.role = core.RoleTool
	b.parts = append(b.parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: id, Name: name, Response: response}})
	return b
}

// Build returns the constructed message.
func (b *MessageBuilder) Build() core.Message {
	msg := core.NewMessage(b.role, b.author, b.parts...)
	if b.id != "" {
		msg.ID = b.id
	}
	if !b.ts.IsZero() {
		msg.Timestamp = b.ts
	}
	msg.Partial = b.partial
	return msg
}
