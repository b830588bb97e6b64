// Package stream delivers tokens, progress notifications and messages of a
// run to the chat channel. A Dispatcher decouples producers (the agent loop
// and tools) from the Sink so that emitting never waits for delivery.
package stream

import (
	"context"

	"github.com/hupe1980/marketingmesh/core"
)

// Sink is the outbound side of a chat channel.
type Sink interface {
	// Token delivers a streamed text delta of the current answer.
	Token(ctx context.Context, sessionID, text string) error
	// Progress delivers an out-of-band tool progress notification.
	Progress(ctx context.Context, p core.Progress) error
	// Message delivers a complete (non-partial) message.
	Message(ctx context.Context, sessionID string, msg core.Message) error
}

// Discard is a Sink that drops everything.
type Discard struct{}

// Token implements Sink.
func (Discard) Token(context.Context, string, string) error { return nil }

// Progress implements Sink.
func (Discard) Progress(context.Context, core.Progress) error { return nil }

// Message implements Sink.
func (Discard) Message(context.Context, string, core.Message) error { return nil }
