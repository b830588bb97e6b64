package core

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/marketingmesh/logging"
)

// ToolContext provides a constrained surface for tool implementations invoked
// by the agent loop. It exposes the call's cancellation context, its
// identifiers, the caller's bearer token and an ordered progress side-channel.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	toolName       string

	mu  sync.Mutex
	seq int

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext,
// the tool name and a unique functionCallID.
func NewToolContext(runCtx *RunContext, toolName, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		toolName:       toolName,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// InvocationID returns the agent loop run the call belongs to.
func (tc *ToolContext) InvocationID() string { return tc.runCtx.InvocationID }

// UserID returns the authenticated user identity of the run.
func (tc *ToolContext) UserID() string { return tc.runCtx.UserID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// ToolName returns the name of the tool being executed.
func (tc *ToolContext) ToolName() string { return tc.toolName }

// RunContext returns the parent run context.
func (tc *ToolContext) RunContext() *RunContext { return tc.runCtx }

// BearerToken returns the bearer token of the caller, resolved through the
// run's credential lookup.
func (tc *ToolContext) BearerToken() (string, bool) { return tc.runCtx.BearerToken() }

// Progress emits a progress notification for this call. Sequence numbers are
// assigned in call order so consumers can verify per-invocation ordering.
// Emission is fire-and-forget.
func (tc *ToolContext) Progress(kind ProgressKind, text string) {
	tc.mu.Lock()
	tc.seq++
	seq := tc.seq
	tc.mu.Unlock()

	tc.runCtx.Progress.Emit(Progress{
		ID:             NewID(),
		SessionID:      tc.runCtx.SessionID,
		InvocationID:   tc.runCtx.InvocationID,
		FunctionCallID: tc.functionCallID,
		Tool:           tc.toolName,
		Kind:           kind,
		Seq:            seq,
		Text:           text,
		Timestamp:      time.Now().UTC(),
	})
}
