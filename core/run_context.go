package core

import (
	"context"

	"github.com/hupe1980/marketingmesh/logging"
)

// CredentialLookup resolves the bearer token for a user identity. It is
// consulted per session at resume time and never persisted with messages.
type CredentialLookup func(userID string) (string, bool)

// RunContext carries execution state for a single agent loop run. It
// aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, InvocationID, UserID)
//   - The credential lookup bound to this run
//   - The progress emitter shared by all tool calls of the run
//
// A RunContext is owned by one run and replaces any process-global
// per-user state.
type RunContext struct {
	Context      context.Context
	SessionID    string
	InvocationID string
	UserID       string
	Credentials  CredentialLookup
	Progress     ProgressEmitter

	*loggerAdapter
}

// RunContextOptions configures optional RunContext collaborators.
type RunContextOptions struct {
	InvocationID string
	UserID       string
	Credentials  CredentialLookup
	Progress     ProgressEmitter
	Logger       logging.Logger
}

// NewRunContext constructs a RunContext. Missing collaborators are replaced
// with inert defaults (no credentials, discarded progress, no-op logger).
func NewRunContext(ctx context.Context, sessionID string, optFns ...func(o *RunContextOptions)) *RunContext {
	opts := RunContextOptions{
		InvocationID: NewID(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Progress == nil {
		opts.Progress = discardProgress{}
	}

	if opts.Credentials == nil {
		opts.Credentials = func(string) (string, bool) { return "", false }
	}

	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		InvocationID:  opts.InvocationID,
		UserID:        opts.UserID,
		Credentials:   opts.Credentials,
		Progress:      opts.Progress,
		loggerAdapter: newLoggerAdapter(opts.Logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// BearerToken returns the credential of the run's user, if any.
func (rc *RunContext) BearerToken() (string, bool) {
	if rc.UserID == "" {
		return "", false
	}
	return rc.Credentials(rc.UserID)
}

// WithContext returns a shallow copy bound to ctx. Used by nested loops
// (e.g. crew agents) that need their own cancellation scope.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	clone := *rc
	clone.Context = ctx
	return &clone
}
