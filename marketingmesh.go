// Package marketingmesh is the entry point of the marketing assistant. An
// Assistant ties together the tool-calling agent loop, the conversation
// memory, per-user credentials and the streaming sink:
//
//  1. Build a tool registry (see package marketing) and a model.
//  2. Create an Assistant via New, optionally overriding the session store.
//  3. Call HandleMessage for every inbound chat message.
//
// Runs of the same session are serialised; different sessions proceed in
// parallel up to MaxConcurrentRuns.
package marketingmesh

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/marketingmesh/agent"
	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/logging"
	"github.com/hupe1980/marketingmesh/marketing"
	"github.com/hupe1980/marketingmesh/model"
	"github.com/hupe1980/marketingmesh/session"
	"github.com/hupe1980/marketingmesh/stream"
	"github.com/hupe1980/marketingmesh/tool"
)

const tracerName = "github.com/hupe1980/marketingmesh"

var (
	// ErrEmptyMessage is returned for inbound messages without text.
	ErrEmptyMessage = errors.New("empty message")
	// ErrMissingSessionID is returned for inbound messages without a session.
	ErrMissingSessionID = errors.New("missing session id")
	// ErrNoActiveRun is returned by Cancel when the session is idle.
	ErrNoActiveRun = errors.New("no active run for session")
)

// CancelledText is the answer recorded when a run is cancelled.
const CancelledText = "Error: " + agent.CancelledMessage

// Options configures an Assistant.
type Options struct {
	// Name authors assistant messages.
	Name string
	// Instruction is the system prompt. Defaults to the marketing instruction.
	Instruction *agent.Instruction
	// MaxSteps bounds tool-calling rounds per message.
	MaxSteps int
	// MaxHistoryMessages trims the history sent to the model (0 = all).
	MaxHistoryMessages int
	// EnableStreaming forwards model text deltas to the sink.
	EnableStreaming bool
	// MaxConcurrentRuns limits runs across all sessions (0 = unlimited).
	MaxConcurrentRuns int64
	// SessionStore holds conversation memory. Defaults to an in-memory store.
	SessionStore core.SessionStore
	// Credentials resolves bearer tokens by user identity.
	Credentials core.CredentialLookup
	Logger      logging.Logger
}

// Inbound is a chat message received from a user.
type Inbound struct {
	SessionID string
	UserID    string
	Text      string
}

type sessionState struct {
	run    sync.Mutex
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Assistant handles chat messages for any number of sessions.
type Assistant struct {
	opts        Options
	loop        *agent.Loop
	tools       *tool.Registry
	instruction agent.Instruction
	sem         *semaphore.Weighted

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// New creates an assistant over llm and a (frozen) tool registry.
func New(llm model.Model, tools *tool.Registry, optFns ...func(o *Options)) *Assistant {
	opts := Options{
		Name:            "assistant",
		MaxSteps:        agent.DefaultMaxSteps,
		EnableStreaming: true,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.SessionStore == nil {
		opts.SessionStore = session.NewInMemoryStore()
	}

	if tools == nil {
		tools = tool.NewRegistry()
	}
	tools.Freeze()

	instruction := marketing.DefaultInstruction()
	if opts.Instruction != nil {
		instruction = *opts.Instruction
	}

	var sem *semaphore.Weighted
	if opts.MaxConcurrentRuns > 0 {
		sem = semaphore.NewWeighted(opts.MaxConcurrentRuns)
	}

	loop := agent.NewLoop(opts.Name, llm, func(o *agent.Options) {
		o.EnableStreaming = opts.EnableStreaming
		o.MaxSteps = opts.MaxSteps
		o.MaxHistoryMessages = opts.MaxHistoryMessages
	})

	return &Assistant{
		opts:        opts,
		loop:        loop,
		tools:       tools,
		instruction: instruction,
		sem:         sem,
		sessions:    make(map[string]*sessionState),
	}
}

// Tools returns the assistant's tool registry.
func (a *Assistant) Tools() *tool.Registry { return a.tools }

// SessionStore returns the conversation memory.
func (a *Assistant) SessionStore() core.SessionStore { return a.opts.SessionStore }

// HandleMessage appends in.Text to the session, runs the agent loop and
// returns the final assistant message. Every non-partial message of the run
// is persisted in arrival order and forwarded to sink; text deltas and tool
// progress are streamed to sink as they happen.
//
// Failures of the loop (model errors, cancellation) are converted into an
// assistant message starting with "Error:" which is persisted and returned.
// The returned error is reserved for invalid input and storage failures.
func (a *Assistant) HandleMessage(ctx context.Context, in Inbound, sink stream.Sink) (final core.Message, err error) {
	if in.SessionID == "" {
		return core.Message{}, ErrMissingSessionID
	}
	if in.Text == "" {
		return core.Message{}, ErrEmptyMessage
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "assistant.handle_message", trace.WithAttributes(
		attribute.String("session.id", in.SessionID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	state := a.session(in.SessionID)
	state.run.Lock()
	defer state.run.Unlock()

	if a.sem != nil {
		if err := a.sem.Acquire(ctx, 1); err != nil {
			return core.Message{}, err
		}
		defer a.sem.Release(1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	state.setCancel(cancel)
	defer func() {
		state.setCancel(nil)
		cancel()
	}()

	logger := logging.With(a.opts.Logger, "session", in.SessionID)

	history, err := a.resume(ctx, in.SessionID, logger)
	if err != nil {
		return core.Message{}, err
	}

	// Persistence outlives a cancelled run so the transcript stays complete.
	storeCtx := context.WithoutCancel(ctx)

	userMsg := core.NewUserMessage(in.Text)
	if in.UserID != "" {
		userMsg.Author = in.UserID
	}
	if err := a.opts.SessionStore.Append(storeCtx, in.SessionID, userMsg); err != nil {
		return core.Message{}, fmt.Errorf("append user message: %w", err)
	}

	dispatcher := stream.NewDispatcher(ctx, in.SessionID, sink, func(o *stream.Options) {
		o.Logger = logger
	})
	defer dispatcher.Close()

	rc := core.NewRunContext(runCtx, in.SessionID, func(o *core.RunContextOptions) {
		o.UserID = in.UserID
		o.Credentials = a.opts.Credentials
		o.Progress = dispatcher
		o.Logger = logger
	})

	span.SetAttributes(attribute.String("invocation.id", rc.InvocationID))
	logger.Info("assistant.run.start", "invocation", rc.InvocationID, "history", len(history))

	msgCh, errCh := a.loop.Run(rc, append(history, userMsg), a.tools, a.instruction)

	var persistErr error
	for msg := range msgCh {
		if msg.Partial {
			dispatcher.Token(msg.Text())
			continue
		}

		if persistErr == nil {
			if perr := a.opts.SessionStore.Append(storeCtx, in.SessionID, msg); perr != nil {
				persistErr = fmt.Errorf("append %s message: %w", msg.Role, perr)
				logger.Error("assistant.persist.error", "error", perr.Error())
			}
		}

		dispatcher.Message(msg)

		if msg.IsFinalResponse() {
			final = msg
		}
	}

	if runErr := <-errCh; runErr != nil {
		final = core.NewAssistantMessage(a.opts.Name, errorText(runErr))
		logger.Warn("assistant.run.failed", "invocation", rc.InvocationID, "error", runErr.Error())

		if perr := a.opts.SessionStore.Append(storeCtx, in.SessionID, final); perr != nil && persistErr == nil {
			persistErr = fmt.Errorf("append error message: %w", perr)
		}
		dispatcher.Message(final)
	}

	logger.Info("assistant.run.complete", "invocation", rc.InvocationID)

	return final, persistErr
}

// Cancel stops the in-flight run of a session. The run ends at its next
// step boundary and records CancelledText as its answer.
func (a *Assistant) Cancel(sessionID string) error {
	a.mu.Lock()
	state, ok := a.sessions[sessionID]
	a.mu.Unlock()

	if !ok || !state.cancelRun() {
		return ErrNoActiveRun
	}

	a.opts.Logger.Info("assistant.run.cancel", "session", sessionID)

	return nil
}

// History returns the persisted messages of a session in append order.
func (a *Assistant) History(ctx context.Context, sessionID string) ([]core.Message, error) {
	return a.opts.SessionStore.Load(ctx, sessionID)
}

func (a *Assistant) resume(ctx context.Context, sessionID string, logger logging.Logger) ([]core.Message, error) {
	sess, err := a.opts.SessionStore.Resume(ctx, sessionID)
	if errors.Is(err, core.ErrSessionNotFound) {
		logger.Info("assistant.session.new")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}

	return sess.GetMessages(), nil
}

func (a *Assistant) session(id string) *sessionState {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, ok := a.sessions[id]
	if !ok {
		state = &sessionState{}
		a.sessions[id] = state
	}

	return state
}

func (s *sessionState) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

func (s *sessionState) cancelRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return false
	}
	s.cancel()

	return true
}

func errorText(err error) string {
	if errors.Is(err, context.Canceled) {
		return CancelledText
	}
	return "Error: " + err.Error()
}
