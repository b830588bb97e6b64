package agent

import (
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/model"
	"github.com/hupe1980/marketingmesh/tool"
)

// DefaultMaxSteps bounds the number of tool-calling rounds per run.
const DefaultMaxSteps = 10

// CancelledMessage is the tool result recorded for calls skipped because
// the run was cancelled.
const CancelledMessage = "the request was cancelled."

const tracerName = "github.com/hupe1980/marketingmesh/agent"

// Options configures a Loop.
type Options struct {
	// EnableStreaming requests token deltas from the model and emits them as
	// partial assistant messages.
	EnableStreaming bool
	// MaxSteps is the maximum number of tool-calling rounds. Values <= 0
	// select DefaultMaxSteps.
	MaxSteps int
	// MaxHistoryMessages trims the history sent to the model (0 = all).
	MaxHistoryMessages int
}

// Loop is the tool-calling decision loop: given history, tools and an
// instruction it alternates between model turns and tool executions until
// the model produces a final answer.
//
// A Loop holds no per-run state and can serve any number of concurrent runs.
type Loop struct {
	name string
	llm  model.Model
	opts Options
}

// NewLoop creates a loop that authors its messages as name.
func NewLoop(name string, llm model.Model, optFns ...func(o *Options)) *Loop {
	opts := Options{
		EnableStreaming: true,
		MaxSteps:        DefaultMaxSteps,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}

	return &Loop{name: name, llm: llm, opts: opts}
}

// Name returns the author name of emitted messages.
func (l *Loop) Name() string { return l.name }

// MaxSteps returns the effective tool-calling bound.
func (l *Loop) MaxSteps() int { return l.opts.MaxSteps }

// StepLimitMessage is the final answer emitted when a run exhausts its
// tool-calling budget.
func StepLimitMessage(maxSteps int) string {
	return fmt.Sprintf("I could not complete this request within %d tool-calling steps.", maxSteps)
}

// Run starts the loop and returns a lazy, finite stream of messages:
// optional partial assistant messages, every assistant tool-call message,
// exactly one tool-role message per call, and finally one non-partial
// assistant answer. The message channel closes when the run ends. Model
// failures and cancellation are reported on the error channel instead of a
// final answer.
//
// history must not contain a system message; the resolved instruction is
// prepended on every model turn. A nil tools registry means no tools.
func (l *Loop) Run(
	runCtx *core.RunContext,
	history []core.Message,
	tools *tool.Registry,
	instruction Instruction,
) (<-chan core.Message, <-chan error) {
	out := make(chan core.Message, 64)
	errCh := make(chan error, 1)

	if tools == nil {
		tools = tool.NewRegistry()
	}

	msgs := make([]core.Message, 0, len(history)+4)
	for _, m := range history {
		if m.Partial || m.Role == core.RoleSystem {
			continue
		}
		msgs = append(msgs, m.Clone())
	}

	go func() {
		defer close(out)
		defer close(errCh)

		if err := l.run(runCtx, msgs, tools, instruction, out); err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

func (l *Loop) run(
	runCtx *core.RunContext,
	msgs []core.Message,
	tools *tool.Registry,
	instruction Instruction,
	out chan<- core.Message,
) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(runCtx.Context, "agent.loop.run", trace.WithAttributes(
		attribute.String("agent.name", l.name),
		attribute.String("session.id", runCtx.SessionID),
		attribute.String("invocation.id", runCtx.InvocationID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	runCtx = runCtx.WithContext(ctx)
	logger := runCtx.Logger()

	system, err := instruction.Resolve(runCtx)
	if err != nil {
		return fmt.Errorf("failed to resolve instruction: %w", err)
	}

	logger.Debug("agent.instruction.resolved", "agent", l.name, "length", len(system))

	defs := toolDefinitions(tools)
	limiter := core.NewStepLimiter(l.opts.MaxSteps)
	start := time.Now()

	emit := func(msg core.Message) error {
		select {
		case out <- msg:
			return nil
		case <-runCtx.Done():
			return runCtx.Err()
		}
	}

	for turn := 1; ; turn++ {
		if err := runCtx.Err(); err != nil {
			logger.Info("agent.loop.cancelled", "agent", l.name, "turn", turn)
			return err
		}

		req := model.Request{
			Messages: append([]core.Message{core.NewSystemMessage(system)}, l.window(msgs)...),
			Tools:    defs,
			Stream:   l.opts.EnableStreaming,
		}

		logger.Debug("agent.loop.step", "agent", l.name, "turn", turn, "messages", len(req.Messages))

		respCh, genErrCh := l.llm.Generate(ctx, req)

		var emitErr error
		resp, err := model.Collect(respCh, genErrCh, func(r model.Response) {
			if emitErr != nil {
				return
			}
			partial := r.Message
			partial.Role = core.RoleAssistant
			partial.Author = l.name
			partial.Partial = true
			emitErr = emit(partial)
		})
		if err != nil {
			logger.Error("agent.model.error", "agent", l.name, "turn", turn, "error", err.Error())
			return fmt.Errorf("model generate: %w", err)
		}
		if emitErr != nil {
			return emitErr
		}

		msg := normalizeResponse(resp.Message, l.name)
		calls := msg.FunctionCalls()

		if len(calls) == 0 {
			logger.Info("agent.loop.complete", "agent", l.name, "turns", turn, "tool_steps", limiter.Count(), "duration_ms", time.Since(start).Milliseconds())
			span.SetAttributes(attribute.Int("agent.tool_steps", limiter.Count()))
			return emit(msg)
		}

		if err := limiter.Increment(); err != nil {
			logger.Warn("agent.loop.step_limit", "agent", l.name, "max_steps", l.opts.MaxSteps, "error", err.Error())
			span.AddEvent("agent.loop.step_limit")
			return emit(core.NewAssistantMessage(l.name, StepLimitMessage(l.opts.MaxSteps)))
		}

		if err := emit(msg); err != nil {
			return err
		}
		msgs = append(msgs, msg)

		// Every emitted call is answered, even after cancellation. Responses
		// bypass emit because the caller drains out until it is closed.
		for _, fc := range calls {
			var (
				result  string
				callErr error
			)

			if err := runCtx.Err(); err != nil {
				logger.Info("agent.loop.cancelled", "agent", l.name, "turn", turn, "pending_tool", fc.Name)
				callErr = &tool.ToolError{Kind: tool.KindExecution, Tool: fc.Name, Message: CancelledMessage, Err: err}
			} else {
				toolCtx := core.NewToolContext(runCtx, fc.Name, fc.ID)

				callStart := time.Now()
				result, callErr = tools.Dispatch(toolCtx, fc.Name, fc.Arguments)

				logger.Info(
					"agent.tool.executed",
					"agent", l.name,
					"tool", fc.Name,
					"duration_ms", time.Since(callStart).Milliseconds(),
					"error", callErr != nil,
				)
			}

			respMsg := core.NewFunctionResponseMessage(l.name, fc.ID, fc.Name, tool.Render(result, callErr), string(tool.KindOf(callErr)))
			out <- respMsg
			msgs = append(msgs, respMsg)
		}
	}
}

// window applies MaxHistoryMessages without starting on an orphaned tool
// response.
func (l *Loop) window(msgs []core.Message) []core.Message {
	limit := l.opts.MaxHistoryMessages
	if limit <= 0 || len(msgs) <= limit {
		return msgs
	}

	start := len(msgs) - limit
	for start < len(msgs) && msgs[start].Role == core.RoleTool {
		start++
	}

	return msgs[start:]
}

// normalizeResponse stamps author and role and assigns ids to calls the
// provider left anonymous.
func normalizeResponse(msg core.Message, author string) core.Message {
	msg = msg.Clone()
	msg.Role = core.RoleAssistant
	msg.Author = author
	msg.Partial = false

	if msg.ID == "" {
		msg.ID = core.NewID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	for i, p := range msg.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok && fc.FunctionCall.ID == "" {
			fc.FunctionCall.ID = "call_" + core.NewID()
			msg.Parts[i] = fc
		}
	}

	return msg
}

func toolDefinitions(tools *tool.Registry) []model.ToolDefinition {
	all := tools.Tools()
	if len(all) == 0 {
		return nil
	}

	defs := make([]model.ToolDefinition, 0, len(all))
	for _, t := range all {
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	return defs
}
