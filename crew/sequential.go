package crew

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hupe1980/marketingmesh/agent"
	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/internal/util"
	"github.com/hupe1980/marketingmesh/logging"
	"github.com/hupe1980/marketingmesh/model"
	"github.com/hupe1980/marketingmesh/tool"
)

const tracerName = "github.com/hupe1980/marketingmesh/crew"

// Options configures a SequentialCrew.
type Options struct {
	// Tools available to crew agents, referenced by name from the definition.
	Tools []tool.Tool
	// MaxSteps bounds tool-calling rounds per task (0 = agent.DefaultMaxSteps).
	MaxSteps int
	// Logger receives crew lifecycle events.
	Logger logging.Logger
}

type crewAgent struct {
	def   AgentDefinition
	loop  *agent.Loop
	tools *tool.Registry
}

// SequentialCrew executes the tasks of a Definition in order. Every task is
// handled by an agent.Loop configured from the task's agent definition and
// receives the outputs of all previous tasks as context.
type SequentialCrew struct {
	def    Definition
	agents map[string]crewAgent
	logger logging.Logger
}

// NewSequentialCrew builds a crew over llm. Tool names referenced by agent
// definitions must be present in Options.Tools; missing ones are skipped with
// a warning so a crew without a search backend still runs.
func NewSequentialCrew(def Definition, llm model.Model, optFns ...func(o *Options)) (*SequentialCrew, error) {
	opts := Options{
		MaxSteps: agent.DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}

	available := make(map[string]tool.Tool, len(opts.Tools))
	for _, t := range opts.Tools {
		available[t.Name()] = t
	}

	agents := make(map[string]crewAgent, len(def.Agents))
	for _, a := range def.Agents {
		registry := tool.NewRegistry()
		for _, name := range a.Tools {
			t, ok := available[name]
			if !ok {
				opts.Logger.Warn("crew.agent.tool_missing", "agent", a.Name, "tool", name)
				continue
			}
			if err := registry.Register(t); err != nil {
				return nil, fmt.Errorf("crew agent %s: %w", a.Name, err)
			}
		}
		registry.Freeze()

		agents[a.Name] = crewAgent{
			def: a,
			loop: agent.NewLoop(a.Name, llm, func(o *agent.Options) {
				o.EnableStreaming = false
				o.MaxSteps = opts.MaxSteps
			}),
			tools: registry,
		}
	}

	return &SequentialCrew{def: def, agents: agents, logger: opts.Logger}, nil
}

// Definition returns the crew definition.
func (c *SequentialCrew) Definition() Definition { return c.def }

// Kickoff implements Crew. onStep is called after each task completes. The
// first failing task aborts the kickoff.
func (c *SequentialCrew) Kickoff(ctx context.Context, inputs map[string]string, onStep StepCallback) (result Result, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "crew.kickoff", trace.WithAttributes(
		attribute.String("crew.name", c.def.Name),
		attribute.Int("crew.tasks", len(c.def.Tasks)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	state := make(map[string]any, len(inputs))
	for k, v := range inputs {
		state[k] = v
	}

	kickoffID := core.NewID()
	start := time.Now()

	c.logger.Info("crew.kickoff.start", "crew", c.def.Name, "kickoff", kickoffID, "tasks", len(c.def.Tasks))

	outputs := make([]TaskOutput, 0, len(c.def.Tasks))
	for _, task := range c.def.Tasks {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		out, err := c.runTask(ctx, kickoffID, task, state, outputs)
		if err != nil {
			c.logger.Error("crew.task.error", "crew", c.def.Name, "task", task.Name, "error", err.Error())
			return Result{}, fmt.Errorf("crew task %s failed: %w", task.Name, err)
		}

		outputs = append(outputs, out)
		c.logger.Info("crew.task.complete", "crew", c.def.Name, "task", task.Name, "agent", out.Agent)

		if onStep != nil {
			onStep(out)
		}
	}

	c.logger.Info("crew.kickoff.complete", "crew", c.def.Name, "kickoff", kickoffID, "duration_ms", time.Since(start).Milliseconds())

	return Result{Raw: outputs[len(outputs)-1].Raw, Tasks: outputs}, nil
}

func (c *SequentialCrew) runTask(
	ctx context.Context,
	kickoffID string,
	task TaskDefinition,
	state map[string]any,
	previous []TaskOutput,
) (TaskOutput, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "crew.task", trace.WithAttributes(
		attribute.String("crew.task", task.Name),
		attribute.String("crew.agent", task.Agent),
	))
	defer span.End()

	member := c.agents[task.Agent]

	description, err := util.RenderTemplate(strings.TrimSpace(task.Description), state)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("render description: %w", err)
	}

	expected, err := util.RenderTemplate(strings.TrimSpace(task.ExpectedOutput), state)
	if err != nil {
		return TaskOutput{}, fmt.Errorf("render expected output: %w", err)
	}

	system, err := agentInstruction(member.def, state)
	if err != nil {
		return TaskOutput{}, err
	}

	runCtx := core.NewRunContext(ctx, "crew-"+kickoffID, func(o *core.RunContextOptions) {
		o.Logger = c.logger
	})

	prompt := core.NewUserMessage(taskPrompt(description, expected, previous))

	final, err := finalAnswer(member.loop.Run(runCtx, []core.Message{prompt}, member.tools, agent.NewInstructionFromText(system)))
	if err != nil {
		span.RecordError(err)
		return TaskOutput{}, err
	}

	return TaskOutput{
		Agent:       member.def.Role,
		Task:        task.Name,
		Description: description,
		Raw:         final.Text(),
	}, nil
}

func agentInstruction(def AgentDefinition, state map[string]any) (string, error) {
	goal, err := util.RenderTemplate(strings.TrimSpace(def.Goal), state)
	if err != nil {
		return "", fmt.Errorf("render goal of %s: %w", def.Name, err)
	}

	backstory, err := util.RenderTemplate(strings.TrimSpace(def.Backstory), state)
	if err != nil {
		return "", fmt.Errorf("render backstory of %s: %w", def.Name, err)
	}

	return fmt.Sprintf("You are %s. %s\nYour personal goal is: %s", def.Role, backstory, goal), nil
}

func taskPrompt(description, expected string, previous []TaskOutput) string {
	var b strings.Builder

	b.WriteString("Current Task: ")
	b.WriteString(description)

	if expected != "" {
		b.WriteString("\n\nThis is the expected criteria for your final answer: ")
		b.WriteString(expected)
	}

	if len(previous) > 0 {
		b.WriteString("\n\nThis is the context you're working with:\n")
		for _, p := range previous {
			b.WriteString("\n")
			b.WriteString(p.Raw)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// finalAnswer drains a loop run and returns its final assistant message.
func finalAnswer(msgCh <-chan core.Message, errCh <-chan error) (core.Message, error) {
	var final core.Message
	for msg := range msgCh {
		if msg.IsFinalResponse() {
			final = msg
		}
	}

	if err := <-errCh; err != nil {
		return core.Message{}, err
	}

	return final, nil
}
