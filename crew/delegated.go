package crew

import (
	"fmt"
	"sort"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/tool"
)

// DelegatedOptions customises the progress texts of a DelegatedTool.
type DelegatedOptions struct {
	// StartedText is emitted before the crew starts.
	StartedText string
	// CompletedText is emitted after a successful kickoff.
	CompletedText string
	// ResultPrefix is prepended to the crew's raw output.
	ResultPrefix string
}

// DelegatedTool presents a Crew as one atomic tool call while surfacing
// intermediate progress through the ToolContext.
type DelegatedTool struct {
	name        string
	description string
	parameters  map[string]any
	crew        Crew
	opts        DelegatedOptions
}

// NewDelegatedTool wraps crew as a tool. Tool arguments are stringified and
// passed to the crew as inputs.
func NewDelegatedTool(name, description string, parameters map[string]any, crew Crew, optFns ...func(o *DelegatedOptions)) *DelegatedTool {
	opts := DelegatedOptions{
		StartedText:   "Starting brand research...",
		CompletedText: "Research completed!",
		ResultPrefix:  "Successfully completed the research. Research result: ",
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &DelegatedTool{
		name:        name,
		description: description,
		parameters:  parameters,
		crew:        crew,
		opts:        opts,
	}
}

// Name implements tool.Tool.
func (t *DelegatedTool) Name() string { return t.name }

// Description implements tool.Tool.
func (t *DelegatedTool) Description() string { return t.description }

// Parameters implements tool.Tool.
func (t *DelegatedTool) Parameters() map[string]any { return t.parameters }

// StepText formats the progress notification of a completed crew step.
func StepText(out TaskOutput) string {
	agentName := out.Agent
	if agentName == "" {
		agentName = "Agent"
	}

	taskName := out.Task
	if taskName == "" {
		taskName = "task"
	}

	return fmt.Sprintf("Agent: %s is working on task: %s...", agentName, taskName)
}

// Call runs the crew. Every invocation emits exactly one started
// notification, one step notification per completed crew step and exactly
// one terminal notification (completed or failed). Failures, including
// panics inside the crew, are returned as TOOL_EXECUTION errors so the outer
// loop renders them as "Error: <message>".
func (t *DelegatedTool) Call(toolCtx *core.ToolContext, args map[string]any) (result string, err error) {
	logger := toolCtx.Logger()

	toolCtx.Progress(core.ProgressStarted, t.opts.StartedText)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("crew panicked: %v", r)
			result = ""
		}

		if err != nil {
			logger.Error("crew.delegated.failed", "tool", t.name, "error", err.Error())
			toolCtx.Progress(core.ProgressFailed, "Error: "+err.Error())
			err = &tool.ToolError{Kind: tool.KindExecution, Tool: t.name, Message: err.Error(), Err: err}
			return
		}

		toolCtx.Progress(core.ProgressCompleted, t.opts.CompletedText)
	}()

	inputs := stringifyArgs(args)
	logger.Info("crew.delegated.start", "tool", t.name, "inputs", sortedKeys(inputs))

	res, err := t.crew.Kickoff(toolCtx.Context(), inputs, func(out TaskOutput) {
		logger.Debug("crew.delegated.step", "tool", t.name, "agent", out.Agent, "task", out.Task)
		toolCtx.Progress(core.ProgressStep, StepText(out))
	})
	if err != nil {
		return "", err
	}

	logger.Info("crew.delegated.complete", "tool", t.name, "steps", len(res.Tasks))

	return t.opts.ResultPrefix + res.Raw, nil
}

func stringifyArgs(args map[string]any) map[string]string {
	inputs := make(map[string]string, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			inputs[k] = s
			continue
		}
		inputs[k] = fmt.Sprint(v)
	}
	return inputs
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
