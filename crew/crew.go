package crew

import "context"

// TaskOutput is the result of one completed crew step.
type TaskOutput struct {
	// Agent is the role of the crew agent that performed the task.
	Agent string `json:"agent"`
	// Task is the task name.
	Task string `json:"task"`
	// Description is the rendered task description.
	Description string `json:"description,omitempty"`
	// Raw is the agent's final answer for the task.
	Raw string `json:"raw"`
}

// Result is the outcome of a crew kickoff.
type Result struct {
	// Raw is the final text output: the last task's answer.
	Raw string `json:"raw"`
	// Tasks lists every task output in execution order.
	Tasks []TaskOutput `json:"tasks"`
}

// StepCallback is invoked once per completed step, in completion order.
// It must not block for long; the crew waits for it to return.
type StepCallback func(TaskOutput)

// Crew is a delegated multi-step task executor.
type Crew interface {
	Kickoff(ctx context.Context, inputs map[string]string, onStep StepCallback) (Result, error)
}

// Func adapts a plain function to Crew.
type Func func(ctx context.Context, inputs map[string]string, onStep StepCallback) (Result, error)

// Kickoff implements Crew.
func (f Func) Kickoff(ctx context.Context, inputs map[string]string, onStep StepCallback) (Result, error) {
	return f(ctx, inputs, onStep)
}
