package core

import "time"

// ProgressKind classifies a progress notification.
type ProgressKind string

const (
	// ProgressStarted is emitted once when a long-running tool begins.
	ProgressStarted ProgressKind = "started"
	// ProgressStep is emitted for every completed sub-step.
	ProgressStep ProgressKind = "step"
	// ProgressCompleted is the terminal notification of a successful run.
	ProgressCompleted ProgressKind = "completed"
	// ProgressFailed is the terminal notification of a failed run.
	ProgressFailed ProgressKind = "failed"
)

// Terminal reports whether no further notifications follow for the same
// invocation.
func (k ProgressKind) Terminal() bool {
	return k == ProgressCompleted || k == ProgressFailed
}

// Progress is an out-of-band, best-effort status message describing an
// in-flight tool's intermediate state. It is distinct from the tool's return
// value. Seq is monotonic per (InvocationID, FunctionCallID).
type Progress struct {
	ID             string       `json:"id"`
	SessionID      string       `json:"session_id"`
	InvocationID   string       `json:"invocation_id"`
	FunctionCallID string       `json:"function_call_id,omitempty"`
	Tool           string       `json:"tool"`
	Kind           ProgressKind `json:"kind"`
	Seq            int          `json:"seq"`
	Text           string       `json:"text"`
	Timestamp      time.Time    `json:"timestamp"`
}

// ProgressEmitter accepts progress notifications. Emit must not block on
// delivery; implementations queue and deliver asynchronously.
type ProgressEmitter interface {
	Emit(p Progress)
}

// discardProgress drops every notification.
type discardProgress struct{}

func (discardProgress) Emit(Progress) {}
