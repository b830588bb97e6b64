// Package tool implements the function / tool calling subsystem that lets the
// assistant invoke structured capabilities (APIs, computations, delegated
// crews) with schema validated arguments and a single, uniform rendering of
// failures back into the conversation.
package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/internal/util"
)

// Tool defines the interface for extending the assistant with external
// functions.
//
// Implementations should:
//   - Provide clear, descriptive snake_case names
//   - Define a JSON schema for parameters
//   - Return failures as errors rather than panicking
//   - Be safe for concurrent use by multiple sessions
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description is provided to the model to help it decide when to call the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with validated arguments. The returned string
	// is the tool-role content the model sees on success.
	Call(toolCtx *core.ToolContext, args map[string]any) (string, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ErrorKind categorises tool failures.
type ErrorKind string

const (
	KindExecution          ErrorKind = "TOOL_EXECUTION"
	KindMissingCredential  ErrorKind = "MISSING_CREDENTIAL"
	KindUpstreamHTTP       ErrorKind = "UPSTREAM_HTTP"
	KindArgumentValidation ErrorKind = "ARGUMENT_VALIDATION"
	KindUnknownTool        ErrorKind = "UNKNOWN_TOOL"
)

var (
	// ErrDuplicateTool is returned when registering a name twice.
	ErrDuplicateTool = errors.New("tool already registered")
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("tool registry is frozen")
	// ErrUnknownTool matches ToolErrors of kind UNKNOWN_TOOL.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrArgumentValidation matches ToolErrors of kind ARGUMENT_VALIDATION.
	ErrArgumentValidation = errors.New("argument validation failed")
	// ErrMissingCredential matches ToolErrors of kind MISSING_CREDENTIAL.
	ErrMissingCredential = errors.New("missing credential")
)

// ToolError represents errors that occur during tool execution.
//
// Resource names the upstream system for UPSTREAM_HTTP failures and is used
// by Render ("Error accessing <Resource>: ...").
type ToolError struct {
	Kind     ErrorKind `json:"kind"`
	Tool     string    `json:"tool"`
	Resource string    `json:"resource,omitempty"`
	Message  string    `json:"message"`
	Err      error     `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("tool error [%s]: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("tool error [%s] in %s: %s", e.Kind, e.Tool, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ToolError) Unwrap() error { return e.Err }

// Is maps error kinds to the package sentinels.
func (e *ToolError) Is(target error) bool {
	switch target {
	case ErrUnknownTool:
		return e.Kind == KindUnknownTool
	case ErrArgumentValidation:
		return e.Kind == KindArgumentValidation
	case ErrMissingCredential:
		return e.Kind == KindMissingCredential
	}
	return false
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(kind ErrorKind, tool, message string) *ToolError {
	return &ToolError{Kind: kind, Tool: tool, Message: message}
}

// KindOf extracts the ErrorKind of err. Errors that are not ToolErrors are
// reported as TOOL_EXECUTION; nil yields the empty kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindExecution
}

// Render produces the tool-role text the model sees. Successful results are
// returned unchanged; every failure starts with "Error".
func Render(result string, err error) string {
	if err == nil {
		return result
	}

	var te *ToolError
	if !errors.As(err, &te) {
		return "Error: " + err.Error()
	}

	if te.Kind == KindUpstreamHTTP && te.Resource != "" {
		return fmt.Sprintf("Error accessing %s: %s", te.Resource, te.Message)
	}

	return "Error: " + te.Message
}
