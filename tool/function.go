package tool

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/internal/util"
)

// FunctionTool is a generic adapter that exposes a plain Go function as a tool.
//
// Arguments are validated by the Registry before the function runs. A
// FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (string, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	strategy := NewFunctionTool(
//	  "develop_strategy",
//	  "Develop a marketing strategy for a target audience",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "target_audience": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"target_audience"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (string, error) {
//	    return "Marketing Strategy for " + args["target_audience"].(string), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (string, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// reflection (see util.CreateSchema).
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (string, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the unique tool name used in function call declarations and routing.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the short natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call invokes the wrapped function.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (string, error) {
	return t.fn(toolCtx, args)
}

// TypedTool decodes validated arguments into T before invoking its function.
type TypedTool[T any] struct {
	*FunctionTool
}

// NewTypedTool builds a tool whose schema is derived from T and whose
// handler receives a decoded T.
//
//	type briefArgs struct {
//	  Strategy string `json:"strategy" description:"Strategy to turn into a brief"`
//	}
//
//	brief := NewTypedTool("generate_campaign_brief", "Generate a campaign brief",
//	  func(tc *core.ToolContext, in briefArgs) (string, error) { ... })
func NewTypedTool[T any](name, description string, fn func(toolCtx *core.ToolContext, in T) (string, error)) *TypedTool[T] {
	var zero T

	wrapped := func(toolCtx *core.ToolContext, args map[string]any) (string, error) {
		in, err := decodeArgs[T](args)
		if err != nil {
			return "", &ToolError{
				Kind:    KindArgumentValidation,
				Tool:    name,
				Message: fmt.Sprintf("invalid arguments: %v", err),
				Err:     err,
			}
		}
		return fn(toolCtx, in)
	}

	return &TypedTool[T]{FunctionTool: NewFunctionToolFromStruct(name, description, zero, wrapped)}
}

func decodeArgs[T any](args map[string]any) (T, error) {
	var out T

	raw, err := json.Marshal(args)
	if err != nil {
		return out, err
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}

	return out, nil
}
