package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/internal/util"
)

// Registry maps tool names to implementations. It is built at startup,
// frozen, and afterwards shared read-only by all sessions.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	frozen bool
}

// NewRegistry creates an empty registry and registers the given tools.
// It panics on duplicates; use Register for error handling.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a tool. Names must be unique and the registry must not be frozen.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.New("tool is required")
	}

	name := t.Name()
	if name == "" {
		return errors.New("tool name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, name)
	}

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = t

	return nil
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns all registered tools sorted by name.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })

	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Dispatch looks up name, decodes and validates rawArgs against the tool's
// schema and runs the handler. It never panics; every failure is returned as
// a *ToolError:
//
//	unknown name                  -> UNKNOWN_TOOL
//	non-object JSON / schema miss -> ARGUMENT_VALIDATION
//	handler error or panic        -> TOOL_EXECUTION
//	handler *ToolError            -> forwarded unchanged
func (r *Registry) Dispatch(toolCtx *core.ToolContext, name, rawArgs string) (result string, err error) {
	logger := toolCtx.Logger()

	_, span := otel.Tracer(tracerName).Start(toolCtx.Context(), "tool.call")
	span.SetAttributes(attribute.String("tool.name", name), attribute.String("tool.call_id", toolCtx.FunctionCallID()))

	defer func() {
		if err != nil {
			span.SetAttributes(attribute.String("tool.error_kind", string(KindOf(err))))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	impl, ok := r.Get(name)
	if !ok {
		logger.Warn("tool.call.unknown", "tool", name, "fc_id", toolCtx.FunctionCallID())
		return "", &ToolError{Kind: KindUnknownTool, Tool: name, Message: fmt.Sprintf("tool %s not found", name)}
	}

	args, err := decodeRawArgs(rawArgs)
	if err != nil {
		logger.Warn("tool.call.validation_failed", "tool", name, "error", err.Error())
		return "", &ToolError{Kind: KindArgumentValidation, Tool: name, Message: fmt.Sprintf("invalid arguments: %v", err), Err: err}
	}

	if params := impl.Parameters(); params != nil {
		if err := util.ValidateParameters(args, params); err != nil {
			logger.Warn("tool.call.validation_failed", "tool", name, "error", err.Error())
			return "", &ToolError{Kind: KindArgumentValidation, Tool: name, Message: fmt.Sprintf("parameter validation failed: %v", err), Err: err}
		}
	}

	start := time.Now()

	logger.Debug("tool.call.start", "tool", name, "fc_id", toolCtx.FunctionCallID())

	result, err = safeCall(impl, toolCtx, args)
	if err != nil {
		logger.Error("tool.call.error", "tool", name, "error", err.Error(), "duration_ms", time.Since(start).Milliseconds())

		var te *ToolError
		if errors.As(err, &te) {
			return "", te
		}

		return "", &ToolError{Kind: KindExecution, Tool: name, Message: err.Error(), Err: err}
	}

	logger.Info("tool.call.success", "tool", name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}

const tracerName = "github.com/hupe1980/marketingmesh/tool"

func safeCall(impl Tool, toolCtx *core.ToolContext, args map[string]any) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			toolCtx.Logger().Error("tool.call.panic", "tool", impl.Name(), "recover", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	return impl.Call(toolCtx, args)
}

func decodeRawArgs(rawArgs string) (map[string]any, error) {
	if strings.TrimSpace(rawArgs) == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, err
	}

	if args == nil { // "null"
		return nil, errors.New("arguments must be a JSON object")
	}

	return args, nil
}
