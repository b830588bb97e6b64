package tool

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/marketingmesh/core"
)

func newToolContext(name string) *core.ToolContext {
	return core.NewToolContext(core.NewRunContext(context.Background(), "sess-1"), name, "fc-1")
}

func sumTool() *FunctionTool {
	return NewFunctionTool("sum", "Add numbers", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}, func(_ *core.ToolContext, args map[string]any) (string, error) {
		return strconv.FormatFloat(args["a"].(float64)+args["b"].(float64), 'f', -1, 64), nil
	})
}

// -------------------- Registry --------------------

func TestRegistry_RegisterDuplicateAndFrozen(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(sumTool()))

	err := r.Register(sumTool())
	assert.ErrorIs(t, err, ErrDuplicateTool)

	r.Freeze()
	assert.True(t, r.Frozen())

	err = r.Register(NewFunctionTool("other", "", nil, nil))
	assert.ErrorIs(t, err, ErrRegistryFrozen)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_ToolsSorted(t *testing.T) {
	r := NewRegistry(
		NewFunctionTool("zeta", "", nil, nil),
		NewFunctionTool("alpha", "", nil, nil),
	)

	names := []string{}
	for _, tl := range r.Tools() {
		names = append(names, tl.Name())
	}
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestRegistry_DispatchSuccess(t *testing.T) {
	r := NewRegistry(sumTool())

	out, err := r.Dispatch(newToolContext("sum"), "sum", `{"a": 2, "b": 3}`)
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

func TestRegistry_DispatchUnknownTool(t *testing.T) {
	r := NewRegistry()

	_, err := r.Dispatch(newToolContext("nope"), "nope", `{}`)
	assert.ErrorIs(t, err, ErrUnknownTool)
	assert.Equal(t, KindUnknownTool, KindOf(err))
	assert.Equal(t, "Error: tool nope not found", Render("", err))
}

func TestRegistry_DispatchArgumentValidation(t *testing.T) {
	r := NewRegistry(sumTool())

	for name, raw := range map[string]string{
		"malformed":  `{"a":`,
		"not object": `[1, 2]`,
		"null":       `null`,
		"missing":    `{"a": 1}`,
		"wrong type": `{"a": "one", "b": 2}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Dispatch(newToolContext("sum"), "sum", raw)
			assert.ErrorIs(t, err, ErrArgumentValidation)
			assert.Contains(t, Render("", err), "Error:")
		})
	}
}

func TestRegistry_DispatchHandlerErrors(t *testing.T) {
	r := NewRegistry(
		NewFunctionTool("fail", "", nil, func(*core.ToolContext, map[string]any) (string, error) {
			return "", errors.New("boom")
		}),
		NewFunctionTool("panic", "", nil, func(*core.ToolContext, map[string]any) (string, error) {
			panic("kaboom")
		}),
		NewFunctionTool("typed", "", nil, func(*core.ToolContext, map[string]any) (string, error) {
			return "", &ToolError{Kind: KindMissingCredential, Tool: "typed", Message: "Authorization token not found in config"}
		}),
	)

	_, err := r.Dispatch(newToolContext("fail"), "fail", "")
	assert.Equal(t, KindExecution, KindOf(err))
	assert.Equal(t, "Error: boom", Render("", err))

	_, err = r.Dispatch(newToolContext("panic"), "panic", "")
	assert.Equal(t, KindExecution, KindOf(err))
	assert.Contains(t, Render("", err), "kaboom")

	_, err = r.Dispatch(newToolContext("typed"), "typed", "")
	assert.ErrorIs(t, err, ErrMissingCredential)
	assert.Equal(t, "Error: Authorization token not found in config", Render("", err))
}

// -------------------- Typed tools --------------------

type briefArgs struct {
	Strategy string `json:"strategy" description:"Strategy to turn into a brief"`
	Weeks    int    `json:"weeks,omitempty"`
}

func TestTypedTool(t *testing.T) {
	brief := NewTypedTool("brief", "Brief", func(_ *core.ToolContext, in briefArgs) (string, error) {
		return in.Strategy + "/" + strconv.Itoa(in.Weeks), nil
	})

	assert.Equal(t, []string{"strategy"}, brief.Parameters()["required"])

	r := NewRegistry(brief)

	out, err := r.Dispatch(newToolContext("brief"), "brief", `{"strategy": "digital", "weeks": 12}`)
	require.NoError(t, err)
	assert.Equal(t, "digital/12", out)

	_, err = r.Dispatch(newToolContext("brief"), "brief", `{"weeks": 12}`)
	assert.ErrorIs(t, err, ErrArgumentValidation)

	_, err = r.Dispatch(newToolContext("brief"), "brief", `{"strategy": "x", "weeks": 1.5}`)
	assert.ErrorIs(t, err, ErrArgumentValidation)
}

// -------------------- Rendering --------------------

func TestRender(t *testing.T) {
	assert.Equal(t, "ok", Render("ok", nil))
	assert.Equal(t, "Error: plain", Render("", errors.New("plain")))

	upstream := &ToolError{Kind: KindUpstreamHTTP, Tool: "ads", Resource: "Google Ads API", Message: "401 Unauthorized"}
	assert.Equal(t, "Error accessing Google Ads API: 401 Unauthorized", Render("", upstream))

	wrapped := errors.Join(errors.New("context"), upstream)
	assert.Equal(t, KindUpstreamHTTP, KindOf(wrapped))

	assert.Contains(t, upstream.Error(), "UPSTREAM_HTTP")
	assert.Contains(t, upstream.Error(), "ads")
}
