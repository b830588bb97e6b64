package crew

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/model"
	"github.com/hupe1980/marketingmesh/tool"
)

func searchTool(queries *[]string) tool.Tool {
	return tool.NewFunctionTool("search_internet", "Search the web", map[string]any{
		"type":       "object",
		"properties": map[string]any{"query": map[string]any{"type": "string"}},
		"required":   []string{"query"},
	}, func(_ *core.ToolContext, args map[string]any) (string, error) {
		*queries = append(*queries, args["query"].(string))
		return "Acme sells anvils.", nil
	})
}

func TestSequentialCrew_Kickoff(t *testing.T) {
	def, err := DefaultDefinition()
	require.NoError(t, err)

	llm := model.NewScriptedModel(
		model.CallStep("search_internet", `{"query":"Acme pricing"}`),
		model.TextStep("Acme research summary"),
		model.TextStep("Acme strategy"),
	)

	var queries []string
	c, err := NewSequentialCrew(def, llm, func(o *Options) {
		o.Tools = []tool.Tool{searchTool(&queries)}
	})
	require.NoError(t, err)

	var steps []TaskOutput
	res, err := c.Kickoff(context.Background(), map[string]string{"company": "Acme", "topic": "pricing"}, func(out TaskOutput) {
		steps = append(steps, out)
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme strategy", res.Raw)
	require.Len(t, res.Tasks, 2)
	assert.Equal(t, res.Tasks, steps)
	assert.Equal(t, "Brand Research Specialist", steps[0].Agent)
	assert.Equal(t, "brand_research_task", steps[0].Task)
	assert.Equal(t, "Acme research summary", steps[0].Raw)
	assert.Equal(t, "strategy_task", steps[1].Task)
	assert.Equal(t, []string{"Acme pricing"}, queries)

	reqs := llm.Requests()
	require.Len(t, reqs, 3)

	first := reqs[0]
	require.Len(t, first.Tools, 1)
	assert.Equal(t, "search_internet", first.Tools[0].Function.Name)
	assert.Contains(t, first.Messages[0].Text(), "Brand Research Specialist")
	assert.Contains(t, first.Messages[1].Text(), "Research Acme with a focus on pricing")
	assert.False(t, first.Stream)

	last := reqs[2]
	assert.Empty(t, last.Tools)
	assert.Contains(t, last.Messages[0].Text(), "Marketing Strategist")
	assert.Contains(t, last.Messages[1].Text(), "Acme research summary")
}

func TestSequentialCrew_TaskFailureAborts(t *testing.T) {
	def, err := DefaultDefinition()
	require.NoError(t, err)

	llm := model.NewScriptedModel(model.ErrorStep(errors.New("rate limited")))
	c, err := NewSequentialCrew(def, llm)
	require.NoError(t, err)

	var steps int
	_, err = c.Kickoff(context.Background(), map[string]string{"company": "Acme", "topic": "x"}, func(TaskOutput) { steps++ })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "brand_research_task")
	assert.Contains(t, err.Error(), "rate limited")
	assert.Zero(t, steps)
	assert.Equal(t, 1, llm.Calls())
}

func TestSequentialCrew_Cancelled(t *testing.T) {
	def, err := DefaultDefinition()
	require.NoError(t, err)

	llm := model.NewScriptedModel(model.TextStep("unused"))
	c, err := NewSequentialCrew(def, llm)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Kickoff(ctx, map[string]string{"company": "Acme", "topic": "x"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, llm.Calls())
}
