package marketing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/marketingmesh/agent"
	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/crew"
	"github.com/hupe1980/marketingmesh/googleads"
	"github.com/hupe1980/marketingmesh/model"
	"github.com/hupe1980/marketingmesh/tool"
)

func newToolContext() *core.ToolContext {
	return core.NewToolContext(core.NewRunContext(context.Background(), "sess-1"), "t", "fc-1")
}

func TestTemplateTools(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	tests := []struct {
		name string
		args string
		want string
	}{
		{"branding_research", `{"company":"Acme"}`,
			"Research Results for Acme: This is a company that sells AI-powered marketing tools."},
		{"develop_strategy", `{"target_audience":"CMOs"}`,
			"Marketing Strategy for CMOs: Focus on digital channels with personalized messaging highlighting AI-powered solutions. Recommend a 3-month campaign with weekly social media posts and monthly webinars."},
		{"generate_campaign_brief", `{"strategy":"digital first"}`,
			"Campaign Brief based on 'digital first': 12-week campaign timeline with creative assets for LinkedIn, Twitter, and email sequences. Weekly content calendar with key messaging points and call-to-action recommendations."},
		{"validate_campaign", `{"brief":"Q3 brief"}`,
			"Validation Report for 'Q3 brief': Campaign brief approved with minor adjustments to tone. Ensure all creative assets maintain consistent branding. Ready for execution upon final stakeholder sign-off."},
		{"execute_campaign", `{"channels":"LinkedIn, email"}`,
			"Campaign Execution Report for channels 'LinkedIn, email': Campaign launched successfully across specified channels. Initial metrics show 15% engagement rate. Weekly performance reports scheduled for stakeholder review."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := reg.Dispatch(newToolContext(), tt.name, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestTemplateTools_MissingArgument(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	_, err = reg.Dispatch(newToolContext(), "develop_strategy", `{}`)
	assert.Equal(t, tool.KindArgumentValidation, tool.KindOf(err))
}

func TestNewRegistry_Composition(t *testing.T) {
	research := crew.Func(func(context.Context, map[string]string, crew.StepCallback) (crew.Result, error) {
		return crew.Result{Raw: "ok"}, nil
	})

	reg, err := NewRegistry(func(o *Options) {
		o.Crew = research
		o.Ads = googleads.NewClient()
	})
	require.NoError(t, err)

	assert.True(t, reg.Frozen())
	assert.Equal(t, 8, reg.Len())
	for _, name := range []string{BrandResearchToolName, googleads.CampaignsToolName, googleads.CustomersToolName, "execute_campaign"} {
		_, ok := reg.Get(name)
		assert.True(t, ok, name)
	}

	assert.ErrorIs(t, reg.Register(tool.NewFunctionTool("late", "", nil, nil)), tool.ErrRegistryFrozen)
}

func TestNewRegistry_DuplicateExtra(t *testing.T) {
	dup := tool.NewFunctionTool("branding_research", "", nil, func(*core.ToolContext, map[string]any) (string, error) {
		return "", nil
	})

	_, err := NewRegistry(func(o *Options) { o.Extra = []tool.Tool{dup} })
	assert.ErrorIs(t, err, tool.ErrDuplicateTool)
}

func TestBrandResearchTool_Schema(t *testing.T) {
	params := NewBrandResearchTool(crew.Func(nil)).Parameters()
	assert.ElementsMatch(t, []string{"company", "topic"}, params["required"])
}

func TestLoopWithMarketingTools(t *testing.T) {
	reg, err := NewRegistry(func(o *Options) { o.DisableTemplates = false })
	require.NoError(t, err)

	llm := model.NewScriptedModel(
		model.CallStep("develop_strategy", `{"target_audience":"startups"}`),
		model.TextStep("Here is your strategy."),
	)
	loop := agent.NewLoop("assistant", llm, func(o *agent.Options) { o.EnableStreaming = false })

	msgCh, errCh := loop.Run(core.NewRunContext(context.Background(), "sess-1"),
		[]core.Message{core.NewUserMessage("Plan a campaign for startups")}, reg, DefaultInstruction())

	var msgs []core.Message
	for m := range msgCh {
		msgs = append(msgs, m)
	}
	require.NoError(t, <-errCh)
	require.Len(t, msgs, 3)

	responses := msgs[1].FunctionResponses()
	require.Len(t, responses, 1)
	assert.Contains(t, responses[0].Response, "Marketing Strategy for startups")
	assert.Equal(t, "Here is your strategy.", msgs[2].Text())

	system := llm.Requests()[0].Messages[0]
	assert.Equal(t, core.RoleSystem, system.Role)
	assert.Equal(t, DefaultInstructionText, system.Text())
}
