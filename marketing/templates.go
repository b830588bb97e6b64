package marketing

import (
	"strings"
	"text/template"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/tool"
)

// CompanyInput is the input of branding_research.
type CompanyInput struct {
	Company string `json:"company" description:"The company name"`
}

// AudienceInput is the input of develop_strategy.
type AudienceInput struct {
	TargetAudience string `json:"target_audience" description:"The audience the campaign addresses"`
}

// StrategyInput is the input of generate_campaign_brief.
type StrategyInput struct {
	Strategy string `json:"strategy" description:"The marketing strategy the brief implements"`
}

// BriefInput is the input of validate_campaign.
type BriefInput struct {
	Brief string `json:"brief" description:"The campaign brief to review"`
}

// ChannelsInput is the input of execute_campaign.
type ChannelsInput struct {
	Channels string `json:"channels" description:"Comma separated channels to launch on"`
}

var (
	brandingTmpl = template.Must(template.New("branding_research").Parse(
		"Research Results for {{.Company}}: This is a company that sells AI-powered marketing tools."))

	strategyTmpl = template.Must(template.New("develop_strategy").Parse(
		"Marketing Strategy for {{.TargetAudience}}: Focus on digital channels with personalized messaging " +
			"highlighting AI-powered solutions. Recommend a 3-month campaign with weekly social media posts and monthly webinars."))

	briefTmpl = template.Must(template.New("generate_campaign_brief").Parse(
		"Campaign Brief based on '{{.Strategy}}': 12-week campaign timeline with creative assets for LinkedIn, " +
			"Twitter, and email sequences. Weekly content calendar with key messaging points and call-to-action recommendations."))

	validateTmpl = template.Must(template.New("validate_campaign").Parse(
		"Validation Report for '{{.Brief}}': Campaign brief approved with minor adjustments to tone. " +
			"Ensure all creative assets maintain consistent branding. Ready for execution upon final stakeholder sign-off."))

	executeTmpl = template.Must(template.New("execute_campaign").Parse(
		"Campaign Execution Report for channels '{{.Channels}}': Campaign launched successfully across specified channels. " +
			"Initial metrics show 15% engagement rate. Weekly performance reports scheduled for stakeholder review."))
)

// TemplateTools returns the campaign planning tools. Their output is
// templated text; they perform no external calls.
func TemplateTools() []tool.Tool {
	return []tool.Tool{
		templateTool[CompanyInput]("branding_research",
			"Do a branding research for a given company.", brandingTmpl),
		templateTool[AudienceInput]("develop_strategy",
			"Develop a marketing strategy based on research findings and campaign objectives.", strategyTmpl),
		templateTool[StrategyInput]("generate_campaign_brief",
			"Generate a detailed campaign brief aligning with the strategy and objectives.", briefTmpl),
		templateTool[BriefInput]("validate_campaign",
			"Facilitate human review and approval of the campaign brief.", validateTmpl),
		templateTool[ChannelsInput]("execute_campaign",
			"Implement the approved campaign across selected channels.", executeTmpl),
	}
}

func templateTool[T any](name, description string, tmpl *template.Template) tool.Tool {
	return tool.NewTypedTool(name, description, func(toolCtx *core.ToolContext, in T) (string, error) {
		var b strings.Builder
		if err := tmpl.Execute(&b, in); err != nil {
			return "", err
		}
		toolCtx.Logger().Debug("marketing.template.rendered", "tool", name, "length", b.Len())
		return b.String(), nil
	})
}
