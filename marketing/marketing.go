// Package marketing assembles the marketing assistant's tool set and system
// instruction.
package marketing

import (
	"fmt"

	"github.com/hupe1980/marketingmesh/agent"
	"github.com/hupe1980/marketingmesh/crew"
	"github.com/hupe1980/marketingmesh/googleads"
	"github.com/hupe1980/marketingmesh/internal/util"
	"github.com/hupe1980/marketingmesh/logging"
	"github.com/hupe1980/marketingmesh/tool"
)

// DefaultInstructionText restricts the assistant to marketing topics.
const DefaultInstructionText = "You are a knowledgeable and friendly assistant specialized in marketing. " +
	"Your job is to help users with questions strictly related to marketing. " +
	"If users ask about anything else, politely steer the conversation back to marketing topics."

// DefaultInstruction returns the static marketing instruction.
func DefaultInstruction() agent.Instruction {
	return agent.NewInstructionFromText(DefaultInstructionText)
}

// BrandResearchToolName is the delegated research tool.
const BrandResearchToolName = "brand_research_agent"

// Options selects the tools of the registry.
type Options struct {
	// Crew backs brand_research_agent. Nil omits the tool.
	Crew crew.Crew
	// Ads backs the advertising tools. Nil omits them.
	Ads *googleads.Client
	// LoginCustomerID is the default manager account for the advertising tools.
	LoginCustomerID string
	// DisableTemplates omits the template planning tools.
	DisableTemplates bool
	// Extra tools are registered after the built-in ones.
	Extra  []tool.Tool
	Logger logging.Logger
}

// BrandResearchInput are the arguments of brand_research_agent.
type BrandResearchInput struct {
	Company string `json:"company" description:"The company name"`
	Topic   string `json:"topic" description:"The topic of the research"`
}

// NewBrandResearchTool wraps c as the delegated brand research tool.
func NewBrandResearchTool(c crew.Crew) tool.Tool {
	return crew.NewDelegatedTool(
		BrandResearchToolName,
		"Do a branding research for a given company with detailed information.",
		util.CreateSchema(BrandResearchInput{}),
		c,
	)
}

// NewRegistry builds and freezes the assistant's tool registry.
func NewRegistry(optFns ...func(o *Options)) (*tool.Registry, error) {
	opts := Options{Logger: logging.NoOpLogger{}}

	for _, fn := range optFns {
		fn(&opts)
	}

	var tools []tool.Tool

	if !opts.DisableTemplates {
		tools = append(tools, TemplateTools()...)
	}

	if opts.Crew != nil {
		tools = append(tools, NewBrandResearchTool(opts.Crew))
	}

	if opts.Ads != nil {
		tools = append(tools, googleads.NewTools(opts.Ads, func(o *googleads.ToolOptions) {
			o.LoginCustomerID = opts.LoginCustomerID
		})...)
	}

	tools = append(tools, opts.Extra...)

	registry := tool.NewRegistry()
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("register %s: %w", t.Name(), err)
		}
	}
	registry.Freeze()

	names := make([]string, 0, registry.Len())
	for _, t := range registry.Tools() {
		names = append(names, t.Name())
	}
	opts.Logger.Info("marketing.registry.ready", "tools", names)

	return registry, nil
}
