package googleads

import (
	"fmt"
	"strings"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/tool"
)

const (
	// CustomersToolName lists accessible customer accounts.
	CustomersToolName = "google_ads_customers_agent"
	// CampaignsToolName lists the campaigns of one customer.
	CampaignsToolName = "google_ads_campaign_agent"

	resourceName = "Google Ads API"
)

// MissingTokenMessage is the tool output when the session has no token.
const MissingTokenMessage = "Authorization token not found in config"

// ToolOptions configures the advertising tools.
type ToolOptions struct {
	// LoginCustomerID is used when the model does not pass one.
	LoginCustomerID string
}

// CustomersInput are the arguments of google_ads_customers_agent.
type CustomersInput struct {
	LoginCustomerID string `json:"login_customer_id,omitempty" description:"Manager account id used to log in; defaults to the configured one"`
}

// CampaignsInput are the arguments of google_ads_campaign_agent.
type CampaignsInput struct {
	CustomerID      string `json:"customer_id" description:"Customer account id whose campaigns are listed"`
	LoginCustomerID string `json:"login_customer_id,omitempty" description:"Manager account id used to log in; defaults to the configured one"`
}

// NewTools returns both advertising tools backed by client.
func NewTools(client *Client, optFns ...func(o *ToolOptions)) []tool.Tool {
	return []tool.Tool{
		NewCustomersTool(client, optFns...),
		NewCampaignsTool(client, optFns...),
	}
}

// NewCustomersTool lists the customer accounts accessible with the caller's token.
func NewCustomersTool(client *Client, optFns ...func(o *ToolOptions)) tool.Tool {
	opts := toolOptions(optFns)

	return tool.NewTypedTool(CustomersToolName,
		"List the Google Ads customer accounts the signed-in user can access.",
		func(toolCtx *core.ToolContext, in CustomersInput) (string, error) {
			token, ok := toolCtx.BearerToken()
			if !ok || token == "" {
				return "", missingToken(CustomersToolName)
			}

			customers, err := client.ListCustomers(toolCtx.Context(), token, firstNonEmpty(in.LoginCustomerID, opts.LoginCustomerID))
			if err != nil {
				toolCtx.Logger().Warn("googleads.customers.error", "error", err.Error())
				return "", upstream(CustomersToolName, err)
			}

			return formatCustomers(customers), nil
		})
}

// NewCampaignsTool lists the campaigns of a customer account.
func NewCampaignsTool(client *Client, optFns ...func(o *ToolOptions)) tool.Tool {
	opts := toolOptions(optFns)

	return tool.NewTypedTool(CampaignsToolName,
		"List the Google Ads campaigns of a customer account with their status.",
		func(toolCtx *core.ToolContext, in CampaignsInput) (string, error) {
			token, ok := toolCtx.BearerToken()
			if !ok || token == "" {
				return "", missingToken(CampaignsToolName)
			}

			if strings.TrimSpace(in.CustomerID) == "" {
				return "", tool.NewToolError(tool.KindArgumentValidation, CampaignsToolName, "customer_id must not be empty")
			}

			campaigns, err := client.ListCampaigns(toolCtx.Context(), token, in.CustomerID, firstNonEmpty(in.LoginCustomerID, opts.LoginCustomerID))
			if err != nil {
				toolCtx.Logger().Warn("googleads.campaigns.error", "customer", in.CustomerID, "error", err.Error())
				return "", upstream(CampaignsToolName, err)
			}

			return formatCampaigns(in.CustomerID, campaigns), nil
		})
}

func toolOptions(optFns []func(o *ToolOptions)) ToolOptions {
	var opts ToolOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

func missingToken(toolName string) error {
	return tool.NewToolError(tool.KindMissingCredential, toolName, MissingTokenMessage)
}

func upstream(toolName string, err error) error {
	return &tool.ToolError{
		Kind:     tool.KindUpstreamHTTP,
		Tool:     toolName,
		Resource: resourceName,
		Message:  err.Error(),
		Err:      err,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func formatCustomers(customers []Customer) string {
	if len(customers) == 0 {
		return "No accessible Google Ads customers found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d Google Ads customer(s):", len(customers))
	for _, c := range customers {
		fmt.Fprintf(&b, "\n- %s (id %s", firstNonEmpty(c.DescriptiveName, "unnamed"), c.ID)
		if c.CurrencyCode != "" {
			fmt.Fprintf(&b, ", %s", c.CurrencyCode)
		}
		if c.Manager {
			b.WriteString(", manager")
		}
		b.WriteString(")")
	}
	return b.String()
}

func formatCampaigns(customerID string, campaigns []Campaign) string {
	if len(campaigns) == 0 {
		return fmt.Sprintf("Customer %s has no campaigns.", customerID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Customer %s has %d campaign(s):", customerID, len(campaigns))
	for _, c := range campaigns {
		fmt.Fprintf(&b, "\n- %s (id %s, %s", c.Name, c.ID, firstNonEmpty(c.Status, "UNKNOWN"))
		if c.AdvertisingChannelType != "" {
			fmt.Fprintf(&b, ", %s", c.AdvertisingChannelType)
		}
		b.WriteString(")")
	}
	return b.String()
}
