// Package googleads contains a thin client for the advertising API and the
// two chat tools built on it. Requests carry the caller's bearer token; all
// failures are reported to the agent loop as tool errors, never as panics.
package googleads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the API root used when none is configured.
const DefaultBaseURL = "https://googleads.googleapis.com/v17"

// ErrEmptyToken is returned when a request is attempted without a token.
var ErrEmptyToken = errors.New("googleads: empty bearer token")

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Body)
}

// Customer is an account reachable with the caller's credentials.
type Customer struct {
	ID              string `json:"id"`
	DescriptiveName string `json:"descriptive_name"`
	CurrencyCode    string `json:"currency_code,omitempty"`
	TimeZone        string `json:"time_zone,omitempty"`
	Manager         bool   `json:"manager,omitempty"`
}

// Campaign is a campaign of a customer account.
type Campaign struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Status                 string `json:"status"`
	AdvertisingChannelType string `json:"advertising_channel_type,omitempty"`
	StartDate              string `json:"start_date,omitempty"`
	EndDate                string `json:"end_date,omitempty"`
}

// Options configures a Client.
type Options struct {
	// BaseURL is the API root.
	BaseURL string
	// DeveloperToken is sent as the developer-token header when set.
	DeveloperToken string
	// HTTPClient performs the requests.
	HTTPClient *http.Client
}

// Client calls the advertising API. It holds no credentials of its own; the
// bearer token is passed per call.
type Client struct {
	opts Options
}

// NewClient creates a client.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{opts: opts}
}

// ListCustomers issues GET /customers?login_customer_id=...
func (c *Client) ListCustomers(ctx context.Context, token, loginCustomerID string) ([]Customer, error) {
	var payload struct {
		Customers []Customer `json:"customers"`
	}

	if err := c.get(ctx, token, "/customers", loginCustomerID, &payload); err != nil {
		return nil, err
	}

	return payload.Customers, nil
}

// ListCampaigns issues GET /customers/{id}/campaigns?login_customer_id=...
func (c *Client) ListCampaigns(ctx context.Context, token, customerID, loginCustomerID string) ([]Campaign, error) {
	var payload struct {
		Campaigns []Campaign `json:"campaigns"`
	}

	path := "/customers/" + url.PathEscape(customerID) + "/campaigns"
	if err := c.get(ctx, token, path, loginCustomerID, &payload); err != nil {
		return nil, err
	}

	return payload.Campaigns, nil
}

func (c *Client) get(ctx context.Context, token, path, loginCustomerID string, out any) error {
	if token == "" {
		return ErrEmptyToken
	}

	u := c.opts.BaseURL + path
	if loginCustomerID != "" {
		u += "?" + url.Values{"login_customer_id": {loginCustomerID}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if c.opts.DeveloperToken != "" {
		req.Header.Set("developer-token", c.opts.DeveloperToken)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
