// Package search provides the web search tool used by the brand research
// crew agent. It queries the Serper Google Search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/tool"
)

// DefaultBaseURL is the Serper API endpoint.
const DefaultBaseURL = "https://google.serper.dev"

// ToolName is the name crew definitions use to reference the search tool.
const ToolName = "search_internet"

// Result is a single organic search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"link"`
	Snippet string `json:"snippet"`
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client calls the Serper search endpoint.
type Client struct {
	apiKey string
	opts   Options
}

// NewClient creates a client authenticated with apiKey.
func NewClient(apiKey string, optFns ...func(o *Options)) *Client {
	opts := Options{
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Client{apiKey: apiKey, opts: opts}
}

// Search returns up to count organic results for query.
func (c *Client) Search(ctx context.Context, query string, count int) ([]Result, error) {
	body, err := json.Marshal(map[string]any{"q": query, "num": count})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("serper search error (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var payload struct {
		Organic []Result `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse serper response: %w", err)
	}

	if len(payload.Organic) > count {
		payload.Organic = payload.Organic[:count]
	}

	return payload.Organic, nil
}

// NewTool exposes the client as the search_internet tool.
func NewTool(client *Client) tool.Tool {
	return tool.NewFunctionTool(
		ToolName,
		"Search the internet for up-to-date information. Returns titles, links and short snippets.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
				"count": map[string]any{
					"type":        "integer",
					"description": "Number of results (1-10, default 5)",
				},
			},
			"required": []string{"query"},
		},
		func(toolCtx *core.ToolContext, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if strings.TrimSpace(query) == "" {
				return "", tool.NewToolError(tool.KindArgumentValidation, ToolName, "query must not be empty")
			}

			count := 5
			if c, ok := args["count"].(float64); ok {
				count = min(max(int(c), 1), 10)
			}

			results, err := client.Search(toolCtx.Context(), query, count)
			if err != nil {
				return "", &tool.ToolError{
					Kind:     tool.KindUpstreamHTTP,
					Tool:     ToolName,
					Resource: "search API",
					Message:  err.Error(),
					Err:      err,
				}
			}

			return format(query, results), nil
		},
	)
}

func format(query string, results []Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No results found for %q.", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}
