package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/tool"
)

func newToolContext() *core.ToolContext {
	return core.NewToolContext(core.NewRunContext(context.Background(), "sess-1"), ToolName, "fc-1")
}

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-KEY"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "acme anvils", body["q"])

		_, _ = w.Write([]byte(`{"organic":[
			{"title":"Acme","link":"https://acme.example","snippet":"Anvils since 1949"},
			{"title":"Acme News","link":"https://news.example/acme","snippet":"New anvil line"},
			{"title":"Extra","link":"https://x.example","snippet":"x"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("secret", func(o *Options) { o.BaseURL = srv.URL + "/" })

	results, err := c.Search(context.Background(), "acme anvils", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://acme.example", results[0].URL)
}

func TestTool_FormatsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"organic":[{"title":"Acme","link":"https://acme.example","snippet":"Anvils"}]}`))
	}))
	defer srv.Close()

	reg := tool.NewRegistry(NewTool(NewClient("k", func(o *Options) { o.BaseURL = srv.URL })))

	out, err := reg.Dispatch(newToolContext(), ToolName, `{"query":"acme","count":50}`)
	require.NoError(t, err)
	assert.Contains(t, out, `Search results for "acme"`)
	assert.Contains(t, out, "1. Acme")
	assert.Contains(t, out, "https://acme.example")
}

func TestTool_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	reg := tool.NewRegistry(NewTool(NewClient("k", func(o *Options) { o.BaseURL = srv.URL })))

	out, err := reg.Dispatch(newToolContext(), ToolName, `{"query":"acme"}`)
	require.Error(t, err)
	assert.Equal(t, tool.KindUpstreamHTTP, tool.KindOf(err))
	assert.Contains(t, tool.Render(out, err), "Error accessing search API")
	assert.Contains(t, tool.Render(out, err), "quota exceeded")
}

func TestTool_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"organic":[]}`))
	}))
	defer srv.Close()

	reg := tool.NewRegistry(NewTool(NewClient("k", func(o *Options) { o.BaseURL = srv.URL })))

	out, err := reg.Dispatch(newToolContext(), ToolName, `{"query":"nothing"}`)
	require.NoError(t, err)
	assert.Equal(t, `No results found for "nothing".`, out)
}
