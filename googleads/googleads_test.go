package googleads

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/tool"
)

func toolContext(token string) *core.ToolContext {
	runCtx := core.NewRunContext(context.Background(), "sess-1", func(o *core.RunContextOptions) {
		o.UserID = "user-1"
		o.Credentials = func(userID string) (string, bool) {
			if token == "" || userID != "user-1" {
				return "", false
			}
			return token, true
		}
	})
	return core.NewToolContext(runCtx, CampaignsToolName, "fc-1")
}

func newRegistry(srvURL string) *tool.Registry {
	client := NewClient(func(o *Options) {
		o.BaseURL = srvURL
		o.DeveloperToken = "dev-token"
	})
	reg := tool.NewRegistry(NewTools(client, func(o *ToolOptions) { o.LoginCustomerID = "999" })...)
	reg.Freeze()
	return reg
}

func TestCampaignsTool_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/123/campaigns", r.URL.Path)
		assert.Equal(t, "999", r.URL.Query().Get("login_customer_id"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "dev-token", r.Header.Get("developer-token"))
		_, _ = w.Write([]byte(`{"campaigns":[
			{"id":"1","name":"Spring Sale","status":"ENABLED","advertising_channel_type":"SEARCH"},
			{"id":"2","name":"Brand","status":"PAUSED"}
		]}`))
	}))
	defer srv.Close()

	out, err := newRegistry(srv.URL).Dispatch(toolContext("tok"), CampaignsToolName, `{"customer_id":"123"}`)
	require.NoError(t, err)
	assert.Equal(t, "Customer 123 has 2 campaign(s):\n- Spring Sale (id 1, ENABLED, SEARCH)\n- Brand (id 2, PAUSED)", out)
}

func TestCampaignsTool_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out string
	var err error
	require.NotPanics(t, func() {
		out, err = newRegistry(srv.URL).Dispatch(toolContext("expired"), CampaignsToolName, `{"customer_id":"123"}`)
	})

	require.Error(t, err)
	assert.Equal(t, tool.KindUpstreamHTTP, tool.KindOf(err))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	text := tool.Render(out, err)
	assert.Contains(t, text, "Error accessing")
	assert.Contains(t, text, "Google Ads API")
	assert.Contains(t, text, "invalid token")
}

func TestCampaignsTool_MissingTokenMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	out, err := newRegistry(srv.URL).Dispatch(toolContext(""), CampaignsToolName, `{"customer_id":"123"}`)
	require.Error(t, err)
	assert.Equal(t, tool.KindMissingCredential, tool.KindOf(err))
	assert.ErrorIs(t, err, tool.ErrMissingCredential)
	assert.Equal(t, "Error: Authorization token not found in config", tool.Render(out, err))
	assert.Zero(t, hits.Load())
}

func TestCustomersTool_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers", r.URL.Path)
		_, _ = w.Write([]byte(`{"customers": [`))
	}))
	defer srv.Close()

	out, err := newRegistry(srv.URL).Dispatch(toolContext("tok"), CustomersToolName, `{}`)
	require.Error(t, err)
	assert.Equal(t, tool.KindUpstreamHTTP, tool.KindOf(err))
	assert.Contains(t, tool.Render(out, err), "Error accessing Google Ads API: decode response")
}

func TestCustomersTool_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "777", r.URL.Query().Get("login_customer_id"))
		_, _ = w.Write([]byte(`{"customers":[{"id":"123","descriptive_name":"Acme","currency_code":"EUR","manager":true}]}`))
	}))
	defer srv.Close()

	out, err := newRegistry(srv.URL).Dispatch(toolContext("tok"), CustomersToolName, `{"login_customer_id":"777"}`)
	require.NoError(t, err)
	assert.Equal(t, "Found 1 Google Ads customer(s):\n- Acme (id 123, EUR, manager)", out)
}

func TestCampaignsTool_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	out, err := newRegistry(url).Dispatch(toolContext("tok"), CampaignsToolName, `{"customer_id":"123"}`)
	require.Error(t, err)
	assert.Contains(t, tool.Render(out, err), "Error accessing Google Ads API")
}

func TestClient_EmptyToken(t *testing.T) {
	_, err := NewClient().ListCustomers(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyToken)
}
