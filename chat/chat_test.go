package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/marketingmesh"
	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/credential"
	"github.com/hupe1980/marketingmesh/crew"
	"github.com/hupe1980/marketingmesh/marketing"
	"github.com/hupe1980/marketingmesh/model"
	"github.com/hupe1980/marketingmesh/tool"
)

type fixture struct {
	server *httptest.Server
	creds  *credential.Store
	llm    *model.ScriptedModel
}

func newFixture(t *testing.T, llm *model.ScriptedModel, tools *tool.Registry, optFns ...func(o *Options)) *fixture {
	t.Helper()

	creds := credential.NewStore()
	assistant := marketingmesh.New(llm, tools, func(o *marketingmesh.Options) {
		o.Credentials = creds.Lookup
	})

	srv := httptest.NewServer(NewServer(assistant, creds, optFns...).Handler())
	t.Cleanup(srv.Close)

	return &fixture{server: srv, creds: creds, llm: llm}
}

func (f *fixture) do(t *testing.T, method, path, body string, header http.Header) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return resp
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, model.NewScriptedModel(), nil)

	resp := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSendAndHistory(t *testing.T) {
	tokenTool := tool.NewFunctionTool("whoami", "", nil, func(tc *core.ToolContext, _ map[string]any) (string, error) {
		token, ok := tc.BearerToken()
		if !ok {
			return "anonymous", nil
		}
		return token, nil
	})

	llm := model.NewScriptedModel(model.CallStep("whoami", `{}`), model.TextStep("Hello Ada"))
	f := newFixture(t, llm, tool.NewRegistry(tokenTool), func(o *Options) {
		o.Authenticator = TrustedHeaderAuthenticator
	})

	resp := f.do(t, http.MethodPost, "/api/sessions/s1/messages", `{"text":"hi"}`, http.Header{
		"Authorization": {"Bearer secret-token"},
		UserIDHeader:    {"ada"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sent SendResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
	assert.Equal(t, "Hello Ada", sent.Reply.Text())
	require.Len(t, sent.Messages, 3)
	assert.Equal(t, "secret-token", sent.Messages[1].FunctionResponses()[0].Response)

	token, ok := f.creds.Token("ada")
	require.True(t, ok)
	assert.Equal(t, "secret-token", token)

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/messages", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var history HistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	require.Len(t, history.Messages, 4)
	assert.Equal(t, "hi", history.Messages[0].Text())
	assert.Equal(t, "ada", history.Messages[0].Author)
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(t, model.NewScriptedModel(), nil)

	resp := f.do(t, http.MethodPost, "/api/sessions/s1/messages", `{"text":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/sessions/s1/messages", `{"text":`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	f := newFixture(t, model.NewScriptedModel(), nil, func(o *Options) { o.RequireAuth = true })

	resp := f.do(t, http.MethodGet, "/api/sessions/s1/messages", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/messages", "", http.Header{"Authorization": {"Basic abc"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/sessions/s1/messages", "", http.Header{"Authorization": {"Bearer abc"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.creds.Len())
}

func TestAuth_CallerCannotReplaceAnotherUsersToken(t *testing.T) {
	f := newFixture(t, model.NewScriptedModel(), nil)
	f.creds.Put("alice", "alice-token")

	resp := f.do(t, http.MethodPost, "/api/sessions", "", http.Header{
		"Authorization": {"Bearer mallory-token"},
		UserIDHeader:    {"alice"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	token, ok := f.creds.Token("alice")
	require.True(t, ok)
	assert.Equal(t, "alice-token", token)

	mallory, ok := f.creds.Token(tokenUserID("mallory-token"))
	require.True(t, ok)
	assert.Equal(t, "mallory-token", mallory)
}

func TestAuth_ConflictingTokenRejected(t *testing.T) {
	f := newFixture(t, model.NewScriptedModel(), nil)
	f.creds.Put(tokenUserID("tok"), "other-token")

	resp := f.do(t, http.MethodPost, "/api/sessions", "", http.Header{"Authorization": {"Bearer tok"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token, _ := f.creds.Token(tokenUserID("tok"))
	assert.Equal(t, "other-token", token)
}

func TestTrustedHeaderAuthenticator(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer tok")
	r.Header.Set(UserIDHeader, "ada")

	id, err := TrustedHeaderAuthenticator(r)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "ada", Token: "tok", Trusted: true}, id)

	untrusted, err := BearerAuthenticator(r)
	require.NoError(t, err)
	assert.Equal(t, tokenUserID("tok"), untrusted.UserID)
	assert.False(t, untrusted.Trusted)

	r.Header.Del(UserIDHeader)
	id, err = TrustedHeaderAuthenticator(r)
	require.NoError(t, err)
	assert.False(t, id.Trusted)
}

func TestBearerAuthenticator_DerivesStableUserID(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	r1.Header.Set("Authorization", "Bearer tok")
	r2 := httptest.NewRequest(http.MethodGet, "/ws?access_token=tok", nil)

	id1, err := BearerAuthenticator(r1)
	require.NoError(t, err)
	id2, err := BearerAuthenticator(r2)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.True(t, strings.HasPrefix(id1.UserID, "user-"))

	anon, err := BearerAuthenticator(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.True(t, anon.Anonymous())
}

func TestCancel_NoActiveRun(t *testing.T) {
	f := newFixture(t, model.NewScriptedModel(), nil)

	resp := f.do(t, http.MethodDelete, "/api/sessions/s1/run", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t, model.NewScriptedModel(), nil)

	resp := f.do(t, http.MethodPost, "/api/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body["session_id"])
}

func dialWS(t *testing.T, f *fixture, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, frameType string) []Frame {
	t.Helper()

	var frames []Frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		frames = append(frames, f)
		if f.Type == frameType {
			return frames
		}
	}
}

func TestWebSocket_StreamsRun(t *testing.T) {
	research := crew.Func(func(_ context.Context, _ map[string]string, onStep crew.StepCallback) (crew.Result, error) {
		onStep(crew.TaskOutput{Agent: "Researcher", Task: "brand_research_task"})
		return crew.Result{Raw: "facts"}, nil
	})
	reg, err := marketing.NewRegistry(func(o *marketing.Options) { o.Crew = research })
	require.NoError(t, err)

	llm := model.NewScriptedModel(
		model.CallStep(marketing.BrandResearchToolName, `{"company":"Acme","topic":"brand"}`),
		model.Step{Text: "Acme is great.", Chunks: []string{"Acme ", "is great."}},
	)
	f := newFixture(t, llm, reg)

	conn := dialWS(t, f, "session_id=ws-1&access_token=tok")
	ready := readUntil(t, conn, FrameReady)
	assert.Equal(t, "ws-1", ready[len(ready)-1].SessionID)

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameMessage, Text: "research Acme"}))
	frames := readUntil(t, conn, FrameDone)

	var tokens bytes.Buffer
	var progress []string
	var messages int
	for _, fr := range frames {
		switch fr.Type {
		case FrameToken:
			tokens.WriteString(fr.Text)
		case FrameProgress:
			progress = append(progress, fr.Text)
		case FrameMessage:
			messages++
		}
	}

	assert.Equal(t, "Acme is great.", tokens.String())
	assert.Equal(t, []string{
		"Starting brand research...",
		"Agent: Researcher is working on task: brand_research_task...",
		"Research completed!",
	}, progress)
	assert.Equal(t, 3, messages)

	done := frames[len(frames)-1]
	require.NotNil(t, done.Message)
	assert.Equal(t, "Acme is great.", done.Message.Text())
}

func TestWebSocket_InvalidFrames(t *testing.T) {
	f := newFixture(t, model.NewScriptedModel(), nil)
	conn := dialWS(t, f, "session_id=ws-2")
	readUntil(t, conn, FrameReady)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	frames := readUntil(t, conn, FrameError)
	assert.Equal(t, "invalid JSON frame", frames[len(frames)-1].Error)

	require.NoError(t, conn.WriteJSON(Frame{Type: "shout"}))
	frames = readUntil(t, conn, FrameError)
	assert.Contains(t, frames[len(frames)-1].Error, "unknown frame type")

	require.NoError(t, conn.WriteJSON(Frame{Type: FrameCancel}))
	frames = readUntil(t, conn, FrameError)
	assert.Equal(t, marketingmesh.ErrNoActiveRun.Error(), frames[len(frames)-1].Error)
}
