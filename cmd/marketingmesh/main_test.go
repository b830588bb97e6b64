package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/marketingmesh"
	"github.com/hupe1980/marketingmesh/model"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()

	var cli CLI
	parser, err := kong.New(&cli, kongVars())
	require.NoError(t, err)

	ctx, err := parser.Parse(args)
	require.NoError(t, err)

	return &cli, ctx
}

func TestCLI_ServeIsDefault(t *testing.T) {
	cli, ctx := parse(t)

	assert.Equal(t, "serve", ctx.Command())
	assert.Equal(t, []string{".env"}, cli.Env)
}

func TestCLI_ServeAddr(t *testing.T) {
	cli, _ := parse(t, "--config", "mesh.toml", "serve", "--addr", ":9090")

	assert.Equal(t, ":9090", cli.Serve.Addr)
	assert.True(t, strings.HasSuffix(cli.Config, "mesh.toml"))
}

func TestCLI_Chat(t *testing.T) {
	cli, ctx := parse(t, "chat", "-s", "s1", "--token", "tok")

	assert.Equal(t, "chat", ctx.Command())
	assert.Equal(t, "s1", cli.Chat.Session)
	assert.Equal(t, "local", cli.Chat.User)
	assert.Equal(t, "tok", cli.Chat.Token)
}

func TestCLI_History(t *testing.T) {
	cli, ctx := parse(t, "history", "s1")

	assert.Equal(t, "history <session>", ctx.Command())
	assert.Equal(t, "s1", cli.History.Session)
}

func TestChatLoop(t *testing.T) {
	llm := model.NewScriptedModel(model.TextStep("Hello!"), model.TextStep("Bye!"))
	assistant := marketingmesh.New(llm, nil, func(o *marketingmesh.Options) {
		o.EnableStreaming = false
	})

	var out bytes.Buffer
	err := chatLoop(assistant, "s1", "local", strings.NewReader("hi\n\nthanks\nexit\nignored\n"), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Hello!")
	assert.Contains(t, out.String(), "Bye!")
	assert.Equal(t, 2, llm.Calls())

	msgs, err := assistant.SessionStore().Load(t.Context(), "s1")
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}
