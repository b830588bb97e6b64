package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/marketingmesh/logging"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, 10, cfg.Agent.MaxSteps)
	assert.True(t, cfg.Agent.Streaming)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, time.Hour, cfg.Credentials.TTL.Duration)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Crew.Enabled)
	assert.False(t, cfg.Server.TrustUserIDHeader)
}

func TestParse(t *testing.T) {
	cfg, err := Parse(`
[agent]
max_steps = 4
streaming = false

[llm]
provider = "anthropic"
model = "claude-3-5-haiku-latest"

[storage]
driver = "sqlite"
dsn = "file:chat.db"

[google_ads]
enabled = true
login_customer_id = "123"

[server]
trust_user_id_header = true

[credentials]
ttl = "30m"

[logging]
level = "debug"
format = "text"
`)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Agent.MaxSteps)
	assert.False(t, cfg.Agent.Streaming)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 0.7, cfg.LLM.Temperature)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.True(t, cfg.GoogleAds.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Credentials.TTL.Duration)
	assert.True(t, cfg.Server.TrustUserIDHeader)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Credentials.SweepInterval.Duration)

	lc := cfg.LoggerConfig()
	assert.Equal(t, logging.LogLevelDebug, lc.Level)
	assert.Equal(t, "text", lc.Format)
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse("[credentials]\nttl = \"soon\"\n")
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, New(), cfg)

	path := filepath.Join(t.TempDir(), "marketingmesh.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":9090\"\n"), 0o600))

	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "sk-test")

	cfg := New()
	cfg.LLM.APIKeyEnv = "TEST_LLM_KEY"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sk-test", cfg.APIKey())

	cfg.LLM.Provider = "mock"
	cfg.LLM.APIKeyEnv = "UNSET_TEST_VARIABLE"
	assert.NoError(t, cfg.Validate())

	bad := New()
	bad.LLM.Provider = "cohere"
	bad.Storage.Driver = "sqlite"
	bad.Logging.Level = "chatty"
	bad.Credentials.TTL = Duration{}

	err := bad.Validate()
	require.Error(t, err)
	for _, want := range []string{"llm.provider", "storage.dsn", "logging.level", "credentials.ttl"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MARKETINGMESH_TEST_TOKEN=dev-123\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MARKETINGMESH_TEST_TOKEN") })

	require.NoError(t, LoadEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "dev-123", os.Getenv("MARKETINGMESH_TEST_TOKEN"))

	cfg := New()
	cfg.GoogleAds.DeveloperTokenEnv = "MARKETINGMESH_TEST_TOKEN"
	assert.Equal(t, "dev-123", cfg.DeveloperToken())
}
