// Package config loads the assistant configuration from a TOML file and the
// process environment. Secrets are never stored in the file; sections name
// the environment variables that hold them (api_key_env, ...).
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/hupe1980/marketingmesh/logging"
)

// Duration decodes TOML strings such as "90s" or "1h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete assistant configuration.
type Config struct {
	Agent       AgentConfig       `toml:"agent"`
	LLM         LLMConfig         `toml:"llm"`
	Storage     StorageConfig     `toml:"storage"`
	Server      ServerConfig      `toml:"server"`
	GoogleAds   GoogleAdsConfig   `toml:"google_ads"`
	Credentials CredentialsConfig `toml:"credentials"`
	Crew        CrewConfig        `toml:"crew"`
	Logging     LoggingConfig     `toml:"logging"`
}

// AgentConfig tunes the agent loop.
type AgentConfig struct {
	Name               string `toml:"name"`
	Instruction        string `toml:"instruction"` // overrides the built-in marketing prompt
	MaxSteps           int    `toml:"max_steps"`
	MaxHistoryMessages int    `toml:"max_history_messages"`
	Streaming          bool   `toml:"streaming"`
	MaxConcurrentRuns  int64  `toml:"max_concurrent_runs"`
}

// LLMConfig selects the model provider.
type LLMConfig struct {
	Provider    string  `toml:"provider"` // openai | anthropic | mock
	Model       string  `toml:"model"`
	APIKeyEnv   string  `toml:"api_key_env"`
	BaseURL     string  `toml:"base_url"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int64   `toml:"max_tokens"`
}

// StorageConfig selects the conversation memory backend.
type StorageConfig struct {
	Driver string `toml:"driver"` // memory | sqlite
	DSN    string `toml:"dsn"`
}

// ServerConfig configures the chat server.
type ServerConfig struct {
	Addr            string   `toml:"addr"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	// TrustUserIDHeader accepts X-User-ID from an authenticating proxy.
	TrustUserIDHeader bool `toml:"trust_user_id_header"`
}

// GoogleAdsConfig configures the advertising API tools.
type GoogleAdsConfig struct {
	Enabled           bool   `toml:"enabled"`
	BaseURL           string `toml:"base_url"`
	DeveloperTokenEnv string `toml:"developer_token_env"`
	LoginCustomerID   string `toml:"login_customer_id"`
}

// CredentialsConfig configures the bearer token store.
type CredentialsConfig struct {
	TTL           Duration `toml:"ttl"`
	SweepInterval Duration `toml:"sweep_interval"`
}

// CrewConfig configures the delegated research crew.
type CrewConfig struct {
	Enabled         bool   `toml:"enabled"`
	Definition      string `toml:"definition"` // YAML file; empty selects the embedded crew
	MaxSteps        int    `toml:"max_steps"`
	SearchAPIKeyEnv string `toml:"search_api_key_env"`
	SearchBaseURL   string `toml:"search_base_url"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json | text
}

// New returns a configuration with defaults applied.
func New() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:      "assistant",
			MaxSteps:  10,
			Streaming: true,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Storage: StorageConfig{
			Driver: "memory",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
		},
		GoogleAds: GoogleAdsConfig{
			DeveloperTokenEnv: "GOOGLE_ADS_DEVELOPER_TOKEN",
		},
		Credentials: CredentialsConfig{
			TTL:           Duration{time.Hour},
			SweepInterval: Duration{5 * time.Minute},
		},
		Crew: CrewConfig{
			Enabled:         true,
			MaxSteps:        5,
			SearchAPIKeyEnv: "SERPER_API_KEY",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load decodes path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := New()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Parse decodes TOML text over the defaults.
func Parse(data string) (*Config, error) {
	cfg := New()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadEnv loads .env files into the process environment. Missing files are
// ignored; variables already set are kept.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	return nil
}

// Validate reports unusable settings.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case !slices.Contains([]string{"openai", "anthropic", "mock"}, c.LLM.Provider):
		errs = append(errs, fmt.Errorf("llm.provider: unsupported provider %q", c.LLM.Provider))
	case c.LLM.Provider != "mock" && c.APIKey() == "":
		errs = append(errs, fmt.Errorf("llm: environment variable %s is not set", c.apiKeyEnv()))
	}

	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn: required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported driver %q", c.Storage.Driver))
	}

	if c.Agent.MaxSteps < 0 {
		errs = append(errs, errors.New("agent.max_steps: must not be negative"))
	}

	if c.Credentials.TTL.Duration <= 0 {
		errs = append(errs, errors.New("credentials.ttl: must be positive"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Errorf("logging.format: unsupported format %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// APIKey returns the LLM API key from the configured environment variable.
func (c *Config) APIKey() string {
	env := c.apiKeyEnv()
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}

func (c *Config) apiKeyEnv() string {
	if c.LLM.APIKeyEnv != "" {
		return c.LLM.APIKeyEnv
	}
	return DefaultAPIKeyEnv(c.LLM.Provider)
}

// DefaultAPIKeyEnv returns the conventional variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	default:
		return ""
	}
}

// DeveloperToken returns the advertising API developer token, if any.
func (c *Config) DeveloperToken() string {
	return envValue(c.GoogleAds.DeveloperTokenEnv)
}

// SearchAPIKey returns the web search API key, if any.
func (c *Config) SearchAPIKey() string {
	return envValue(c.Crew.SearchAPIKeyEnv)
}

// LoggerConfig converts the logging section.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()
	if level, err := logging.ParseLevel(c.Logging.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = strings.ToLower(c.Logging.Format)
	cfg.Component = "marketingmesh"
	cfg.Output = os.Stderr
	return cfg
}

func envValue(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
