// Package app wires a Config into a ready-to-serve Assistant.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/marketingmesh"
	"github.com/hupe1980/marketingmesh/agent"
	"github.com/hupe1980/marketingmesh/config"
	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/credential"
	"github.com/hupe1980/marketingmesh/crew"
	"github.com/hupe1980/marketingmesh/googleads"
	"github.com/hupe1980/marketingmesh/logging"
	"github.com/hupe1980/marketingmesh/marketing"
	"github.com/hupe1980/marketingmesh/model"
	"github.com/hupe1980/marketingmesh/model/anthropic"
	"github.com/hupe1980/marketingmesh/model/openai"
	"github.com/hupe1980/marketingmesh/search"
	"github.com/hupe1980/marketingmesh/session"
	"github.com/hupe1980/marketingmesh/tool"
)

// App bundles the long-lived components of a process.
type App struct {
	Config      *config.Config
	Assistant   *marketingmesh.Assistant
	Credentials *credential.Store
	Sessions    core.SessionStore
	Logger      logging.Logger

	closers []func() error
}

// Options overrides components that are otherwise built from the config.
type Options struct {
	// Model replaces the configured provider.
	Model model.Model
	// Logger replaces the configured logger.
	Logger logging.Logger
}

// New builds every component described by cfg.
func New(cfg *config.Config, optFns ...func(o *Options)) (*App, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(cfg.LoggerConfig())
	}

	llm := opts.Model
	if llm == nil {
		var err error
		if llm, err = NewModel(cfg.LLM); err != nil {
			return nil, err
		}
	}

	a := &App{Config: cfg, Logger: logger}

	sessions, err := a.newSessionStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.Sessions = sessions

	a.Credentials = credential.NewStore(func(o *credential.Options) {
		o.TTL = cfg.Credentials.TTL.Duration
		o.Logger = logger
	})

	registry, err := newRegistry(cfg, llm, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Assistant = marketingmesh.New(llm, registry, func(o *marketingmesh.Options) {
		o.Name = cfg.Agent.Name
		o.MaxSteps = cfg.Agent.MaxSteps
		o.MaxHistoryMessages = cfg.Agent.MaxHistoryMessages
		o.EnableStreaming = cfg.Agent.Streaming
		o.MaxConcurrentRuns = cfg.Agent.MaxConcurrentRuns
		o.SessionStore = sessions
		o.Credentials = a.Credentials.Lookup
		o.Logger = logger
		if cfg.Agent.Instruction != "" {
			instruction := agent.NewInstructionFromText(cfg.Agent.Instruction)
			o.Instruction = &instruction
		}
	})

	logger.Info("app.ready",
		"provider", cfg.LLM.Provider,
		"model", llm.Info().Name,
		"storage", cfg.Storage.Driver,
		"tools", registry.Len(),
	)

	return a, nil
}

// RunJanitor evicts expired credentials until ctx is done.
func (a *App) RunJanitor(ctx context.Context) {
	interval := a.Config.Credentials.SweepInterval.Duration
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	a.Credentials.RunJanitor(ctx, interval)
}

// Close releases storage resources.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewModel constructs the configured model provider.
func NewModel(cfg config.LLMConfig) (model.Model, error) {
	key := (&config.Config{LLM: cfg}).APIKey()

	switch cfg.Provider {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxCompletionTokens = cfg.MaxTokens
			}
			o.APIKey = key
			o.BaseURL = cfg.BaseURL
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			if cfg.MaxTokens > 0 {
				o.MaxTokens = cfg.MaxTokens
			}
			o.APIKey = key
		}), nil
	case "mock":
		return model.NewMockModel("mock", "mock"), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func (a *App) newSessionStore(cfg config.StorageConfig) (core.SessionStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return session.NewInMemoryStore(), nil
	case "sqlite":
		store, err := session.NewSQLiteStore(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

func newRegistry(cfg *config.Config, llm model.Model, logger logging.Logger) (*tool.Registry, error) {
	var research crew.Crew

	if cfg.Crew.Enabled {
		c, err := newCrew(cfg, llm, logger)
		if err != nil {
			return nil, err
		}
		research = c
	}

	var ads *googleads.Client
	if cfg.GoogleAds.Enabled {
		ads = googleads.NewClient(func(o *googleads.Options) {
			if cfg.GoogleAds.BaseURL != "" {
				o.BaseURL = cfg.GoogleAds.BaseURL
			}
			o.DeveloperToken = cfg.DeveloperToken()
		})
	}

	return marketing.NewRegistry(func(o *marketing.Options) {
		o.Crew = research
		o.Ads = ads
		o.LoginCustomerID = cfg.GoogleAds.LoginCustomerID
		o.Logger = logger
	})
}

func newCrew(cfg *config.Config, llm model.Model, logger logging.Logger) (*crew.SequentialCrew, error) {
	def, err := crew.DefaultDefinition()
	if cfg.Crew.Definition != "" {
		def, err = crew.LoadDefinition(cfg.Crew.Definition)
	}
	if err != nil {
		return nil, err
	}

	var tools []tool.Tool
	if key := cfg.SearchAPIKey(); key != "" {
		tools = append(tools, search.NewTool(search.NewClient(key, func(o *search.Options) {
			if cfg.Crew.SearchBaseURL != "" {
				o.BaseURL = cfg.Crew.SearchBaseURL
			}
		})))
	}

	return crew.NewSequentialCrew(def, llm, func(o *crew.Options) {
		o.Tools = tools
		o.MaxSteps = cfg.Crew.MaxSteps
		o.Logger = logging.With(logger, "component", "crew")
	})
}
