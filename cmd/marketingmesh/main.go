// Package main is the entry point of the marketingmesh CLI.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/hupe1980/marketingmesh/config"
	"github.com/hupe1980/marketingmesh/internal/app"
)

// Build-time variables (set via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var cli CLI

	ctx := kong.Parse(&cli,
		kong.Name("marketingmesh"),
		kong.Description("Chat-based marketing assistant."),
		kong.UsageOnError(),
		kongVars(),
	)

	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

// loadConfig reads dotenv files and the config file and validates the result.
func (g *Globals) loadConfig() (*config.Config, error) {
	if err := config.LoadEnv(g.Env...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// newApp builds the application from the global flags.
func (g *Globals) newApp(optFns ...func(c *config.Config)) (*app.App, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	for _, fn := range optFns {
		fn(cfg)
	}

	return app.New(cfg)
}

// Run prints the version.
func (c *VersionCmd) Run(_ *Globals) error {
	fmt.Printf("marketingmesh %s (commit: %s)\n", version, commit)
	return nil
}
