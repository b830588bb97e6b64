package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/marketingmesh/chat"
	"github.com/hupe1980/marketingmesh/config"
)

// Run starts the chat server and blocks until SIGINT or SIGTERM.
func (c *ServeCmd) Run(g *Globals) error {
	a, err := g.newApp(func(cfg *config.Config) {
		if c.Addr != "" {
			cfg.Server.Addr = c.Addr
		}
	})
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.RunJanitor(ctx)

	srv := chat.NewServer(a.Assistant, a.Credentials, func(o *chat.Options) {
		o.AllowedOrigins = a.Config.Server.AllowedOrigins
		if a.Config.Server.TrustUserIDHeader {
			o.Authenticator = chat.TrustedHeaderAuthenticator
		}
		o.Logger = a.Logger
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(a.Config.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout.Duration)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return <-errCh
}
