package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/hupe1980/marketingmesh"
	"github.com/hupe1980/marketingmesh/core"
	"github.com/hupe1980/marketingmesh/stream"
)

// Run starts an interactive session on stdin/stdout. "exit" or EOF ends it.
func (c *ChatCmd) Run(g *Globals) error {
	a, err := g.newApp()
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if c.Token != "" {
		a.Credentials.Put(c.User, c.Token)
	}

	sessionID := c.Session
	if sessionID == "" {
		sessionID = core.NewID()
	}

	fmt.Fprintf(os.Stdout, "Session %s. Type \"exit\" to quit.\n", sessionID)

	return chatLoop(a.Assistant, sessionID, c.User, os.Stdin, os.Stdout)
}

func chatLoop(assistant *marketingmesh.Assistant, sessionID, userID string, in io.Reader, out io.Writer) error {
	sink := stream.NewWriterSink(out)
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")

		if !scanner.Scan() {
			return scanner.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		_, err := assistant.HandleMessage(ctx, marketingmesh.Inbound{
			SessionID: sessionID,
			UserID:    userID,
			Text:      text,
		}, sink)
		stop()

		if err != nil {
			return err
		}
	}
}
