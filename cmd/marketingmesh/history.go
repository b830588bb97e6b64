package main

import (
	"context"
	"encoding/json"
	"os"
)

// Run prints the stored messages of a session.
func (c *HistoryCmd) Run(g *Globals) error {
	a, err := g.newApp()
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	msgs, err := a.Assistant.History(context.Background(), c.Session)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(msgs)
}
