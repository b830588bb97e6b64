package main

import "github.com/alecthomas/kong"

// Globals are flags shared by every command.
type Globals struct {
	Config string   `short:"c" type:"path" env:"MARKETINGMESH_CONFIG" help:"TOML config file path"`
	Env    []string `default:".env" help:"Dotenv file(s) to load before reading the config"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" default:"withargs" help:"Serve the HTTP and WebSocket chat API"`
	Chat    ChatCmd    `cmd:"" help:"Chat with the assistant in the terminal"`
	History HistoryCmd `cmd:"" help:"Print the stored messages of a session as JSON"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// ServeCmd runs the chat server.
type ServeCmd struct {
	Addr string `help:"Listen address (overrides config)"`
}

// ChatCmd runs an interactive terminal session.
type ChatCmd struct {
	Session string `short:"s" help:"Session to resume; a new one is created when empty"`
	User    string `short:"u" default:"local" help:"User identity of the terminal"`
	Token   string `env:"GOOGLE_ADS_ACCESS_TOKEN" help:"Bearer token made available to tools"`
}

// HistoryCmd prints a stored session.
type HistoryCmd struct {
	Session string `arg:"" help:"Session ID"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
