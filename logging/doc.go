// Package logging provides a minimal logging interface and adapters for marketingmesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the agent loop, tools, crews and transports use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	assistant := marketingmesh.New(llm, registry, func(o *marketingmesh.Options) { o.Logger = logger })
//
// The design keeps the interface minimal to avoid vendor lock-in while
// supporting structured logging where available.
package logging
