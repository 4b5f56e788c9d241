// Package logging provides a minimal logging interface and adapters for agentpipe.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that pipelines, the worker cache, task lifecycles and the request executor use for
// observability. Arguments follow log/slog conventions: alternating key/value pairs.
// This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping an existing *slog.Logger
//   - StructuredLogger with component scoping and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	pipeline, err := agent.NewSequential("feedback", participants, func(o *agent.Options) { o.Logger = logger })
package logging
