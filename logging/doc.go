// Package logging provides the minimal logging interface shared by every
// Trekka package, together with slog-backed implementations.
//
// The Logger interface defines the standard key/value logging methods
// (Debug, Info, Warn, Error). This package includes:
//
//   - Logger interface for dependency injection
//   - StructuredLogger with component and thread scoping helpers
//   - LogCall and WithThread helpers that work with any Logger
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	eng := engine.New(states, registry, llm, func(o *engine.Options) {
//		o.Logger = logger.WithComponent("engine")
//	})
package logging
