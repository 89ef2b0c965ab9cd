// Package middleware provides per-call middleware for JSON-RPC dispatch.
//
// Middleware wraps the stage of dispatch that runs after an envelope has
// been validated: method lookup, parameter binding and execution. Each
// element of a batch passes through the chain on its own. Envelopes that
// fail validation never reach middleware.
//
// # Basic Usage
//
// Create and compose middleware:
//
//	chain := middleware.Chain(
//	    middleware.Recover(middleware.WithRecoverLogger(logger)),
//	    middleware.RequestID(),
//	    middleware.Logging(logger),
//	)
//	handler := chain(baseHandler)
//
// # Available Middleware
//
//   - Recover: Catches panics and converts them to internal errors
//   - RequestID: Injects a correlation ID into the context
//   - Timeout: Enforces call deadlines
//   - Logging: Logs call details and timing
//   - SizeLimit: Rejects calls with oversized params
//   - RateLimit: Token bucket limiting backed by fortify
//   - OTel: OpenTelemetry spans and metrics
//
// # Errors
//
// Middleware rejects a call by returning a *protocol.Error. The dispatcher
// maps the error onto the closed code table with protocol.Canonical, so
// any message set here is replaced by the fixed message for its code and
// only reaches logs.
//
// # Logging
//
// Logging goes through the small Logger interface. Zerolog adapts a
// zerolog.Logger:
//
//	logger := middleware.Zerolog(zerolog.New(os.Stderr))
package middleware
