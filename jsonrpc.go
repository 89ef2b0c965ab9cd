// Package jsonrpc provides a framework for building JSON-RPC 2.0 servers.
//
// jsonrpc-go validates envelopes, resolves methods from a sealed registry,
// runs handlers in two stages (construct with params, then execute) and
// classifies every failure into the standard error codes:
//   - Typed handlers with positional or named parameter binding
//   - Gin-style middleware chains
//   - Pluggable transports (HTTP, stdio)
//   - Batches, notifications and production-ready defaults
//
// Basic usage:
//
//	srv := jsonrpc.NewServer()
//
//	type AddParams struct {
//	    A int64 `json:"a"`
//	    B int64 `json:"b"`
//	}
//
//	srv.Method("add").Handler(jsonrpc.Typed(func(ctx context.Context, p AddParams) (int64, error) {
//	    return p.A + p.B, nil
//	}))
//
//	jsonrpc.ServeHTTP(ctx, srv, ":8080")
package jsonrpc

import (
	"context"
	"time"

	"github.com/felixgeelhaar/jsonrpc-go/middleware"
	"github.com/felixgeelhaar/jsonrpc-go/protocol"
	"github.com/felixgeelhaar/jsonrpc-go/server"
	"github.com/felixgeelhaar/jsonrpc-go/transport"
)

// Re-export core types for convenience

// Server is the method registry.
type Server = server.Server

// Handler executes one call after construction.
type Handler = server.Handler

// Factory constructs a Handler from the call's params.
type Factory = server.Factory

// Params is a read-only view over a call's params.
type Params = server.Params

// Protocol types
type Request = protocol.Request
type Response = protocol.Response
type Error = protocol.Error

// Error codes.
const (
	CodeParseError     = protocol.CodeParseError
	CodeInvalidRequest = protocol.CodeInvalidRequest
	CodeMethodNotFound = protocol.CodeMethodNotFound
	CodeInvalidParams  = protocol.CodeInvalidParams
	CodeInternalError  = protocol.CodeInternalError
	CodeRateLimited    = protocol.CodeRateLimited
)

// Middleware types
type Middleware = middleware.Middleware
type MiddlewareHandlerFunc = middleware.HandlerFunc
type Logger = middleware.Logger
type LogField = middleware.Field
type RateLimitOption = middleware.RateLimitOption

// RateLimit re-exports for convenience.
var (
	RateLimit            = middleware.RateLimit
	RateLimitByMethod    = middleware.RateLimitByMethod
	RateLimitByClient    = middleware.RateLimitByClient
	WithRateLimitKeyFunc = middleware.WithRateLimitKeyFunc
	WithRateLimitLogger  = middleware.WithRateLimitLogger
	WithRateLimitExempt  = middleware.WithRateLimitExempt
)

// SizeLimit re-exports for convenience.
type SizeLimitOption = middleware.SizeLimitOption

var (
	SizeLimit           = middleware.SizeLimit
	WithSizeLimitLogger = middleware.WithSizeLimitLogger
)

// Size limit presets.
const (
	KB = middleware.KB
	MB = middleware.MB
)

// HTTPOption configures the HTTP transport.
type HTTPOption = transport.HTTPOption

// StdioOption configures the stdio transport.
type StdioOption = transport.StdioOption

// ServeOption configures how the server is run.
type ServeOption func(*serveOptions)

type serveOptions struct {
	middleware          []Middleware
	logger              Logger
	silentNotifications bool
	batchConcurrency    int
	maxBatchSize        int
	stdio               []StdioOption
}

// WithMiddleware adds middleware to the call handling chain.
func WithMiddleware(m ...Middleware) ServeOption {
	return func(o *serveOptions) {
		o.middleware = append(o.middleware, m...)
	}
}

// WithLogger sets the logger for dispatch failures and transport events.
func WithLogger(l Logger) ServeOption {
	return func(o *serveOptions) {
		o.logger = l
	}
}

// WithSilentNotifications drops the error responses of failed
// notifications instead of sending them with a null id.
func WithSilentNotifications() ServeOption {
	return func(o *serveOptions) {
		o.silentNotifications = true
	}
}

// WithBatchConcurrency dispatches up to n batch elements at once.
func WithBatchConcurrency(n int) ServeOption {
	return func(o *serveOptions) {
		o.batchConcurrency = n
	}
}

// WithMaxBatchSize rejects batches with more than n elements.
func WithMaxBatchSize(n int) ServeOption {
	return func(o *serveOptions) {
		o.maxBatchSize = n
	}
}

// WithStdioOptions configures the transport used by ServeStdio.
func WithStdioOptions(opts ...StdioOption) ServeOption {
	return func(o *serveOptions) {
		o.stdio = append(o.stdio, opts...)
	}
}

// NewServer creates an empty method registry.
func NewServer() *Server {
	return server.New()
}

// Typed adapts a function over a params struct into a Factory.
// See server.Typed for the binding rules.
func Typed[P, R any](fn func(ctx context.Context, params P) (R, error)) Factory {
	return server.Typed(fn)
}

// NewHandler seals srv and returns the transport handler dispatching to it.
func NewHandler(srv *Server, opts ...ServeOption) *server.Batcher {
	options := newServeOptions(opts)

	dispatchOpts := []server.DispatcherOption{server.WithLogger(options.logger)}
	if len(options.middleware) > 0 {
		dispatchOpts = append(dispatchOpts, server.WithMiddleware(options.middleware...))
	}
	if options.silentNotifications {
		dispatchOpts = append(dispatchOpts, server.WithSilentNotifications())
	}

	return server.NewBatcher(
		server.NewDispatcher(srv, dispatchOpts...),
		server.WithBatchConcurrency(options.batchConcurrency),
		server.WithMaxBatchSize(options.maxBatchSize),
	)
}

func newServeOptions(opts []ServeOption) *serveOptions {
	options := &serveOptions{
		logger:           middleware.NopLogger{},
		batchConcurrency: 1,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// ServeStdio runs the server using stdio transport.
// This blocks until the context is canceled, stdin ends or an error occurs.
func ServeStdio(ctx context.Context, srv *Server, opts ...ServeOption) error {
	options := newServeOptions(opts)
	stdioOpts := append([]StdioOption{transport.WithStdioLogger(options.logger)}, options.stdio...)
	t := transport.NewStdio(stdioOpts...)
	return t.Serve(ctx, NewHandler(srv, opts...))
}

// ServeHTTP runs the server using HTTP transport.
// This blocks until the context is canceled or an error occurs.
func ServeHTTP(ctx context.Context, srv *Server, addr string, opts ...HTTPOption) error {
	t := transport.NewHTTP(addr, opts...)
	return t.Serve(ctx, NewHandler(srv))
}

// ServeHTTPWithMiddleware runs the server using HTTP transport with middleware support.
func ServeHTTPWithMiddleware(ctx context.Context, srv *Server, addr string, httpOpts []HTTPOption, serveOpts ...ServeOption) error {
	options := newServeOptions(serveOpts)
	httpOpts = append([]HTTPOption{transport.WithHTTPLogger(options.logger)}, httpOpts...)
	t := transport.NewHTTP(addr, httpOpts...)
	return t.Serve(ctx, NewHandler(srv, serveOpts...))
}

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return transport.WithReadTimeout(d)
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return transport.WithWriteTimeout(d)
}

// Middleware re-exports

// Chain composes multiple middleware into a single middleware.
func Chain(middlewares ...Middleware) Middleware {
	return middleware.Chain(middlewares...)
}

// Recover returns middleware that catches panics and converts them to internal errors.
func Recover() Middleware {
	return middleware.Recover()
}

// Timeout returns middleware that enforces a call deadline.
func Timeout(d time.Duration) Middleware {
	return middleware.Timeout(d)
}

// RequestID returns middleware that injects a unique request ID into the context.
func RequestID() Middleware {
	return middleware.RequestID()
}

// RequestIDFromContext returns the request ID from the context, or empty string if not set.
func RequestIDFromContext(ctx context.Context) string {
	return middleware.RequestIDFromContext(ctx)
}

// Logging returns middleware that logs call details.
func Logging(logger Logger) Middleware {
	return middleware.Logging(logger)
}

// DefaultMiddleware returns the recommended production middleware stack.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// DefaultMiddlewareWithTimeout returns the default stack with a timeout middleware.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}

// LogF creates a new log field with the given key and value.
func LogF(key string, value any) LogField {
	return middleware.F(key, value)
}
