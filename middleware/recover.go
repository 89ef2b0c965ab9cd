package middleware

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// PanicHandler turns a recovered panic into the call's outcome.
type PanicHandler func(ctx context.Context, req *protocol.Request, panicVal any) (*protocol.Response, error)

// RecoverOption configures the recover middleware.
type RecoverOption func(*recoverConfig)

type recoverConfig struct {
	logger  Logger
	handler PanicHandler
}

// WithRecoverLogger reports every recovered panic, with its stack, to l.
func WithRecoverLogger(l Logger) RecoverOption {
	return func(c *recoverConfig) {
		c.logger = l
	}
}

// Recover returns middleware that turns a panic in the method into an
// Internal Error. The panic value becomes the error's cause; the client
// only ever sees the fixed message.
func Recover(opts ...RecoverOption) Middleware {
	cfg := &recoverConfig{handler: internalErrorOnPanic}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.middleware()
}

// RecoverWithHandler returns middleware that hands recovered panics to
// handler instead of producing an Internal Error.
func RecoverWithHandler(handler PanicHandler, opts ...RecoverOption) Middleware {
	cfg := &recoverConfig{handler: handler}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.middleware()
}

func (c *recoverConfig) middleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (resp *protocol.Response, err error) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if c.logger != nil {
					c.logger.Error("panic recovered",
						F("method", req.Method),
						F("id", string(req.ID)),
						F("panic", fmt.Sprint(v)),
						F("stack", string(debug.Stack())),
					)
				}
				resp, err = c.handler(ctx, req, v)
			}()
			return next(ctx, req)
		}
	}
}

func internalErrorOnPanic(_ context.Context, _ *protocol.Request, panicVal any) (*protocol.Response, error) {
	return nil, protocol.NewInternalError(PanicError(panicVal))
}

// PanicError converts a recovered panic value to an error. Error values
// stay reachable through errors.Is.
func PanicError(panicVal any) error {
	if err, ok := panicVal.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", panicVal)
}
