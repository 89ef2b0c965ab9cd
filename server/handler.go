package server

import "context"

// Handler is a constructed, ready-to-run method invocation.
type Handler interface {
	Execute(ctx context.Context) (any, error)
}

// Factory validates params and builds a Handler. Any error or panic it
// produces is reported to the client as Invalid Params.
type Factory func(params Params) (Handler, error)

// ExecuteFunc adapts a function to the Handler interface. Any error or
// panic it produces is reported to the client as Internal Error.
type ExecuteFunc func(ctx context.Context) (any, error)

// Execute calls f(ctx).
func (f ExecuteFunc) Execute(ctx context.Context) (any, error) {
	return f(ctx)
}
