package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/jsonrpc-go/middleware"
	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

var (
	errInvalidEnvelope = errors.New(`envelope needs jsonrpc "2.0" and a method name`)
	errNilHandler      = errors.New("factory returned a nil handler")
	errNoResponse      = errors.New("handler chain returned no response")
)

// encodeResult turns a method result into JSON text so the response is
// known to be encodable before it leaves the dispatcher.
func encodeResult(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return data, nil
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMiddleware adds middleware around method resolution, construction
// and execution. It only sees valid envelopes.
func WithMiddleware(mw ...middleware.Middleware) DispatcherOption {
	return func(d *Dispatcher) {
		d.middleware = append(d.middleware, mw...)
	}
}

// WithLogger sets the logger failed calls are reported to.
func WithLogger(l middleware.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithSilentNotifications suppresses the error response for failed
// notifications. By default a failed notification is answered with an
// error whose id is null.
func WithSilentNotifications() DispatcherOption {
	return func(d *Dispatcher) {
		d.silentNotifications = true
	}
}

// Dispatcher turns one decoded JSON value into at most one response.
type Dispatcher struct {
	resolver            Resolver
	middleware          []middleware.Middleware
	logger              middleware.Logger
	silentNotifications bool

	call middleware.HandlerFunc
}

// NewDispatcher creates a dispatcher over the resolver. A *Server
// resolver is sealed so later registrations fail.
func NewDispatcher(resolver Resolver, opts ...DispatcherOption) *Dispatcher {
	if s, ok := resolver.(interface{ Seal() }); ok {
		s.Seal()
	}

	d := &Dispatcher{
		resolver: resolver,
		logger:   middleware.NopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}

	d.call = middleware.Chain(d.middleware...)(d.invoke)
	return d
}

// Dispatch validates the envelope in raw, runs the method and builds the
// response. It returns nil when nothing must be sent back: a successful
// notification, or any failed notification with silent notifications on.
// Invalid envelopes are always answered. Dispatch never panics and never
// modifies raw.
func (d *Dispatcher) Dispatch(ctx context.Context, raw json.RawMessage) (resp *protocol.Response) {
	req := protocol.ParseRequest(raw)

	defer func() {
		if v := recover(); v != nil {
			resp = d.fail(&req, protocol.NewInternalError(middleware.PanicError(v)))
		}
	}()

	if !req.Valid() {
		err := protocol.NewInvalidRequest(errInvalidEnvelope)
		d.logFailure(&req, err)
		return protocol.NewErrorResponse(req.ID, err)
	}

	out, err := d.call(ctx, &req)
	switch {
	case err != nil:
		return d.fail(&req, protocol.Canonical(err))
	case out == nil:
		return d.fail(&req, protocol.NewInternalError(errNoResponse))
	case out.Error != nil:
		return d.fail(&req, protocol.Canonical(out.Error))
	}

	// Middleware may answer with its own result.
	result, err := encodeResult(out.Result)
	if err != nil {
		return d.fail(&req, protocol.NewInternalError(err))
	}

	if req.IsNotification() {
		return nil
	}
	return protocol.NewResponse(req.ID, result)
}

// invoke is the innermost handler: resolve, construct, execute.
func (d *Dispatcher) invoke(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	factory, err := d.resolver.Resolve(req.Method)
	if err != nil {
		if errors.Is(err, protocol.ErrMethodNotFound) {
			return nil, err
		}
		return nil, protocol.NewInternalError(fmt.Errorf("resolve %q: %w", req.Method, err))
	}

	handler, err := construct(factory, NewParams(req.Params))
	if err != nil {
		return nil, err
	}

	result, err := execute(ctx, handler)
	if err != nil {
		return nil, err
	}
	return protocol.NewResponse(req.ID, result), nil
}

// construct runs the factory. Every failure is Invalid Params.
func construct(factory Factory, params Params) (h Handler, err error) {
	defer func() {
		if v := recover(); v != nil {
			h, err = nil, protocol.NewInvalidParams(middleware.PanicError(v))
		}
	}()

	h, err = factory(params)
	if err != nil {
		return nil, protocol.NewInvalidParams(err)
	}
	if h == nil {
		return nil, protocol.NewInternalError(errNilHandler)
	}
	return h, nil
}

// execute runs the handler and encodes its result. Every failure,
// including a result JSON cannot represent, is Internal Error.
func execute(ctx context.Context, h Handler) (result json.RawMessage, err error) {
	defer func() {
		if v := recover(); v != nil {
			result, err = nil, protocol.NewInternalError(middleware.PanicError(v))
		}
	}()

	out, err := h.Execute(ctx)
	if err != nil {
		return nil, protocol.NewInternalError(err)
	}
	result, err = encodeResult(out)
	if err != nil {
		return nil, protocol.NewInternalError(err)
	}
	return result, nil
}

// fail logs err and builds the error response, or nil for silent
// notifications.
func (d *Dispatcher) fail(req *protocol.Request, err *protocol.Error) *protocol.Response {
	d.logFailure(req, err)
	if req.IsNotification() && d.silentNotifications {
		return nil
	}
	return protocol.NewErrorResponse(req.ID, err)
}

func (d *Dispatcher) logFailure(req *protocol.Request, err *protocol.Error) {
	fields := []middleware.Field{
		middleware.F("method", req.Method),
		middleware.F("code", err.Code),
		middleware.F("notification", req.IsNotification()),
	}
	if len(req.ID) > 0 {
		fields = append(fields, middleware.F("id", string(req.ID)))
	}
	if cause := err.Cause(); cause != nil {
		fields = append(fields, middleware.F("cause", cause.Error()))
	}

	if err.Code == protocol.CodeInternalError {
		d.logger.Error("dispatch failed", fields...)
		return
	}
	d.logger.Warn("dispatch rejected", fields...)
}
