package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// Logger is the structured logger used by the middleware, the
// dispatcher and the transports. Zerolog adapts a zerolog.Logger.
type Logger interface {
	Info(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Logging returns middleware that logs one entry per call. Completed
// calls are logged at info level. Calls refused for the caller's fault,
// such as bad params or an unknown method, are logged at warn level,
// and internal errors at error level. Failures carry the code and the
// internal cause, which the client never sees.
func Logging(logger Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			fields := callFields(ctx, req, time.Since(start))
			code, msg, failed := outcome(resp, err)
			if !failed {
				logger.Info("call completed", fields...)
				return resp, err
			}

			fields = append(fields, F("code", code), F("error", msg))
			if code == protocol.CodeInternalError {
				logger.Error("call failed", fields...)
			} else {
				logger.Warn("call rejected", fields...)
			}
			return resp, err
		}
	}
}

func callFields(ctx context.Context, req *protocol.Request, d time.Duration) []Field {
	fields := []Field{
		F("method", req.Method),
		F("duration", d),
		F("notification", req.IsNotification()),
	}
	if len(req.ID) > 0 {
		fields = append(fields, F("id", string(req.ID)))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, F("request_id", requestID))
	}
	return fields
}

// outcome reports the code and error text of a failed call. Errors that
// carry no known code are internal errors.
func outcome(resp *protocol.Response, err error) (int, string, bool) {
	if err != nil {
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			if _, known := protocol.MessageFor(rpcErr.Code); known {
				return rpcErr.Code, err.Error(), true
			}
		}
		return protocol.CodeInternalError, err.Error(), true
	}
	if resp != nil && resp.Error != nil {
		return resp.Error.Code, resp.Error.Error(), true
	}
	return 0, "", false
}

// NopLogger is a logger that discards all log entries.
type NopLogger struct{}

func (NopLogger) Info(msg string, fields ...Field)  {}
func (NopLogger) Error(msg string, fields ...Field) {}
func (NopLogger) Debug(msg string, fields ...Field) {}
func (NopLogger) Warn(msg string, fields ...Field)  {}
