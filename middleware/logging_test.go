package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// mockLogger captures log calls for testing.
type mockLogger struct {
	entries []logEntry
}

type logEntry struct {
	level   string
	message string
	fields  []Field
}

func (l *mockLogger) Info(msg string, fields ...Field) {
	l.entries = append(l.entries, logEntry{level: "info", message: msg, fields: fields})
}

func (l *mockLogger) Error(msg string, fields ...Field) {
	l.entries = append(l.entries, logEntry{level: "error", message: msg, fields: fields})
}

func (l *mockLogger) Debug(msg string, fields ...Field) {
	l.entries = append(l.entries, logEntry{level: "debug", message: msg, fields: fields})
}

func (l *mockLogger) Warn(msg string, fields ...Field) {
	l.entries = append(l.entries, logEntry{level: "warn", message: msg, fields: fields})
}

func (e logEntry) field(key string) (any, bool) {
	for _, f := range e.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

func TestLogging(t *testing.T) {
	t.Run("logs successful calls", func(t *testing.T) {
		logger := &mockLogger{}

		wrapped := Logging(logger)(okHandler)
		_, _ = wrapped(context.Background(), &protocol.Request{Method: "subtract"})

		if len(logger.entries) != 1 {
			t.Fatalf("expected 1 log entry, got %d", len(logger.entries))
		}

		entry := logger.entries[0]
		if entry.level != "info" {
			t.Errorf("level = %q, want %q", entry.level, "info")
		}
		if entry.message != "call completed" {
			t.Errorf("message = %q, want %q", entry.message, "call completed")
		}
		if v, _ := entry.field("method"); v != "subtract" {
			t.Errorf("method field = %v, want subtract", v)
		}
		if v, _ := entry.field("duration"); v == nil {
			t.Error("missing duration field")
		} else if _, ok := v.(time.Duration); !ok {
			t.Errorf("duration field type = %T", v)
		}
		if v, _ := entry.field("notification"); v != true {
			t.Errorf("notification field = %v, want true", v)
		}
	})

	t.Run("logs failures with code and cause", func(t *testing.T) {
		logger := &mockLogger{}

		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, protocol.NewInvalidParams(errors.New("want 2 elements"))
		})

		_, err := Logging(logger)(handler)(context.Background(), &protocol.Request{Method: "subtract"})
		if err == nil {
			t.Fatal("expected error to pass through")
		}

		entry := logger.entries[0]
		if entry.level != "warn" || entry.message != "call rejected" {
			t.Errorf("entry = %s %q, want warn %q", entry.level, entry.message, "call rejected")
		}
		if v, _ := entry.field("code"); v != protocol.CodeInvalidParams {
			t.Errorf("code field = %v, want %d", v, protocol.CodeInvalidParams)
		}
		if v, _ := entry.field("error"); v != "jsonrpc: Invalid Params (code: -32602): want 2 elements" {
			t.Errorf("error field = %v", v)
		}
	})

	t.Run("logs error responses", func(t *testing.T) {
		logger := &mockLogger{}

		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return protocol.NewErrorResponse(req.ID, protocol.ErrInternal), nil
		})

		_, _ = Logging(logger)(handler)(context.Background(), &protocol.Request{Method: "sum"})

		if logger.entries[0].level != "error" {
			t.Errorf("level = %q, want error", logger.entries[0].level)
		}
	})

	t.Run("unclassified errors are internal", func(t *testing.T) {
		logger := &mockLogger{}

		handler := HandlerFunc(func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			return nil, errors.New("boom")
		})

		_, _ = Logging(logger)(handler)(context.Background(), &protocol.Request{ID: json.RawMessage(`"a"`), Method: "sum"})

		entry := logger.entries[0]
		if entry.level != "error" || entry.message != "call failed" {
			t.Errorf("entry = %s %q, want error %q", entry.level, entry.message, "call failed")
		}
		if v, _ := entry.field("code"); v != protocol.CodeInternalError {
			t.Errorf("code field = %v, want %d", v, protocol.CodeInternalError)
		}
		if v, _ := entry.field("id"); v != `"a"` {
			t.Errorf("id field = %v, want %q", v, `"a"`)
		}
	})

	t.Run("includes request ID", func(t *testing.T) {
		logger := &mockLogger{}
		ctx := ContextWithRequestID(context.Background(), "req-123")

		_, _ = Logging(logger)(okHandler)(ctx, &protocol.Request{Method: "sum"})

		if v, _ := logger.entries[0].field("request_id"); v != "req-123" {
			t.Errorf("request_id field = %v, want req-123", v)
		}
	})
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	logger.Info("test")
	logger.Error("test", F("key", "value"))
	logger.Debug("test")
	logger.Warn("test")
}
