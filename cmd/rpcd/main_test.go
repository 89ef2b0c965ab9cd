package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/jsonrpc-go"
	"github.com/felixgeelhaar/jsonrpc-go/middleware"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info entry written at warn level: %s", out)
	}
	if !strings.Contains(out, `"message":"shown"`) || !strings.Contains(out, `"app":"rpcd"`) {
		t.Errorf("output = %s", out)
	}
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(LogConfig{Level: "loud", Format: "json"}, &buf)

	log.Debug().Msg("debug")
	log.Info().Msg("info")

	if strings.Contains(buf.String(), `"message":"debug"`) {
		t.Error("unknown level should fall back to info")
	}
	if !strings.Contains(buf.String(), `"message":"info"`) {
		t.Errorf("output = %s", buf.String())
	}
}

func TestBuildMiddleware(t *testing.T) {
	cfg := Default()
	if got := len(buildMiddleware(cfg, middleware.NopLogger{}, nil)); got != 5 {
		t.Errorf("default stack has %d entries, want 5", got)
	}

	cfg.RateLimit.Enabled = true
	cfg.Limits.CallTimeoutMs = 0
	cfg.Telemetry.Enabled = true
	tel, err := newTelemetry(cfg.Telemetry, io.Discard)
	if err != nil {
		t.Fatalf("newTelemetry() error = %v", err)
	}
	defer func() { _ = tel.shutdown(context.Background()) }()

	if got := len(buildMiddleware(cfg, middleware.NopLogger{}, tel)); got != 6 {
		t.Errorf("stack has %d entries, want 6", got)
	}
}

// lockedBuffer is written to by the exporters' background goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestTelemetry_Exports(t *testing.T) {
	var out lockedBuffer
	cfg := Default()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.ServiceName = "rpcd-test"

	tel, err := newTelemetry(cfg.Telemetry, &out)
	if err != nil {
		t.Fatalf("newTelemetry() error = %v", err)
	}

	srv, err := newServer()
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	handler := jsonrpc.NewHandler(srv, serveOptions(cfg, middleware.NopLogger{}, tel)...)
	payload := handler.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"sum","params":[1,2],"id":1}`))
	if payload.NoContent() {
		t.Fatal("expected a response")
	}

	if err := tel.shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"jsonrpc.sum", "jsonrpc.server.calls", "jsonrpc.server.call.duration", "rpcd-test"} {
		if !strings.Contains(got, want) {
			t.Errorf("exported telemetry is missing %q:\n%s", want, got)
		}
	}
}

func TestServeOptions(t *testing.T) {
	cfg := Default()
	cfg.Server.SilentNotifications = true
	cfg.Limits.MaxParamsBytes = 8

	srv, err := newServer()
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	handler := jsonrpc.NewHandler(srv, serveOptions(cfg, middleware.NopLogger{}, nil)...)

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "call",
			body: `{"jsonrpc":"2.0","method":"sum","params":[1,2],"id":1}`,
			want: `{"jsonrpc":"2.0","result":3,"id":1}`,
		},
		{
			name: "params over the limit",
			body: `{"jsonrpc":"2.0","method":"sum","params":[1,2,3,4,5],"id":2}`,
			want: `{"jsonrpc":"2.0","error":{"code":-32600,"message":"Invalid Request"},"id":2}`,
		},
		{
			name: "silent failed notification",
			body: `{"jsonrpc":"2.0","method":"missing"}`,
			want: `null`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := handler.HandleMessage(context.Background(), json.RawMessage(tt.body))
			got := "null"
			if !payload.NoContent() {
				data, err := json.Marshal(payload)
				if err != nil {
					t.Fatalf("marshal: %v", err)
				}
				got = string(data)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHTTPOptions(t *testing.T) {
	cfg := Default()
	cfg.Server.CORSOrigins = []string{"http://a.test"}
	if got := len(httpOptions(cfg, middleware.NopLogger{})); got != 7 {
		t.Errorf("got %d options, want 7", got)
	}

	cfg.Server.Metrics = false
	cfg.Server.CORSOrigins = nil
	if got := len(httpOptions(cfg, middleware.NopLogger{})); got != 5 {
		t.Errorf("got %d options, want 5", got)
	}
}
