// Package testutil provides testing utilities for JSON-RPC servers.
//
// This package helps developers test their methods end to end through the
// batcher and dispatcher, without a network, and provides assertion
// helpers for responses.
//
// Example usage:
//
//	func TestMyServer(t *testing.T) {
//	    srv := server.New()
//	    srv.Method("greet").Handler(server.Typed(func(ctx context.Context, p struct{ Name string }) (string, error) {
//	        return "Hello, " + p.Name, nil
//	    }))
//
//	    tc := testutil.NewTestClient(t, srv)
//
//	    resp := tc.SendRequest("greet", map[string]any{"Name": "World"})
//	    testutil.AssertResult(t, resp, "Hello, World")
//	}
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
	"github.com/felixgeelhaar/jsonrpc-go/server"
	"github.com/felixgeelhaar/jsonrpc-go/transport"
)

// TestClient sends messages to an in-memory handler.
type TestClient struct {
	t       testing.TB
	handler transport.Handler
	reqID   atomic.Int64
	ctx     context.Context
}

// NewTestClient creates a test client dispatching to srv. The server is
// sealed by the dispatcher.
func NewTestClient(t testing.TB, srv *server.Server, opts ...server.DispatcherOption) *TestClient {
	t.Helper()
	return NewTestClientWithHandler(t, server.NewBatcher(server.NewDispatcher(srv, opts...)))
}

// NewTestClientWithHandler creates a test client with a custom handler.
// This is useful for testing batch options and middleware.
func NewTestClientWithHandler(t testing.TB, handler transport.Handler) *TestClient {
	t.Helper()
	return &TestClient{
		t:       t,
		handler: handler,
		ctx:     context.Background(),
	}
}

// WithContext returns a copy of the client that sends with ctx.
func (tc *TestClient) WithContext(ctx context.Context) *TestClient {
	next := &TestClient{t: tc.t, handler: tc.handler, ctx: ctx}
	next.reqID.Store(tc.reqID.Load())
	return next
}

func (tc *TestClient) nextID() json.RawMessage {
	return json.RawMessage(strconv.FormatInt(tc.reqID.Add(1), 10))
}

// Send sends raw JSON text, single or batch, and returns the payload.
func (tc *TestClient) Send(raw string) protocol.Payload {
	tc.t.Helper()
	return tc.handler.HandleMessage(tc.ctx, json.RawMessage(raw))
}

// SendRequest sends a call with the next id and returns its response.
func (tc *TestClient) SendRequest(method string, params any) *protocol.Response {
	tc.t.Helper()

	payload := tc.send(method, params, tc.nextID())
	if payload.NoContent() {
		tc.t.Fatalf("%s: no response for a call", method)
	}
	return payload.Responses[0]
}

// Call sends a call and returns the JSON-encoded result or the error.
func (tc *TestClient) Call(method string, params any) (json.RawMessage, error) {
	tc.t.Helper()

	resp := tc.SendRequest(method, params)
	if resp.Error != nil {
		return nil, resp.Error
	}
	data, err := json.Marshal(resp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return data, nil
}

// Notify sends a notification and returns what came back, normally
// nothing.
func (tc *TestClient) Notify(method string, params any) protocol.Payload {
	tc.t.Helper()
	return tc.send(method, params, nil)
}

func (tc *TestClient) send(method string, params any, id json.RawMessage) protocol.Payload {
	tc.t.Helper()

	req := protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      id,
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			tc.t.Fatalf("failed to marshal params: %v", err)
		}
		req.Params = data
	}

	data, err := json.Marshal(req)
	if err != nil {
		tc.t.Fatalf("failed to marshal request: %v", err)
	}
	return tc.handler.HandleMessage(tc.ctx, data)
}

// AssertJSON asserts that v encodes to the same JSON as want, ignoring
// whitespace and object key order.
func AssertJSON(t testing.TB, v any, want string) {
	t.Helper()

	got, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var gotValue, wantValue any
	if err := json.Unmarshal(got, &gotValue); err != nil {
		t.Fatalf("failed to decode %s: %v", got, err)
	}
	if err := json.Unmarshal([]byte(want), &wantValue); err != nil {
		t.Fatalf("failed to decode expected %s: %v", want, err)
	}

	gotNorm, _ := json.Marshal(gotValue)
	wantNorm, _ := json.Marshal(wantValue)
	if !bytes.Equal(gotNorm, wantNorm) {
		t.Errorf("got %s, want %s", gotNorm, wantNorm)
	}
}

// AssertResult asserts that resp succeeded with a result encoding like want.
func AssertResult(t testing.TB, resp *protocol.Response, want any) {
	t.Helper()

	if resp == nil {
		t.Fatal("response is nil")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	wantJSON, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("failed to marshal expected result: %v", err)
	}
	AssertJSON(t, resp.Result, string(wantJSON))
}

// AssertError asserts that resp failed with code and its fixed message.
func AssertError(t testing.TB, resp *protocol.Response, code int) {
	t.Helper()

	if resp == nil {
		t.Fatal("response is nil")
	}
	if resp.Error == nil {
		t.Fatalf("expected error code %d, got result %v", code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Errorf("error code = %d, want %d", resp.Error.Code, code)
	}
	if msg, ok := protocol.MessageFor(code); ok && resp.Error.Message != msg {
		t.Errorf("error message = %q, want %q", resp.Error.Message, msg)
	}
}

// AssertNoContent asserts that the payload is empty.
func AssertNoContent(t testing.TB, payload protocol.Payload) {
	t.Helper()

	if !payload.NoContent() {
		data, _ := json.Marshal(payload)
		t.Errorf("expected no content, got %s", data)
	}
}

// LinePipe feeds newline-delimited messages to a stdio transport and
// reads its replies.
type LinePipe struct {
	in  *bytes.Buffer
	out *bytes.Buffer
	mu  sync.Mutex
}

// NewLinePipe creates an empty pipe.
func NewLinePipe() *LinePipe {
	return &LinePipe{
		in:  &bytes.Buffer{},
		out: &bytes.Buffer{},
	}
}

// WriteLine queues one raw line of input.
func (p *LinePipe) WriteLine(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.in.WriteString(line)
	p.in.WriteString("\n")
}

// WriteRequest queues a request as one line of input.
func (p *LinePipe) WriteRequest(req protocol.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	p.WriteLine(string(data))
	return nil
}

// Input returns the reader the transport consumes. Queue input before
// serving.
func (p *LinePipe) Input() io.Reader {
	return p.in
}

// Output returns the writer the transport replies to.
func (p *LinePipe) Output() io.Writer {
	return p
}

// Write implements io.Writer for the transport's output.
func (p *LinePipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

// ReadLine returns the next reply line without its newline, or io.EOF.
func (p *LinePipe) ReadLine() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	line, err := p.out.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if len(line) == 0 {
		return "", io.EOF
	}
	return string(bytes.TrimSuffix(line, []byte("\n"))), nil
}
