// Package transport provides JSON-RPC transport implementations.
package transport

import (
	"context"
	"encoding/json"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// Handler processes one inbound message, a single JSON value or a batch,
// and returns what to send back. The body is valid JSON text.
type Handler interface {
	HandleMessage(ctx context.Context, body json.RawMessage) protocol.Payload
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, body json.RawMessage) protocol.Payload

// HandleMessage calls f(ctx, body).
func (f HandlerFunc) HandleMessage(ctx context.Context, body json.RawMessage) protocol.Payload {
	return f(ctx, body)
}

// Transport feeds inbound messages to a Handler and delivers its
// payloads. HTTP and Stdio implement it.
type Transport interface {
	// Serve blocks until ctx is canceled, the input ends or the
	// transport fails.
	Serve(ctx context.Context, handler Handler) error

	// Addr describes where the transport listens.
	Addr() string
}
