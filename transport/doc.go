// Package transport provides JSON-RPC transport implementations.
//
// Transports read whole messages, reject text that is not JSON with a
// parse error, and hand everything else to a Handler. The Handler
// returns a protocol.Payload; a payload with no responses means nothing
// is sent back.
//
// # HTTP Transport
//
// JSON-RPC over HTTP POST:
//
//	t := transport.NewHTTP(":8080",
//	    transport.WithPath("/rpc"),
//	    transport.WithMetrics(transport.NewMetrics("jsonrpc")),
//	    transport.WithDefaultCORS(),
//	)
//	err := t.Serve(ctx, handler)
//
// Status codes:
//
//	200  a response object or array
//	204  no content (notifications only)
//	400  the body is not JSON; the body is a -32700 Parse error
//	405  anything but POST
//	413  the body exceeds the size limit
//	503  the server is draining
//
// Bodies sent with Content-Type application/cbor are decoded as CBOR and
// answered in CBOR. GET /health reports liveness and GET /metrics serves
// Prometheus metrics when enabled.
//
// # Stdio Transport
//
// Newline-delimited JSON over stdin and stdout:
//
//	t := transport.NewStdio()
//	err := t.Serve(ctx, handler)
//
// Lines that are not JSON are answered with a parse error line. Messages
// with no content produce no output.
package transport
