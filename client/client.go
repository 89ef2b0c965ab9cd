// Package client provides a JSON-RPC 2.0 client for the HTTP transport.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/rpc/v2/json2"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// ErrNoResponse is returned when the server sends no content for a call
// that expects a response.
var ErrNoResponse = errors.New("client: server sent no response")

// StatusError is returned for HTTP statuses that carry no JSON-RPC payload.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    http.Header
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		if hc != nil {
			o.httpClient = hc
		}
	}
}

// WithTimeout sets the default timeout for requests.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(o *clientOptions) {
		o.headers.Add(key, value)
	}
}

// Client calls methods on a JSON-RPC endpoint over HTTP POST.
type Client struct {
	endpoint string
	opts     clientOptions
	nextID   atomic.Int64
}

// New creates a client for the endpoint URL, e.g. http://localhost:8080/rpc.
func New(endpoint string, opts ...Option) *Client {
	options := clientOptions{
		httpClient: http.DefaultClient,
		timeout:    30 * time.Second,
		headers:    make(http.Header),
	}

	for _, opt := range opts {
		opt(&options)
	}

	return &Client{
		endpoint: endpoint,
		opts:     options,
	}
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Call invokes method and decodes the result into reply. Reply may be nil
// to discard the result. A JSON-RPC error is returned as *protocol.Error.
func (c *Client) Call(ctx context.Context, method string, params, reply any) error {
	body, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNoContent {
		return ErrNoResponse
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	if reply == nil {
		var discard json.RawMessage
		reply = &discard
	}

	err = json2.DecodeClientResponse(resp.Body, reply)
	switch {
	case err == nil, errors.Is(err, json2.ErrNullResult):
		return nil
	default:
		var rpcErr *json2.Error
		if errors.As(err, &rpcErr) {
			return &protocol.Error{Code: int(rpcErr.Code), Message: rpcErr.Message, Data: rpcErr.Data}
		}
		return fmt.Errorf("decode response: %w", err)
	}
}

// Notify sends a notification. The server normally answers with no
// content; an error object sent back for the notification is returned.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	req, err := newRequest(method, params, nil)
	if err != nil {
		return err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := checkStatus(resp); err != nil {
		return err
	}

	var reply protocol.Response
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if reply.Error != nil {
		return reply.Error
	}
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	if c.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.timeout)
		// Released when the response body is closed.
		resp, err := c.do(ctx, body)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelBody{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return c.do(ctx, body)
}

func (c *Client) do(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, values := range c.opts.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.opts.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	return resp, nil
}

func (c *Client) id() json.RawMessage {
	return json.RawMessage(strconv.FormatInt(c.nextID.Add(1), 10))
}

func newRequest(method string, params any, id json.RawMessage) (protocol.Request, error) {
	req := protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		Method:  method,
		ID:      id,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return req, fmt.Errorf("encode params: %w", err)
		}
		req.Params = data
	}
	return req, nil
}

// checkStatus accepts the statuses that carry a JSON-RPC payload: 200, and
// 400 for parse errors.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusBadRequest {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
