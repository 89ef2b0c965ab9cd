package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/jsonrpc-go/codec"
	"github.com/felixgeelhaar/jsonrpc-go/middleware"
	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

// Defaults for the HTTP transport.
const (
	DefaultPath         = "/rpc"
	DefaultMaxBodyBytes = 1 * middleware.MB
)

const (
	kindSingle = "single"
	kindBatch  = "batch"
	kindError  = "error"
)

// HTTP implements JSON-RPC over HTTP POST.
type HTTP struct {
	addr            string
	path            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	maxBodyBytes    int64
	corsConfig      *CORSConfig
	shutdownTimeout time.Duration
	drainDelay      time.Duration
	metrics         *Metrics
	logger          middleware.Logger

	mu         sync.RWMutex
	listenAddr string
	server     *http.Server
	shutdown   *ShutdownManager
}

// HTTPOption configures the HTTP transport.
type HTTPOption func(*HTTP)

// WithReadTimeout sets the read timeout for HTTP requests.
func WithReadTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.readTimeout = d
	}
}

// WithWriteTimeout sets the write timeout for HTTP responses.
func WithWriteTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.writeTimeout = d
	}
}

// WithPath sets the path JSON-RPC messages are posted to.
func WithPath(path string) HTTPOption {
	return func(h *HTTP) {
		if path != "" {
			h.path = path
		}
	}
}

// WithMaxBodyBytes limits the request body size. Larger bodies are
// rejected with 413 before any parsing.
func WithMaxBodyBytes(n int64) HTTPOption {
	return func(h *HTTP) {
		h.maxBodyBytes = n
	}
}

// WithMetrics records Prometheus metrics and serves them on /metrics.
func WithMetrics(m *Metrics) HTTPOption {
	return func(h *HTTP) {
		h.metrics = m
	}
}

// WithHTTPLogger sets the logger for transport-level events.
func WithHTTPLogger(l middleware.Logger) HTTPOption {
	return func(h *HTTP) {
		h.logger = l
	}
}

// NewHTTP creates a new HTTP transport.
func NewHTTP(addr string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		addr:            addr,
		path:            DefaultPath,
		readTimeout:     30 * time.Second,
		writeTimeout:    30 * time.Second,
		maxBodyBytes:    DefaultMaxBodyBytes,
		shutdownTimeout: 30 * time.Second,
		logger:          middleware.NopLogger{},
	}

	for _, opt := range opts {
		opt(h)
	}

	h.shutdown = NewShutdownManager(ShutdownConfig{
		Timeout:    h.shutdownTimeout,
		DrainDelay: h.drainDelay,
	})

	return h
}

// Addr returns the configured address.
func (h *HTTP) Addr() string {
	return h.addr
}

// Path returns the JSON-RPC endpoint path.
func (h *HTTP) Path() string {
	return h.path
}

// ListenAddr returns the actual address the server is listening on.
func (h *HTTP) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.listenAddr
}

// Serve starts the HTTP server and handles requests. When ctx is
// canceled new messages are refused with 503 while in-flight ones finish.
func (h *HTTP) Serve(ctx context.Context, handler Handler) error {
	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	srv := &http.Server{
		Handler:      h.Handler(handler),
		ReadTimeout:  h.readTimeout,
		WriteTimeout: h.writeTimeout,
	}

	h.mu.Lock()
	h.listenAddr = listener.Addr().String()
	h.server = srv
	h.mu.Unlock()

	h.logger.Info("http transport listening",
		middleware.F("addr", listener.Addr().String()),
		middleware.F("path", h.path),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout+h.drainDelay)
		defer cancel()

		drainErr := h.shutdown.Shutdown(shutdownCtx)
		if drainErr != nil {
			h.logger.Warn("drain incomplete",
				middleware.F("in_flight", h.shutdown.InFlightRequests()),
				middleware.F("error", drainErr.Error()),
			)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler returns the http.Handler serving the JSON-RPC endpoint, the
// health check and, when enabled, metrics.
func (h *HTTP) Handler(handler Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status, body := http.StatusOK, "ok"
		if h.shutdown.IsDraining() {
			status, body = http.StatusServiceUnavailable, "draining"
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": body})
	})

	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}

	mux.HandleFunc(h.path, func(w http.ResponseWriter, r *http.Request) {
		h.handleRPC(w, r, handler)
	})

	if h.corsConfig != nil {
		return CORSHandler(*h.corsConfig, mux)
	}
	return mux
}

// handleRPC handles one JSON-RPC message posted over HTTP.
func (h *HTTP) handleRPC(w http.ResponseWriter, r *http.Request, handler Handler) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	if !h.shutdown.TrackRequest() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.shutdown.CompleteRequest()

	h.metrics.begin()
	defer h.metrics.end()
	start := time.Now()

	c := codec.ForContentType(r.Header.Get("Content-Type"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.logger.Warn("request body too large", middleware.F("limit", maxErr.Limit))
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			h.metrics.record(kindError, http.StatusRequestEntityTooLarge, 0, time.Since(start))
			return
		}
		h.logger.Warn("read request body", middleware.F("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		h.metrics.record(kindError, http.StatusBadRequest, 0, time.Since(start))
		return
	}

	data, err := c.ToJSON(body)
	if err != nil {
		h.logger.Debug("parse error", middleware.F("error", err.Error()))
		h.write(w, c, http.StatusBadRequest, protocol.ParseErrorPayload(err))
		h.metrics.record(kindError, http.StatusBadRequest, 1, time.Since(start))
		return
	}

	kind := kindSingle
	if protocol.IsBatch(data) {
		kind = kindBatch
	}

	payload := handler.HandleMessage(requestContext(r), data)
	if payload.NoContent() {
		w.WriteHeader(http.StatusNoContent)
		h.metrics.record(kind, http.StatusNoContent, 0, time.Since(start))
		return
	}

	status := h.write(w, c, http.StatusOK, payload)
	h.metrics.record(kind, status, len(payload.Responses), time.Since(start))
}

// write encodes the payload with c and returns the status sent.
func (h *HTTP) write(w http.ResponseWriter, c codec.Codec, status int, payload protocol.Payload) int {
	data, err := json.Marshal(payload)
	if err == nil {
		data, err = c.FromJSON(data)
	}
	if err != nil {
		h.logger.Error("encode response", middleware.F("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", c.ContentType())
	w.WriteHeader(status)
	_, _ = w.Write(data)
	return status
}

// requestContext attaches the request headers and peer address as
// request metadata and seeds the request ID from X-Request-Id.
func requestContext(r *http.Request) context.Context {
	meta := make(protocol.RequestMeta, len(r.Header)+2)
	for name, values := range r.Header {
		meta[name] = strings.Join(values, ", ")
	}
	meta[protocol.MetaRemoteAddr] = r.RemoteAddr
	meta[protocol.MetaTransport] = "http"

	ctx := protocol.ContextWithRequestMeta(r.Context(), meta)
	if id := r.Header.Get(middleware.RequestIDHeader); id != "" {
		ctx = middleware.ContextWithRequestID(ctx, id)
	}
	return ctx
}
