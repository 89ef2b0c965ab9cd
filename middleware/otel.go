package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/jsonrpc-go/protocol"
)

const (
	instrumentationName    = "github.com/felixgeelhaar/jsonrpc-go"
	instrumentationVersion = "1.0.0"
)

// Attribute keys recorded on spans and metrics.
const (
	AttrMethod       = "rpc.method"
	AttrSystem       = "rpc.system"
	AttrErrorCode    = "rpc.jsonrpc.error_code"
	AttrRequestID    = "rpc.jsonrpc.request_id"
	AttrNotification = "rpc.jsonrpc.notification"
	AttrTransport    = "rpc.jsonrpc.transport"
	AttrService      = "service.name"
)

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*otelConfig)

type otelConfig struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	serviceName    string
	skipMethods    map[string]bool
}

// WithTracerProvider sets a custom tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *otelConfig) {
		c.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom meter provider.
func WithMeterProvider(mp metric.MeterProvider) OTelOption {
	return func(c *otelConfig) {
		c.meterProvider = mp
	}
}

// WithOTelServiceName sets the service name for telemetry.
func WithOTelServiceName(name string) OTelOption {
	return func(c *otelConfig) {
		c.serviceName = name
	}
}

// WithOTelSkipMethods specifies methods to skip for tracing.
func WithOTelSkipMethods(methods ...string) OTelOption {
	return func(c *otelConfig) {
		for _, m := range methods {
			c.skipMethods[m] = true
		}
	}
}

// instruments are the call metrics recorded by OTel.
type instruments struct {
	calls    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) instruments {
	// Creation only fails on invalid names.
	calls, _ := meter.Int64Counter("jsonrpc.server.calls",
		metric.WithDescription("JSON-RPC calls that reached a method."),
		metric.WithUnit("{call}"),
	)
	errs, _ := meter.Int64Counter("jsonrpc.server.errors",
		metric.WithDescription("JSON-RPC calls answered with an error, by code."),
		metric.WithUnit("{call}"),
	)
	duration, _ := meter.Float64Histogram("jsonrpc.server.call.duration",
		metric.WithDescription("Time spent in a JSON-RPC method."),
		metric.WithUnit("s"),
	)
	return instruments{calls: calls, errors: errs, duration: duration}
}

// OTel returns middleware that starts a server span per call and records
// call counts, durations and error codes. The transport that delivered
// the call, when known from the request metadata, is added to both.
func OTel(opts ...OTelOption) Middleware {
	cfg := &otelConfig{
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
		serviceName:    "jsonrpc-server",
		skipMethods:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	tracer := cfg.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))
	inst := newInstruments(cfg.meterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion)))

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
			if cfg.skipMethods[req.Method] {
				return next(ctx, req)
			}

			attrs := []attribute.KeyValue{
				attribute.String(AttrMethod, req.Method),
				attribute.String(AttrService, cfg.serviceName),
			}
			if transport := protocol.GetRequestMeta(ctx, protocol.MetaTransport); transport != "" {
				attrs = append(attrs, attribute.String(AttrTransport, transport))
			}

			ctx, span := tracer.Start(ctx, "jsonrpc."+req.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(attrs...),
				trace.WithAttributes(
					attribute.String(AttrSystem, "jsonrpc"),
					attribute.Bool(AttrNotification, req.IsNotification()),
				),
			)
			defer span.End()

			if reqID := RequestIDFromContext(ctx); reqID != "" {
				span.SetAttributes(attribute.String(AttrRequestID, reqID))
			}

			inst.calls.Add(ctx, 1, metric.WithAttributes(attrs...))
			start := time.Now()

			resp, err := next(ctx, req)

			inst.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))

			code, _, failed := outcome(resp, err)
			if !failed {
				span.SetStatus(codes.Ok, "")
				return resp, err
			}

			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Error, resp.Error.Message)
			}
			span.SetAttributes(attribute.Int(AttrErrorCode, code))
			inst.errors.Add(ctx, 1, metric.WithAttributes(append(attrs, attribute.Int(AttrErrorCode, code))...))

			return resp, err
		}
	}
}

// SpanFromContext returns the current span from context.
// Returns a no-op span if no span is present.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetSpanAttribute sets an attribute on the current span.
func SetSpanAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	switch v := value.(type) {
	case string:
		span.SetAttributes(attribute.String(key, v))
	case int:
		span.SetAttributes(attribute.Int(key, v))
	case int64:
		span.SetAttributes(attribute.Int64(key, v))
	case float64:
		span.SetAttributes(attribute.Float64(key, v))
	case bool:
		span.SetAttributes(attribute.Bool(key, v))
	case []string:
		span.SetAttributes(attribute.StringSlice(key, v))
	}
}
