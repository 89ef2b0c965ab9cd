// Command rpcd serves the sum and subtract methods over HTTP or stdio.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/felixgeelhaar/jsonrpc-go"
	"github.com/felixgeelhaar/jsonrpc-go/arith"
	"github.com/felixgeelhaar/jsonrpc-go/middleware"
	"github.com/felixgeelhaar/jsonrpc-go/transport"
)

func main() {
	var (
		cfgPath    string
		envPath    string
		stdio      bool
		httpListen string
		logLevel   string
	)
	flag.StringVar(&cfgPath, "config", "rpcd.toml", "path to rpcd config")
	flag.StringVar(&envPath, "env", ".env", "path to an optional .env file")
	flag.BoolVar(&stdio, "stdio", false, "serve JSON-RPC on stdin/stdout")
	flag.StringVar(&httpListen, "http", "", "listen address for the HTTP transport")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flag.Parse()

	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", envPath, err)
		os.Exit(1)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	ApplyEnv(&cfg, os.Getenv)
	if stdio {
		cfg.Server.Transport = TransportStdio
	}
	if httpListen != "" {
		cfg.Server.Transport = TransportHTTP
		cfg.Server.HTTPListen = httpListen
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// stdout carries protocol traffic on the stdio transport.
	log := newLogger(cfg.Log, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("rpcd stopped")
		os.Exit(1)
	}
	log.Info().Msg("rpcd stopped")
}

func newLogger(cfg LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", "rpcd").Logger()
}

type telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// newTelemetry installs tracer and meter providers that export spans and
// metrics as JSON to out. Spans are batched; metrics are pushed every
// ExportIntervalMs. Shutdown flushes both.
func newTelemetry(cfg TelemetryConfig, out io.Writer) (*telemetry, error) {
	spanExporter, err := stdouttrace.New(stdouttrace.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	metricExporter, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}

	interval := time.Duration(cfg.ExportIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	t := &telemetry{
		tracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
			sdktrace.WithBatcher(spanExporter),
		),
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(interval))),
		),
	}
	otel.SetTracerProvider(t.tracerProvider)
	otel.SetMeterProvider(t.meterProvider)
	return t, nil
}

func (t *telemetry) shutdown(ctx context.Context) error {
	return errors.Join(
		t.tracerProvider.Shutdown(ctx),
		t.meterProvider.Shutdown(ctx),
	)
}

// buildMiddleware orders the stack outermost first: recovery, request
// ids, tracing, timeout, logging, then the limits.
func buildMiddleware(cfg Config, logger middleware.Logger, tel *telemetry) []middleware.Middleware {
	stack := []middleware.Middleware{
		middleware.Recover(middleware.WithRecoverLogger(logger)),
		middleware.RequestID(),
	}
	if tel != nil {
		stack = append(stack, middleware.OTel(
			middleware.WithTracerProvider(tel.tracerProvider),
			middleware.WithMeterProvider(tel.meterProvider),
			middleware.WithOTelServiceName(cfg.Telemetry.ServiceName),
		))
	}
	if cfg.Limits.CallTimeoutMs > 0 {
		stack = append(stack, middleware.Timeout(time.Duration(cfg.Limits.CallTimeoutMs)*time.Millisecond))
	}
	stack = append(stack, middleware.Logging(logger))
	if cfg.Limits.MaxParamsBytes > 0 {
		stack = append(stack, middleware.SizeLimit(cfg.Limits.MaxParamsBytes, middleware.WithSizeLimitLogger(logger)))
	}
	if cfg.RateLimit.Enabled {
		opt := middleware.WithRateLimitLogger(logger)
		switch cfg.RateLimit.Scope {
		case RateLimitMethod:
			stack = append(stack, middleware.RateLimitByMethod(cfg.RateLimit.Rate, cfg.RateLimit.Burst, opt))
		case RateLimitClient:
			stack = append(stack, middleware.RateLimitByClient(cfg.RateLimit.Rate, cfg.RateLimit.Burst, middleware.ClientAddr, opt))
		default:
			stack = append(stack, middleware.RateLimit(cfg.RateLimit.Rate, cfg.RateLimit.Burst, opt))
		}
	}
	return stack
}

func newServer() (*jsonrpc.Server, error) {
	srv := jsonrpc.NewServer()
	if err := arith.Register(srv); err != nil {
		return nil, err
	}
	return srv, nil
}

func serveOptions(cfg Config, logger middleware.Logger, tel *telemetry) []jsonrpc.ServeOption {
	opts := []jsonrpc.ServeOption{
		jsonrpc.WithLogger(logger),
		jsonrpc.WithMiddleware(buildMiddleware(cfg, logger, tel)...),
		jsonrpc.WithBatchConcurrency(cfg.Limits.BatchConcurrency),
		jsonrpc.WithMaxBatchSize(cfg.Limits.MaxBatchSize),
	}
	if cfg.Server.SilentNotifications {
		opts = append(opts, jsonrpc.WithSilentNotifications())
	}
	return opts
}

func httpOptions(cfg Config, logger middleware.Logger) []transport.HTTPOption {
	opts := []transport.HTTPOption{
		transport.WithPath(cfg.Server.HTTPPath),
		transport.WithMaxBodyBytes(cfg.Limits.MaxBodyBytes),
		transport.WithHTTPLogger(logger),
		transport.WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeoutMs) * time.Millisecond),
		transport.WithShutdownDrainDelay(time.Duration(cfg.Server.DrainDelayMs) * time.Millisecond),
	}
	if cfg.Server.Metrics {
		opts = append(opts, transport.WithMetrics(transport.NewMetrics(cfg.Server.MetricsNamespace)))
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := transport.DefaultCORSConfig()
		cors.AllowOrigins = cfg.Server.CORSOrigins
		opts = append(opts, transport.WithCORS(cors))
	}
	return opts
}

func run(ctx context.Context, cfg Config, log zerolog.Logger) error {
	logger := middleware.Zerolog(log)

	var (
		tel *telemetry
		err error
	)
	if cfg.Telemetry.Enabled {
		tel, err = newTelemetry(cfg.Telemetry, os.Stderr)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tel.shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("telemetry shutdown")
			}
		}()
	}

	srv, err := newServer()
	if err != nil {
		return fmt.Errorf("register methods: %w", err)
	}
	handler := jsonrpc.NewHandler(srv, serveOptions(cfg, logger, tel)...)

	log.Info().
		Str("transport", cfg.Server.Transport).
		Strs("methods", srv.Methods()).
		Msg("rpcd starting")

	switch cfg.Server.Transport {
	case TransportStdio:
		t := transport.NewStdio(
			transport.WithStdioLogger(logger),
			transport.WithMaxLineBytes(cfg.Limits.MaxLineBytes),
		)
		return t.Serve(ctx, handler)
	default:
		t := transport.NewHTTP(cfg.Server.HTTPListen, httpOptions(cfg, logger)...)
		return t.Serve(ctx, handler)
	}
}
