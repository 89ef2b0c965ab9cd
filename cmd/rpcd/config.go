package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Environment overrides, applied after the config file.
const (
	EnvTransport           = "RPCD_TRANSPORT"
	EnvHTTPListen          = "RPCD_HTTP_LISTEN"
	EnvHTTPPath            = "RPCD_HTTP_PATH"
	EnvLogLevel            = "RPCD_LOG_LEVEL"
	EnvLogFormat           = "RPCD_LOG_FORMAT"
	EnvMetrics             = "RPCD_METRICS"
	EnvTelemetry           = "RPCD_TELEMETRY"
	EnvMaxBatchSize        = "RPCD_MAX_BATCH_SIZE"
	EnvBatchConcurrency    = "RPCD_BATCH_CONCURRENCY"
	EnvSilentNotifications = "RPCD_SILENT_NOTIFICATIONS"
)

// Transports.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Rate limit scopes.
const (
	RateLimitGlobal = "global"
	RateLimitMethod = "method"
	RateLimitClient = "client"
)

// Config is the rpcd configuration, one section per TOML table.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Limits    LimitsConfig    `toml:"limits"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Log       LogConfig       `toml:"log"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// ServerConfig selects the transport and its HTTP settings.
type ServerConfig struct {
	Transport           string   `toml:"transport"`
	HTTPListen          string   `toml:"http_listen"`
	HTTPPath            string   `toml:"http_path"`
	CORSOrigins         []string `toml:"cors_origins"`
	ShutdownTimeoutMs   int      `toml:"shutdown_timeout_ms"`
	DrainDelayMs        int      `toml:"drain_delay_ms"`
	Metrics             bool     `toml:"metrics"`
	MetricsNamespace    string   `toml:"metrics_namespace"`
	SilentNotifications bool     `toml:"silent_notifications"`
}

// LimitsConfig bounds message sizes, batches and call durations.
type LimitsConfig struct {
	MaxBodyBytes     int64 `toml:"max_body_bytes"`
	MaxLineBytes     int   `toml:"max_line_bytes"`
	MaxParamsBytes   int64 `toml:"max_params_bytes"`
	MaxBatchSize     int   `toml:"max_batch_size"`
	BatchConcurrency int   `toml:"batch_concurrency"`
	CallTimeoutMs    int   `toml:"call_timeout_ms"`
}

// RateLimitConfig configures the token bucket applied to calls.
type RateLimitConfig struct {
	Enabled bool   `toml:"enabled"`
	Scope   string `toml:"scope"`
	Rate    int    `toml:"rate"`
	Burst   int    `toml:"burst"`
}

// LogConfig sets the zerolog level and output format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// TelemetryConfig enables OpenTelemetry tracing and metrics, exported
// as JSON to stderr.
type TelemetryConfig struct {
	Enabled          bool   `toml:"enabled"`
	ServiceName      string `toml:"service_name"`
	ExportIntervalMs int    `toml:"export_interval_ms"`
}

// Default returns the configuration used when no file or override is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Transport:         TransportHTTP,
			HTTPListen:        ":8080",
			HTTPPath:          "/rpc",
			ShutdownTimeoutMs: 30000,
			Metrics:           true,
			MetricsNamespace:  "rpcd",
		},
		Limits: LimitsConfig{
			MaxBodyBytes:     1048576,
			MaxLineBytes:     1048576,
			MaxParamsBytes:   65536,
			BatchConcurrency: 1,
			CallTimeoutMs:    30000,
		},
		RateLimit: RateLimitConfig{
			Scope: RateLimitClient,
			Rate:  100,
			Burst: 200,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			ServiceName:      "rpcd",
			ExportIntervalMs: 60000,
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is
// not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with the RPCD_* variables that are set and parse.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvTransport)); v != "" {
		cfg.Server.Transport = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvHTTPListen)); v != "" {
		cfg.Server.HTTPListen = v
	}
	if v := strings.TrimSpace(getenv(EnvHTTPPath)); v != "" {
		cfg.Server.HTTPPath = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvLogFormat)); v != "" {
		cfg.Log.Format = strings.ToLower(v)
	}
	if v, ok := parseBool(getenv(EnvMetrics)); ok {
		cfg.Server.Metrics = v
	}
	if v, ok := parseBool(getenv(EnvTelemetry)); ok {
		cfg.Telemetry.Enabled = v
	}
	if v, ok := parseBool(getenv(EnvSilentNotifications)); ok {
		cfg.Server.SilentNotifications = v
	}
	if v, ok := parseInt(getenv(EnvMaxBatchSize)); ok {
		cfg.Limits.MaxBatchSize = v
	}
	if v, ok := parseInt(getenv(EnvBatchConcurrency)); ok {
		cfg.Limits.BatchConcurrency = v
	}
}

// Validate reports the first setting the server cannot run with.
func (c Config) Validate() error {
	switch c.Server.Transport {
	case TransportHTTP:
		if c.Server.HTTPListen == "" {
			return errors.New("server.http_listen is required for the http transport")
		}
		if !strings.HasPrefix(c.Server.HTTPPath, "/") {
			return fmt.Errorf("server.http_path %q must start with /", c.Server.HTTPPath)
		}
	case TransportStdio:
	default:
		return fmt.Errorf("server.transport %q: want %q or %q", c.Server.Transport, TransportHTTP, TransportStdio)
	}

	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q: want console or json", c.Log.Format)
	}

	if c.Limits.BatchConcurrency < 1 {
		return fmt.Errorf("limits.batch_concurrency must be at least 1, got %d", c.Limits.BatchConcurrency)
	}
	if c.Limits.MaxBatchSize < 0 {
		return fmt.Errorf("limits.max_batch_size must not be negative, got %d", c.Limits.MaxBatchSize)
	}

	if c.Telemetry.Enabled && c.Telemetry.ExportIntervalMs <= 0 {
		return fmt.Errorf("telemetry.export_interval_ms must be positive, got %d", c.Telemetry.ExportIntervalMs)
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Scope {
		case RateLimitGlobal, RateLimitMethod, RateLimitClient:
		default:
			return fmt.Errorf("rate_limit.scope %q: want global, method or client", c.RateLimit.Scope)
		}
		if c.RateLimit.Rate <= 0 || c.RateLimit.Burst <= 0 {
			return errors.New("rate_limit.rate and rate_limit.burst must be positive")
		}
	}
	return nil
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func parseInt(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
