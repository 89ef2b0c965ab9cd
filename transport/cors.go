package transport

import (
	"net/http"
	"strconv"
	"strings"
)

var (
	defaultCORSMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	defaultCORSHeaders = []string{"Content-Type", "X-Request-ID"}
)

const defaultCORSMaxAge = 86400

// CORSConfig configures cross-origin access to the HTTP transport.
// GET stays in the default methods so browsers can reach /health and
// /metrics.
type CORSConfig struct {
	// AllowOrigins lists exact origins, or the single entry "*".
	AllowOrigins []string

	AllowMethods  []string
	AllowHeaders  []string
	ExposeHeaders []string

	AllowCredentials bool

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// DefaultCORSConfig allows every origin with the default methods and
// headers.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: append([]string(nil), defaultCORSMethods...),
		AllowHeaders: append([]string(nil), defaultCORSHeaders...),
		MaxAge:       defaultCORSMaxAge,
	}
}

// cors holds the header values computed once from a CORSConfig.
type cors struct {
	anyOrigin   bool
	origins     map[string]struct{}
	methods     string
	headers     string
	expose      string
	maxAge      string
	credentials bool
}

func newCORS(config CORSConfig) *cors {
	methods := config.AllowMethods
	if len(methods) == 0 {
		methods = defaultCORSMethods
	}
	headers := config.AllowHeaders
	if len(headers) == 0 {
		headers = defaultCORSHeaders
	}
	maxAge := config.MaxAge
	if maxAge == 0 {
		maxAge = defaultCORSMaxAge
	}

	c := &cors{
		anyOrigin:   len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*",
		origins:     make(map[string]struct{}, len(config.AllowOrigins)),
		methods:     strings.Join(methods, ", "),
		headers:     strings.Join(headers, ", "),
		expose:      strings.Join(config.ExposeHeaders, ", "),
		credentials: config.AllowCredentials,
	}
	if maxAge > 0 {
		c.maxAge = strconv.Itoa(maxAge)
	}
	for _, origin := range config.AllowOrigins {
		c.origins[origin] = struct{}{}
	}
	return c
}

// allow returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not allowed.
func (c *cors) allow(origin string) string {
	if c.anyOrigin {
		return "*"
	}
	if origin == "" {
		return ""
	}
	if _, ok := c.origins[origin]; ok {
		return origin
	}
	return ""
}

func (c *cors) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		if !c.anyOrigin {
			header.Add("Vary", "Origin")
		}

		allowed := c.allow(r.Header.Get("Origin"))
		if allowed == "" {
			next.ServeHTTP(w, r)
			return
		}

		header.Set("Access-Control-Allow-Origin", allowed)
		if c.credentials {
			header.Set("Access-Control-Allow-Credentials", "true")
		}

		// Preflight never reaches the rpc endpoint, which only accepts POST.
		if r.Method == http.MethodOptions {
			header.Set("Access-Control-Allow-Methods", c.methods)
			header.Set("Access-Control-Allow-Headers", c.headers)
			if c.maxAge != "" {
				header.Set("Access-Control-Max-Age", c.maxAge)
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if c.expose != "" {
			header.Set("Access-Control-Expose-Headers", c.expose)
		}
		next.ServeHTTP(w, r)
	})
}

// CORSHandler wraps next with CORS headers and preflight handling.
func CORSHandler(config CORSConfig, next http.Handler) http.Handler {
	return newCORS(config).wrap(next)
}

// WithCORS enables CORS on the HTTP transport.
func WithCORS(config CORSConfig) HTTPOption {
	return func(h *HTTP) {
		h.corsConfig = &config
	}
}

// WithDefaultCORS enables CORS with DefaultCORSConfig.
func WithDefaultCORS() HTTPOption {
	return WithCORS(DefaultCORSConfig())
}
