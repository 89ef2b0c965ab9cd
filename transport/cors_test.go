package transport_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/felixgeelhaar/jsonrpc-go/transport"
)

func TestCORSHandler(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(config transport.CORSConfig, method, origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/rpc", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		rec := httptest.NewRecorder()
		transport.CORSHandler(config, okHandler).ServeHTTP(rec, req)
		return rec
	}

	tests := []struct {
		name       string
		config     transport.CORSConfig
		origin     string
		wantOrigin string
		wantVary   bool
	}{
		{
			name:       "wildcard",
			config:     transport.CORSConfig{AllowOrigins: []string{"*"}},
			origin:     "http://example.com",
			wantOrigin: "*",
		},
		{
			name:       "listed origin",
			config:     transport.CORSConfig{AllowOrigins: []string{"http://a.test", "http://b.test"}},
			origin:     "http://b.test",
			wantOrigin: "http://b.test",
			wantVary:   true,
		},
		{
			name:     "unlisted origin",
			config:   transport.CORSConfig{AllowOrigins: []string{"http://a.test"}},
			origin:   "http://evil.test",
			wantVary: true,
		},
		{
			name:     "no origin header",
			config:   transport.CORSConfig{AllowOrigins: []string{"http://a.test"}},
			wantVary: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(tt.config, http.MethodPost, tt.origin)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if got := rec.Header().Get("Vary") == "Origin"; got != tt.wantVary {
				t.Errorf("Vary Origin = %v, want %v", got, tt.wantVary)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
		})
	}

	t.Run("preflight short-circuits", func(t *testing.T) {
		rec := serve(transport.CORSConfig{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"POST"},
			AllowHeaders: []string{"Content-Type"},
			MaxAge:       600,
		}, http.MethodOptions, "http://example.com")

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "POST" {
			t.Errorf("Allow-Methods = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
			t.Errorf("Allow-Headers = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
			t.Errorf("Max-Age = %q", got)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		rec := serve(transport.CORSConfig{AllowOrigins: []string{"*"}}, http.MethodOptions, "http://example.com")

		if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
			t.Errorf("Allow-Methods = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-Request-ID" {
			t.Errorf("Allow-Headers = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
			t.Errorf("Max-Age = %q", got)
		}
	})

	t.Run("credentials and exposed headers", func(t *testing.T) {
		rec := serve(transport.CORSConfig{
			AllowOrigins:     []string{"http://a.test"},
			AllowCredentials: true,
			ExposeHeaders:    []string{"X-Request-ID"},
		}, http.MethodPost, "http://a.test")

		if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("expected Allow-Credentials true")
		}
		if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
			t.Errorf("Expose-Headers = %q", got)
		}
	})
}

func TestDefaultCORSConfig(t *testing.T) {
	config := transport.DefaultCORSConfig()

	if len(config.AllowOrigins) != 1 || config.AllowOrigins[0] != "*" {
		t.Errorf("AllowOrigins = %v, want [*]", config.AllowOrigins)
	}
	if len(config.AllowMethods) != 3 {
		t.Errorf("AllowMethods = %v", config.AllowMethods)
	}
	if config.MaxAge != 86400 {
		t.Errorf("MaxAge = %d, want 86400", config.MaxAge)
	}
}
