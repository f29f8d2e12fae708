package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCORSConfig(t *testing.T) {
	config := DefaultCORSConfig()

	assert.False(t, config.AllowAll)
	assert.Equal(t, []string{"*"}, config.AllowedOrigins)
	assert.Contains(t, config.AllowedMethods, "DELETE")
	assert.Contains(t, config.AllowedHeaders, RequestIDHeader)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name         string
		config       CORSConfig
		origin       string
		expectOrigin string
	}{
		{
			name:         "allow all",
			config:       CORSConfig{AllowAll: true, AllowedMethods: []string{"GET"}},
			origin:       "https://example.com",
			expectOrigin: "*",
		},
		{
			name:         "empty origin list allows all",
			config:       CORSConfig{AllowedMethods: []string{"GET"}},
			origin:       "https://example.com",
			expectOrigin: "*",
		},
		{
			name:         "specific origin allowed",
			config:       CORSConfig{AllowedOrigins: []string{"https://ops.example.com", "https://app.example.com"}},
			origin:       "https://app.example.com",
			expectOrigin: "https://app.example.com",
		},
		{
			name:         "wildcard entry in list",
			config:       CORSConfig{AllowedOrigins: []string{"https://ops.example.com", "*"}},
			origin:       "https://other.example.com",
			expectOrigin: "https://other.example.com",
		},
		{
			name:   "origin not allowed",
			config: CORSConfig{AllowedOrigins: []string{"https://ops.example.com"}},
			origin: "https://evil.com",
		},
		{
			name:   "no origin header",
			config: CORSConfig{AllowedOrigins: []string{"https://ops.example.com"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.config)(http.HandlerFunc(okHandler))
			req := httptest.NewRequest("GET", "/api/v1/dashboard", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.expectOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, RequestIDHeader, w.Header().Get("Access-Control-Expose-Headers"))
			if tt.expectOrigin != "" && tt.expectOrigin != "*" {
				assert.Equal(t, "Origin", w.Header().Get("Vary"))
			}
		})
	}
}

func TestCORSPreflightShortCircuit(t *testing.T) {
	called := false
	handler := CORS(DefaultCORSConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/fleet", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "GET, POST, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestOriginPolicy(t *testing.T) {
	p := newOriginPolicy(CORSConfig{AllowedOrigins: []string{"https://ops.example.com"}})
	assert.Equal(t, "https://ops.example.com", p.allowOrigin("https://ops.example.com"))
	assert.Equal(t, "", p.allowOrigin("https://OPS.example.com"))
	assert.Equal(t, "", p.allowOrigin(""))

	wild := newOriginPolicy(CORSConfig{AllowedOrigins: []string{"*"}})
	assert.Equal(t, "anything", wild.allowOrigin("anything"))
	assert.Equal(t, "*", newOriginPolicy(CORSConfig{AllowAll: true}).allowOrigin(""))
}

func TestCORSWithoutMaxAge(t *testing.T) {
	handler := CORS(CORSConfig{AllowAll: true})(http.HandlerFunc(okHandler))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, w.Header().Get("Access-Control-Max-Age"))
}
