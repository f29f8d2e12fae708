package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAuthConfig(t *testing.T) {
	config := DefaultAuthConfig()

	assert.False(t, config.Enabled)
	assert.Equal(t, "X-API-Key", config.HeaderName)
	assert.Contains(t, config.PublicPaths, "/health")
	assert.Contains(t, config.PublicPaths, "/metrics")
}

func TestAuth(t *testing.T) {
	logger := zerolog.Nop()
	enabled := AuthConfig{
		Enabled:     true,
		APIKey:      "secret-key",
		HeaderName:  "X-API-Key",
		PublicPaths: []string{"/health", "/api/v1/ready"},
	}

	tests := []struct {
		name    string
		config  AuthConfig
		method  string
		path    string
		headers map[string]string
		status  int
	}{
		{
			name:   "auth disabled",
			config: AuthConfig{Enabled: false, APIKey: "secret-key"},
			path:   "/api/v1/vehicles",
			status: http.StatusOK,
		},
		{
			name:   "public path",
			config: enabled,
			path:   "/health",
			status: http.StatusOK,
		},
		{
			name:   "public path with trailing slash",
			config: enabled,
			path:   "/api/v1/ready/",
			status: http.StatusOK,
		},
		{
			name:   "preflight passes",
			config: enabled,
			method: http.MethodOptions,
			path:   "/api/v1/fleet",
			status: http.StatusOK,
		},
		{
			name:    "valid key in custom header",
			config:  enabled,
			path:    "/api/v1/vehicles",
			headers: map[string]string{"X-API-Key": "secret-key"},
			status:  http.StatusOK,
		},
		{
			name:    "valid bearer token",
			config:  enabled,
			path:    "/api/v1/vehicles",
			headers: map[string]string{"Authorization": "Bearer secret-key"},
			status:  http.StatusOK,
		},
		{
			name:    "raw authorization header",
			config:  enabled,
			path:    "/api/v1/vehicles",
			headers: map[string]string{"Authorization": "secret-key"},
			status:  http.StatusOK,
		},
		{
			name:   "missing key",
			config: enabled,
			path:   "/api/v1/vehicles",
			status: http.StatusUnauthorized,
		},
		{
			name:    "wrong key",
			config:  enabled,
			path:    "/api/v1/fleet",
			headers: map[string]string{"X-API-Key": "guess"},
			status:  http.StatusUnauthorized,
		},
		{
			name:    "enabled without a configured key rejects everything",
			config:  AuthConfig{Enabled: true},
			path:    "/api/v1/fleet",
			headers: map[string]string{"X-API-Key": ""},
			status:  http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := Auth(tt.config, &logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req := httptest.NewRequest(method, tt.path, nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.status == http.StatusOK, called)

			if tt.status == http.StatusUnauthorized {
				var body struct {
					Data  any `json:"data"`
					Error struct {
						Code    string `json:"code"`
						Details string `json:"details"`
					} `json:"error"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Nil(t, body.Data)
				assert.Equal(t, "UNAUTHORIZED", body.Error.Code)
				assert.Contains(t, body.Error.Details, "X-API-Key")
			}
		})
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"custom header", map[string]string{"X-Fleet-Key": "k1"}, "k1"},
		{"custom header wins", map[string]string{"X-Fleet-Key": "k1", "Authorization": "Bearer k2"}, "k1"},
		{"bearer", map[string]string{"Authorization": "Bearer k2"}, "k2"},
		{"raw", map[string]string{"Authorization": "k3"}, "k3"},
		{"none", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, extractAPIKey(req, "X-Fleet-Key"))
		})
	}
}

func TestAuthConcurrentRequests(t *testing.T) {
	logger := zerolog.Nop()
	handler := Auth(AuthConfig{Enabled: true, APIKey: "k"}, &logger)(http.HandlerFunc(okHandler))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(valid bool) {
			defer wg.Done()
			req := httptest.NewRequest("GET", "/api/v1/vehicles", nil)
			want := http.StatusUnauthorized
			if valid {
				req.Header.Set("X-API-Key", "k")
				want = http.StatusOK
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, want, w.Code)
		}(i%2 == 0)
	}
	wg.Wait()
}
