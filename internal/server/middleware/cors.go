package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	AllowAll       bool
	MaxAge         time.Duration
}

// DefaultCORSConfig allows any origin to read the fleet API and to send
// the API key header.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key", RequestIDHeader},
		MaxAge:         24 * time.Hour,
	}
}

// originPolicy answers which Origin values may read responses.
type originPolicy struct {
	any     bool
	origins map[string]struct{}
}

func newOriginPolicy(config CORSConfig) originPolicy {
	p := originPolicy{
		any:     config.AllowAll || len(config.AllowedOrigins) == 0,
		origins: make(map[string]struct{}, len(config.AllowedOrigins)),
	}
	for _, o := range config.AllowedOrigins {
		p.origins[o] = struct{}{}
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin,
// or "" when the origin is refused.
func (p originPolicy) allowOrigin(origin string) string {
	if p.any {
		return "*"
	}
	if origin == "" {
		return ""
	}
	_, listed := p.origins[origin]
	_, wildcard := p.origins["*"]
	if listed || wildcard {
		return origin
	}
	return ""
}

// CORS adds CORS headers and answers OPTIONS preflight requests itself.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	policy := newOriginPolicy(config)
	methods := strings.Join(config.AllowedMethods, ", ")
	headers := strings.Join(config.AllowedHeaders, ", ")
	maxAge := ""
	if config.MaxAge > 0 {
		maxAge = strconv.Itoa(int(config.MaxAge.Seconds()))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			switch allow := policy.allowOrigin(r.Header.Get("Origin")); allow {
			case "":
			case "*":
				h.Set("Access-Control-Allow-Origin", allow)
			default:
				h.Set("Access-Control-Allow-Origin", allow)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			if maxAge != "" {
				h.Set("Access-Control-Max-Age", maxAge)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
