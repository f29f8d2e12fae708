package server

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/fleetmap/pkg/errors"
)

// Config holds the API server settings.
type Config struct {
	Host       string
	Port       int
	PathPrefix string

	CORSEnabled bool
	CORSOrigins []string

	// AuthEnabled requires APIKey in the AuthHeader header on every route
	// except health, readiness and metrics.
	AuthEnabled bool
	AuthHeader  string
	APIKey      string

	// RequestTimeout bounds API handlers. The streaming endpoints are
	// exempt. Zero disables it.
	RequestTimeout time.Duration

	ReadTimeout  time.Duration
	WriteTimeout time.Duration // zero so SSE and WebSocket streams stay open
	IdleTimeout  time.Duration

	MetricsEnabled bool

	// RateLimit caps requests per minute per client IP. Health, readiness,
	// metrics and the streaming endpoints are not counted. Zero disables it.
	RateLimit int
}

// DefaultConfig serves /api/v1 on localhost:8080 with metrics and without
// auth or CORS.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8080,
		PathPrefix:     "/api/v1",
		CORSOrigins:    []string{},
		AuthHeader:     "X-API-Key",
		RequestTimeout: 30 * time.Second,
		ReadTimeout:    10 * time.Second,
		IdleTimeout:    2 * time.Minute,
		MetricsEnabled: true,
	}
}

// Addr returns the host:port listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.NewValidationError("port", c.Port, "must be within 0-65535")
	}
	if c.PathPrefix != "" && !strings.HasPrefix(c.PathPrefix, "/") {
		return errors.NewValidationError("prefix", c.PathPrefix, "must start with /")
	}
	if c.RateLimit < 0 {
		return errors.NewValidationError("rate_limit", c.RateLimit, "must not be negative")
	}
	if c.AuthEnabled && c.APIKey == "" {
		return errors.NewValidationError("api_key", nil, "auth is enabled but no API key is configured")
	}
	return nil
}
