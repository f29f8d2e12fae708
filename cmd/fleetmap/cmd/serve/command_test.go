package serve

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/fleetmap/internal/cmd/application"
	"github.com/agentstation/fleetmap/internal/server"
	"github.com/agentstation/fleetmap/pkg/dashboard"
	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/fleetview"
	"github.com/agentstation/fleetmap/pkg/metrics"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/repository/memory"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

func TestParseConfigKeepsBaseWithoutFlags(t *testing.T) {
	base := server.DefaultConfig()
	base.Port = 9000
	base.CORSEnabled = true
	base.CORSOrigins = []string{"https://fleet.example.com"}

	cmd := NewCommand(&application.Mock{ServerConfigFunc: func() server.Config { return base }})
	require.NoError(t, cmd.ParseFlags(nil))

	cfg := parseConfig(cmd, base)
	assert.Equal(t, base, cfg)
}

func TestParseConfigOverrides(t *testing.T) {
	base := server.DefaultConfig()
	cmd := NewCommand(&application.Mock{})
	require.NoError(t, cmd.ParseFlags([]string{
		"--port", "3000",
		"--host", "0.0.0.0",
		"--prefix", "/fleet",
		"--cors-origins", "https://a.example.com,https://b.example.com",
		"--api-key", "s3cret",
		"--request-timeout", "5s",
		"--metrics=false",
		"--rate-limit", "120",
	}))

	cfg := parseConfig(cmd, base)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "/fleet", cfg.PathPrefix)
	assert.True(t, cfg.CORSEnabled)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSOrigins)
	assert.True(t, cfg.AuthEnabled)
	assert.Equal(t, "s3cret", cfg.APIKey)
	assert.Equal(t, "X-API-Key", cfg.AuthHeader)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Equal(t, base.IdleTimeout, cfg.IdleTimeout)
}

func TestParseConfigRejectedByServer(t *testing.T) {
	cmd := NewCommand(&application.Mock{})
	require.NoError(t, cmd.ParseFlags([]string{"--auth", "--prefix", "fleet"}))

	cfg := parseConfig(cmd, server.DefaultConfig())
	assert.Error(t, cfg.Validate())
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func newServices(t *testing.T) *application.Services {
	t.Helper()
	logger := zerolog.Nop()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	rec, err := reconciler.New(reconciler.WithMetrics(m), reconciler.WithLogger(&logger))
	require.NoError(t, err)
	repo := memory.New()
	broker := events.NewBroker(&logger)
	fleet, err := fleetview.New(
		fleetview.WithRepository(repo),
		fleetview.WithReconciler(rec),
		fleetview.WithPublisher(broker),
		fleetview.WithLogger(&logger),
	)
	require.NoError(t, err)

	return &application.Services{
		Repository: repo,
		Reconciler: rec,
		Fleet:      fleet,
		Dashboard:  dashboard.New(rec, dashboard.WithLogger(&logger)),
		Broker:     broker,
		Registry:   reg,
		Metrics:    m,
	}
}

func TestServeSeedsAndShutsDownGracefully(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`
- documentId: reg-honda
  vin: 1HGCM82633A004352
  documentType: registration
  extractionConfidence: 0.9
  receivedAt: 2025-06-01T08:00:00Z
  fields:
    make: Honda
    model: Accord
    year: 2003
`), 0o600))

	services := newServices(t)
	port := freePort(t)
	app := &application.Mock{
		ServicesFunc: func(context.Context) (*application.Services, error) { return services, nil },
	}

	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--host", "127.0.0.1", "--port", strconv.Itoa(port), "--seed", seed})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	healthURL := "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/health"
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL) //nolint:gosec,noctx // test server
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	_, ok := services.Reconciler.GetVehicleSummary(vehicles.VIN("1HGCM82633A004352"))
	assert.True(t, ok)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Contains(t, out.String(), "stopped gracefully")
}

func TestServeRejectsMissingSeed(t *testing.T) {
	services := newServices(t)
	app := &application.Mock{
		ServicesFunc: func(context.Context) (*application.Services, error) { return services, nil },
	}

	cmd := NewCommand(app)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--port", strconv.Itoa(freePort(t)), "--seed", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
