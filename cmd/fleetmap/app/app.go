// Package app provides the application context and dependency management
// for the fleetmap CLI: configuration, logging, and lazily built fleet
// services shared by every command.
package app

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/internal/cmd/application"
	"github.com/agentstation/fleetmap/internal/server"
	"github.com/agentstation/fleetmap/pkg/dashboard"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/fleetview"
	"github.com/agentstation/fleetmap/pkg/logging"
	"github.com/agentstation/fleetmap/pkg/metrics"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/repository"
)

var _ application.Application = (*App)(nil)

// App represents the fleetmap application with all its dependencies.
type App struct {
	build application.BuildInfo

	config *Config
	logger *zerolog.Logger

	// Services (lazy-initialized, singleton)
	mu       sync.RWMutex
	services *application.Services
}

// New loads configuration from the environment and applies opts.
func New(build application.BuildInfo, opts ...Option) (*App, error) {
	app := &App{build: build}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	logging.SetDefault(*app.logger)
	return app, nil
}

// Build returns the release metadata.
func (a *App) Build() application.BuildInfo {
	return a.build
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the --format value.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// ServerConfig returns the API server settings.
func (a *App) ServerConfig() server.Config {
	return a.config.Server
}

// NewReconciler returns an empty reconciler using the configured
// thresholds.
func (a *App) NewReconciler() (reconciler.Reconciler, error) {
	return a.newReconciler(nil)
}

func (a *App) newReconciler(m *metrics.Metrics) (reconciler.Reconciler, error) {
	rec, err := reconciler.New(
		reconciler.WithConflictThreshold(a.config.ConflictThreshold),
		reconciler.WithReviewThreshold(a.config.ReviewThreshold),
		reconciler.WithMetrics(m),
		reconciler.WithLogger(a.logger),
	)
	if err != nil {
		return nil, errors.WrapResource("create", "reconciler", "", err)
	}
	return rec, nil
}

// Services returns the fleet services, creating them on first use.
func (a *App) Services(ctx context.Context) (*application.Services, error) {
	a.mu.RLock()
	if a.services != nil {
		s := a.services
		a.mu.RUnlock()
		return s, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.services != nil {
		return a.services, nil
	}

	s, err := a.buildServices(ctx)
	if err != nil {
		return nil, err
	}
	a.services = s
	return s, nil
}

func (a *App) buildServices(ctx context.Context) (*application.Services, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	repo, err := OpenRepository(ctx, a.config)
	if err != nil {
		return nil, err
	}

	rec, err := a.newReconciler(m)
	if err != nil {
		closeRepository(repo, a.logger)
		return nil, err
	}

	broker := events.NewBroker(a.logger)
	dash := dashboard.New(rec,
		dashboard.WithTTL(a.config.CacheTTL),
		dashboard.WithPublisher(broker),
		dashboard.WithMetrics(m),
		dashboard.WithLogger(a.logger),
	)

	fleet, err := fleetview.New(
		fleetview.WithRepository(repo),
		fleetview.WithReconciler(rec),
		fleetview.WithPublisher(broker),
		fleetview.WithCaches(dash),
		fleetview.WithTTL(a.config.ViewTTL),
		fleetview.WithConcurrency(a.config.BatchConcurrency),
		fleetview.WithMetrics(m),
		fleetview.WithLogger(a.logger),
	)
	if err != nil {
		closeRepository(repo, a.logger)
		return nil, errors.WrapResource("create", "fleet view", "", err)
	}

	a.logger.Debug().
		Str("store", a.config.StoreDriver).
		Dur("view_ttl", a.config.ViewTTL).
		Dur("cache_ttl", a.config.CacheTTL).
		Msg("Fleet services ready")

	return &application.Services{
		Repository: repo,
		Reconciler: rec,
		Fleet:      fleet,
		Dashboard:  dash,
		Broker:     broker,
		Registry:   reg,
		Metrics:    m,
	}, nil
}

// Shutdown releases the repository connection, if any.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	s := a.services
	a.services = nil
	a.mu.Unlock()

	if s == nil {
		return nil
	}
	if c, ok := s.Repository.(repository.Closer); ok {
		return c.Close()
	}
	return nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		if err := config.Validate(); err != nil {
			return err
		}
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithServices sets prebuilt services (useful for testing).
func WithServices(s *application.Services) Option {
	return func(a *App) error {
		a.services = s
		return nil
	}
}
