// Package application provides the application interface for fleetmap
// commands.
//
// Commands accept an Application rather than the concrete app type so
// they can be tested with a Mock:
//
//	mock := &application.Mock{
//	    ReconcilerFunc: func() (reconciler.Reconciler, error) {
//	        return reconciler.New(reconciler.WithClock(fixed))
//	    },
//	}
//	cmd := reconcile.NewCommand(mock)
package application

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/internal/server"
	"github.com/agentstation/fleetmap/pkg/dashboard"
	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/fleetview"
	"github.com/agentstation/fleetmap/pkg/metrics"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/repository"
)

// Application is what commands need from the app.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// NewReconciler returns a fresh, empty reconciler configured from
	// the app settings. Offline commands use one per run.
	NewReconciler() (reconciler.Reconciler, error)

	// Services returns the long-lived services backing the API server,
	// building them on first use.
	Services(ctx context.Context) (*Services, error)

	// ServerConfig returns the server settings from config and env.
	// Command flags override them.
	ServerConfig() server.Config

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the requested output format, or "" for
	// auto-detection.
	OutputFormat() string

	// Build returns the release metadata stamped at link time.
	Build() BuildInfo
}

// BuildInfo identifies a release.
type BuildInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
	BuiltBy string `json:"builtBy" yaml:"builtBy"`
}

// String renders the one-line form printed by the version command.
func (b BuildInfo) String() string {
	return "fleetmap " + or(b.Version, "dev") +
		" (commit " + or(b.Commit, "unknown") +
		", built " + or(b.Date, "unknown") +
		" by " + or(b.BuiltBy, "unknown") + ")"
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// Services are the wired fleet services.
type Services struct {
	Repository repository.Repository
	Reconciler reconciler.Reconciler
	Fleet      *fleetview.Service
	Dashboard  *dashboard.Cache
	Broker     *events.Broker
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
}

// ServerDeps returns the dependencies of the API server.
func (s *Services) ServerDeps(logger *zerolog.Logger) server.Deps {
	return server.Deps{
		Fleet:     s.Fleet,
		Dashboard: s.Dashboard,
		Broker:    s.Broker,
		Gatherer:  s.Registry,
		Metrics:   s.Metrics,
		Logger:    logger,
	}
}
