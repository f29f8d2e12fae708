// Package serve provides the HTTP API server command.
package serve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/fleetmap/internal/cmd/application"
	"github.com/agentstation/fleetmap/internal/cmd/emoji"
	"github.com/agentstation/fleetmap/internal/cmd/extractions"
	"github.com/agentstation/fleetmap/internal/server"
	"github.com/agentstation/fleetmap/pkg/errors"
)

// ShutdownTimeout bounds connection draining after a stop signal.
const ShutdownTimeout = 30 * time.Second

// NewCommand creates the serve command using app context. Flags override
// the env and config file settings; their defaults only document them.
func NewCommand(app application.Application) *cobra.Command {
	defaults := app.ServerConfig()

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		Short:   "Start the REST API server with WebSocket and SSE support",
		Long: `Start the fleetmap REST API server.

Features:
  - Document ingestion and vehicle search endpoints
  - Fleet batch sync with all-or-nothing rollback
  - Cached fleet dashboard and compliance reports
  - WebSocket updates (/api/v1/updates/ws)
  - Server-Sent Events (/api/v1/updates/stream)
  - API key authentication and CORS (optional)
  - Prometheus metrics (/metrics)
  - Graceful shutdown with connection draining

The fleet store is selected with store.driver in the config file or
FLEETMAP_STORE_DRIVER (memory, files, postgres, sqlite, redis).`,
		Example: `  # Start on default port 8080
  fleetmap serve

  # Require an API key
  fleetmap serve --port 3000 --auth --api-key s3cret

  # Preload extraction files
  fleetmap serve --seed extractions/

  # Enable CORS for specific origins
  fleetmap serve --cors-origins "https://example.com,https://app.example.com"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd, args, app)
		},
	}

	cmd.Flags().IntP("port", "p", defaults.Port, "Server port")
	cmd.Flags().String("host", defaults.Host, "Bind address")
	cmd.Flags().String("prefix", defaults.PathPrefix, "API path prefix")

	cmd.Flags().Bool("cors", defaults.CORSEnabled, "Enable CORS for all origins")
	cmd.Flags().StringSlice("cors-origins", defaults.CORSOrigins, "Allowed CORS origins (comma-separated)")

	cmd.Flags().Bool("auth", defaults.AuthEnabled, "Enable API key authentication")
	cmd.Flags().String("auth-header", defaults.AuthHeader, "Authentication header name")
	cmd.Flags().String("api-key", "", "API key (default from FLEETMAP_SERVER_API_KEY)")

	cmd.Flags().Duration("request-timeout", defaults.RequestTimeout, "Per-request handler timeout")
	cmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", defaults.WriteTimeout, "HTTP write timeout (0 keeps streams open)")
	cmd.Flags().Duration("idle-timeout", defaults.IdleTimeout, "HTTP idle timeout")

	cmd.Flags().Bool("metrics", defaults.MetricsEnabled, "Enable metrics endpoint")
	cmd.Flags().Int("rate-limit", defaults.RateLimit, "Requests per minute per client IP (0 disables)")
	cmd.Flags().StringSlice("seed", nil, "Extraction files or directories to ingest before serving")

	return cmd
}

// runServer starts the API server.
func runServer(cmd *cobra.Command, _ []string, app application.Application) error {
	ctx := cmd.Context()
	cfg := parseConfig(cmd, app.ServerConfig())
	logger := app.Logger()

	services, err := app.Services(ctx)
	if err != nil {
		return err
	}

	srv, err := server.New(services.ServerDeps(logger), cfg)
	if err != nil {
		return errors.WrapResource("create", "server", "", err)
	}
	srv.Start()

	if _, err := services.Fleet.InitializeData(ctx); err != nil {
		logger.Warn().Err(err).Msg("Initial fleet load failed, serving empty view")
	}

	if seed := mustGetStringSlice(cmd, "seed"); len(seed) > 0 {
		docs, err := extractions.Load(seed...)
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return err
		}
		sum, err := extractions.Ingest(ctx, services.Fleet.ProcessDocument, docs)
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return err
		}
		logger.Info().
			Int("stored", sum.Stored).
			Int("duplicates", sum.Duplicates).
			Int("rejected", len(sum.Rejected)).
			Int("vehicles", sum.Vehicles).
			Msg("Seed documents ingested")
	}

	logger.Info().
		Str("addr", cfg.Addr()).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Bool("auth", cfg.AuthEnabled).
		Bool("metrics", cfg.MetricsEnabled).
		Msg("Starting API server")

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return startWithGracefulShutdown(ctx, httpServer, srv, cmd.OutOrStdout(), logger)
}

// parseConfig overlays the flags that were given on base, the configured
// server settings.
func parseConfig(cmd *cobra.Command, base server.Config) server.Config {
	cfg := base
	set := cmd.Flags().Changed

	if set("port") {
		cfg.Port = mustGetInt(cmd, "port")
	}
	if set("host") {
		cfg.Host = mustGetString(cmd, "host")
	}
	if set("prefix") {
		cfg.PathPrefix = mustGetString(cmd, "prefix")
	}
	if set("cors") {
		cfg.CORSEnabled = mustGetBool(cmd, "cors")
	}
	if set("cors-origins") {
		cfg.CORSOrigins = mustGetStringSlice(cmd, "cors-origins")
		cfg.CORSEnabled = cfg.CORSEnabled || len(cfg.CORSOrigins) > 0
	}
	if set("auth") {
		cfg.AuthEnabled = mustGetBool(cmd, "auth")
	}
	if set("auth-header") {
		cfg.AuthHeader = mustGetString(cmd, "auth-header")
	}
	if key := mustGetString(cmd, "api-key"); key != "" {
		cfg.APIKey = key
		cfg.AuthEnabled = true
	}
	if set("request-timeout") {
		cfg.RequestTimeout = mustGetDuration(cmd, "request-timeout")
	}
	if set("read-timeout") {
		cfg.ReadTimeout = mustGetDuration(cmd, "read-timeout")
	}
	if set("write-timeout") {
		cfg.WriteTimeout = mustGetDuration(cmd, "write-timeout")
	}
	if set("idle-timeout") {
		cfg.IdleTimeout = mustGetDuration(cmd, "idle-timeout")
	}
	if set("metrics") {
		cfg.MetricsEnabled = mustGetBool(cmd, "metrics")
	}
	if set("rate-limit") {
		cfg.RateLimit = mustGetInt(cmd, "rate-limit")
	}
	return cfg
}

// startWithGracefulShutdown serves until ctx is cancelled, then drains
// connections and stops the background services.
func startWithGracefulShutdown(ctx context.Context, httpServer *http.Server, srv *server.Server, out io.Writer, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		_, _ = fmt.Fprintf(out, "%s API server listening on %s\n", emoji.Success, httpServer.Addr)
		_, _ = fmt.Fprintln(out, "   Press Ctrl+C to stop")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- errors.WrapResource("listen", "server", httpServer.Addr, err)
		}
	}()

	select {
	case err := <-serverErr:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
		_, _ = fmt.Fprintf(out, "\n%s Shutting down API server...\n", emoji.Stop)

		// The parent context is already cancelled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		// Stop the stream loops first so open SSE and WebSocket
		// connections end and the HTTP server can drain.
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.WrapResource("shutdown", "server", httpServer.Addr, err)
		}

		logger.Info().Msg("Server stopped gracefully")
		_, _ = fmt.Fprintf(out, "%s API server stopped gracefully\n", emoji.Success)
		return nil
	}
}

// mustGetInt retrieves an integer flag value or panics if the flag doesn't exist.
// This should only be used for flags defined in this package.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	val, err := cmd.Flags().GetStringSlice(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}

func mustGetDuration(cmd *cobra.Command, name string) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		panic(fmt.Sprintf("programming error: failed to get flag %q: %v", name, err))
	}
	return val
}
