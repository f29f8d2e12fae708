package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstation/fleetmap/internal/server/handlers"
	"github.com/agentstation/fleetmap/internal/server/middleware"
	"github.com/agentstation/fleetmap/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	h := handlers.New(handlers.Deps{
		Fleet:     s.fleet,
		Dashboard: s.dashboard,
		Broker:    s.broker,
		WSHub:     s.wsHub,
		SSE:       s.sseBroadcaster,
		Upgrader:  s.upgrader,
		StartTime: s.startTime,
		Logger:    s.logger,
	})

	r := chi.NewRouter()
	s.applyMiddleware(r)

	// Set before any subrouter is mounted so they inherit the envelope.
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r.Method)
	})

	s.registerRoutes(r, h)
	return r
}

// applyMiddleware installs the middleware stack shared by every route.
func (s *Server) applyMiddleware(r chi.Router) {
	cfg := s.config

	// Logging and recovery (always enabled)
	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics(s.metrics))

	// CORS (if enabled)
	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
			corsConfig.AllowAll = false
		} else {
			corsConfig.AllowAll = true
		}
		r.Use(middleware.CORS(corsConfig))
	}

	// Authentication (if enabled)
	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig()
		authConfig.Enabled = true
		authConfig.APIKey = cfg.APIKey
		authConfig.HeaderName = cfg.AuthHeader
		authConfig.PublicPaths = []string{"/health", "/metrics", cfg.PathPrefix + "/health", cfg.PathPrefix + "/ready"}
		r.Use(middleware.Auth(authConfig, s.logger))
	}

	if s.limiter != nil {
		r.Use(middleware.RateLimit(s.limiter, s.exemptPaths()...))
	}
}

// exemptPaths are never rate limited.
func (s *Server) exemptPaths() []string {
	p := s.config.PathPrefix
	return []string{"/health", "/metrics", p + "/health", p + "/ready", p + "/updates/ws", p + "/updates/stream"}
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(r chi.Router, h *handlers.Handlers) {
	// Favicon handler (return 204 No Content to avoid 404 logs)
	r.Get("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/health", h.HandleHealth)

	if s.config.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route(s.config.PathPrefix, func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
		r.Get("/ready", h.HandleReady)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
			r.Use(middleware.ContentTypeJSON)

			r.Post("/documents", h.HandleProcessDocument)

			r.Get("/vehicles", h.HandleSearchVehicles)
			r.Get("/vehicles/{vin}", h.HandleGetVehicle)
			r.Get("/vehicles/{vin}/provenance", h.HandleVehicleProvenance)

			r.Route("/fleet", func(r chi.Router) {
				r.Get("/", h.HandleListFleet)
				r.Delete("/", h.HandleClearFleet)
				r.Post("/vehicles", h.HandleAddVehicles)
				r.Delete("/vehicles/{id}", h.HandleDeleteVehicle)
				r.Post("/rollback", h.HandleRollback)
			})

			r.Get("/dashboard", h.HandleDashboard)
			r.Delete("/dashboard/cache", h.HandleClearDashboardCache)

			r.Get("/stats", h.HandleStats)
			r.Get("/compliance/expiring", h.HandleExpiring)
			r.Get("/compliance/breakdown", h.HandleBreakdown)
		})

		// Streaming endpoints outlive any request timeout.
		r.Get("/updates/stream", h.HandleSSE)
		r.Get("/updates/ws", h.HandleWebSocket)
	})
}
