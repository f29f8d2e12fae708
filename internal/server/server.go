// Package server provides the HTTP API of fleetmap.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/internal/server/adapters"
	"github.com/agentstation/fleetmap/internal/server/middleware"
	"github.com/agentstation/fleetmap/internal/server/sse"
	ws "github.com/agentstation/fleetmap/internal/server/websocket"
	"github.com/agentstation/fleetmap/pkg/dashboard"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/fleetview"
	"github.com/agentstation/fleetmap/pkg/logging"
	"github.com/agentstation/fleetmap/pkg/metrics"
)

// Deps are the services the server exposes. Fleet, Dashboard and Broker
// are required. Fleet should publish to Broker so that mutations reach
// the realtime transports.
type Deps struct {
	Fleet     *fleetview.Service
	Dashboard *dashboard.Cache
	Broker    *events.Broker
	Gatherer  prometheus.Gatherer
	Metrics   *metrics.Metrics
	Logger    *zerolog.Logger
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	fleet          *fleetview.Service
	dashboard      *dashboard.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	gatherer       prometheus.Gatherer
	metrics        *metrics.Metrics
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	limiter        *middleware.RateLimiter
	wg             sync.WaitGroup
	unsubscribe    func()
	startTime      time.Time
}

// New creates a new server instance with the given configuration.
func New(deps Deps, cfg Config) (*Server, error) {
	if deps.Fleet == nil {
		return nil, errors.NewValidationError("fleet", nil, "fleet service is required")
	}
	if deps.Dashboard == nil {
		return nil, errors.NewValidationError("dashboard", nil, "dashboard cache is required")
	}
	if deps.Broker == nil {
		return nil, errors.NewValidationError("broker", nil, "event broker is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = DefaultConfig().PathPrefix
	}
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = DefaultConfig().AuthHeader
	}

	wsHub := ws.NewHub(logger)
	sseBroadcaster := sse.NewBroadcaster(logger)

	// Transports and the dashboard cache all hang off the broker.
	deps.Broker.Subscribe(adapters.NewWebSocketSubscriber(wsHub))
	deps.Broker.Subscribe(adapters.NewSSESubscriber(sseBroadcaster))
	deps.Broker.Subscribe(deps.Dashboard.Subscriber())
	logger.Debug().Int("subscribers", deps.Broker.SubscriberCount()).Msg("Event broker wired")

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		fleet:          deps.Fleet,
		dashboard:      deps.Dashboard,
		broker:         deps.Broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		gatherer:  gatherer,
		metrics:   deps.Metrics,
		logger:    logger,
		config:    cfg,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	if cfg.RateLimit > 0 {
		s.limiter = middleware.NewRateLimiter(cfg.RateLimit, logger)
	}

	// Synchronous invalidation on every fleet mutation, ahead of the
	// asynchronous broker delivery.
	s.unsubscribe = deps.Fleet.Subscribe(fleetview.ClearOnChange(deps.Dashboard))

	return s, nil
}

// Start starts background services: the broker, the WebSocket hub, the SSE
// broadcaster and the rate limiter sweep when one is configured.
func (s *Server) Start() {
	s.logger.Debug().Msg("Starting background services")

	runs := []func(context.Context){s.broker.Run, s.wsHub.Run, s.sseBroadcaster.Run}
	if s.limiter != nil {
		runs = append(runs, s.limiter.Run)
	}
	for _, run := range runs {
		s.wg.Add(1)
		go func(run func(context.Context)) {
			defer s.wg.Done()
			run(s.ctx)
		}(run)
	}

	s.logger.Debug().Msg("All background services started")
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Shutdown stops background services and waits for them until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")

	s.unsubscribe()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Background services shut down")
		return nil
	case <-ctx.Done():
		s.logger.Warn().Msg("Background services shutdown timed out")
		return errors.NewTimeoutError("server shutdown", "", ctx.Err().Error())
	}
}

// WSHub returns the WebSocket hub.
func (s *Server) WSHub() *ws.Hub {
	return s.wsHub
}

// SSEBroadcaster returns the SSE broadcaster.
func (s *Server) SSEBroadcaster() *sse.Broadcaster {
	return s.sseBroadcaster
}

// Broker returns the event broker for publishing events.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// StartTime returns the server start time for uptime calculations.
func (s *Server) StartTime() time.Time {
	return s.startTime
}
