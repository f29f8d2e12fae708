// Package handlers provides HTTP request handlers for the fleetmap API.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/internal/server/sse"
	ws "github.com/agentstation/fleetmap/internal/server/websocket"
	"github.com/agentstation/fleetmap/pkg/dashboard"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/events"
	"github.com/agentstation/fleetmap/pkg/fleetview"
	"github.com/agentstation/fleetmap/pkg/logging"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

// Deps are the collaborators of the handlers.
type Deps struct {
	Fleet     *fleetview.Service
	Dashboard *dashboard.Cache
	Broker    *events.Broker
	WSHub     *ws.Hub
	SSE       *sse.Broadcaster
	Upgrader  websocket.Upgrader
	StartTime time.Time
	Logger    *zerolog.Logger
}

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	fleet          *fleetview.Service
	dashboard      *dashboard.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	startTime      time.Time
	logger         *zerolog.Logger
}

// New creates a new Handlers instance.
func New(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Handlers{
		fleet:          deps.Fleet,
		dashboard:      deps.Dashboard,
		broker:         deps.Broker,
		wsHub:          deps.WSHub,
		sseBroadcaster: deps.SSE,
		upgrader:       deps.Upgrader,
		startTime:      deps.StartTime,
		logger:         logger,
	}
}

// log returns the request logger, falling back to the handler logger.
func (h *Handlers) log(r *http.Request) *zerolog.Logger {
	if l := logging.FromContext(r.Context()); l != logging.Default() {
		return l
	}
	return h.logger
}

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.NewValidationError("body", nil, "request body is required")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.WrapValidation("body", err)
	}
	return nil
}
