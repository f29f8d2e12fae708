package application

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/internal/server"
	"github.com/agentstation/fleetmap/pkg/reconciler"
)

// Mock is an Application for command tests. Nil hooks fall back to
// quiet defaults: a no-op logger, a default reconciler, server defaults
// and table output.
type Mock struct {
	ReconcilerFunc   func() (reconciler.Reconciler, error)
	ServicesFunc     func(ctx context.Context) (*Services, error)
	ServerConfigFunc func() server.Config
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	BuildInfo        BuildInfo
}

var _ Application = (*Mock)(nil)

func (m *Mock) NewReconciler() (reconciler.Reconciler, error) {
	if m.ReconcilerFunc == nil {
		return reconciler.New(reconciler.WithLogger(m.Logger()))
	}
	return m.ReconcilerFunc()
}

// Services returns nil services unless ServicesFunc is set.
func (m *Mock) Services(ctx context.Context) (*Services, error) {
	if m.ServicesFunc == nil {
		return nil, nil
	}
	return m.ServicesFunc(ctx)
}

func (m *Mock) ServerConfig() server.Config {
	if m.ServerConfigFunc == nil {
		return server.DefaultConfig()
	}
	return m.ServerConfigFunc()
}

func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return m.LoggerFunc()
}

func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc == nil {
		return "table"
	}
	return m.OutputFormatFunc()
}

func (m *Mock) Build() BuildInfo {
	return m.BuildInfo
}
