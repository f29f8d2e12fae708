// Command fleetmap reconciles fleet vehicle documents and serves the
// resulting fleet view over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentstation/fleetmap/cmd/fleetmap/app"
	"github.com/agentstation/fleetmap/internal/cmd/application"
)

// Stamped by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
	builtBy = "unknown"
)

const shutdownGrace = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	fleetmap, err := app.New(application.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
		BuiltBy: builtBy,
	})
	if err != nil {
		app.PrintError(err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	runErr := fleetmap.Execute(ctx, os.Args[1:])

	// the signal context may already be done
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := fleetmap.Shutdown(shutdownCtx); err != nil {
		fleetmap.Logger().Error().Err(err).Msg("Shutdown failed")
	}

	if runErr != nil {
		app.PrintError(runErr)
		return 1
	}
	return 0
}
