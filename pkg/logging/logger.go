// Package logging provides structured logging for fleetmap on top of
// zerolog. Terminals get console output, everything else gets JSON.
//
// Components take a *zerolog.Logger through their options and prefer a
// logger carried by the context, so request and batch fields follow the
// work through the reconciler:
//
//	ctx = logging.Attach(ctx, logger)
//	ctx = logging.WithDocument(ctx, ext.DocumentID, string(ext.DocumentType))
//	logging.FromContext(ctx).Info().Msg("Document stored")
package logging

import (
	"io"
	"os"
	"sync/atomic"

	goisatty "github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var defaultLogger atomic.Pointer[zerolog.Logger]

func init() {
	logger := NewLoggerFromConfig(ConfigFromEnv())
	defaultLogger.Store(&logger)
}

// Default returns the process-wide logger.
func Default() *zerolog.Logger {
	return defaultLogger.Load()
}

// SetDefault replaces the process-wide logger, including zerolog's
// global log.Logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger.Store(&logger)
	log.Logger = logger
}

// New returns a JSON logger writing to w at the global level.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(zerolog.GlobalLevel()).
		With().
		Timestamp().
		Logger()
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return goisatty.IsTerminal(fd) || goisatty.IsCygwinTerminal(fd)
}
