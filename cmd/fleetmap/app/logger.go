package app

import (
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog"

	"github.com/agentstation/fleetmap/pkg/logging"
)

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

// NewLogger builds the process logger from config. The level is resolved
// in this order: --log-level, -q, -v, LOG_LEVEL, then info. Quiet beats
// verbose when both are set.
func NewLogger(config *Config) zerolog.Logger {
	level := determineLogLevel(config)
	return logging.NewLoggerFromConfig(&logging.Config{
		Level:     level,
		Format:    config.LogFormat,
		Output:    config.LogOutput,
		NoColor:   config.NoColor,
		AddCaller: level == "trace" || level == "debug",
		Service:   "fleetmap",
	})
}

func determineLogLevel(config *Config) string {
	switch {
	case config.LogLevel != "":
		return checkedLevel(config.LogLevel)
	case config.Quiet:
		if config.Verbose {
			fmt.Fprintln(os.Stderr, "Warning: both --verbose and --quiet specified, using --quiet")
		}
		return "warn"
	case config.Verbose:
		return "debug"
	case config.EnvLogLevel != "":
		return checkedLevel(config.EnvLogLevel)
	}
	return "info"
}

func checkedLevel(level string) string {
	if v := validateLogLevel(level); v != level {
		fmt.Fprintf(os.Stderr, "Warning: invalid log level %q, using %q\n", level, v)
		return v
	}
	return level
}

// validateLogLevel returns level when it is one of logLevels and "info"
// otherwise. Matching is case sensitive.
func validateLogLevel(level string) string {
	if slices.Contains(logLevels, level) {
		return level
	}
	return "info"
}
