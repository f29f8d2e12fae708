package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/fleetmap/internal/server"
	"github.com/agentstation/fleetmap/pkg/dashboard"
	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/fleetview"
	"github.com/agentstation/fleetmap/pkg/reconciler"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreFiles    = "files"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
)

// Config holds the application configuration loaded from config files,
// environment variables and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Fleet storage
	StoreDriver string
	StoreDSN    string
	StorePath   string

	// Reconciliation
	ConflictThreshold float64
	ReviewThreshold   float64
	CacheTTL          time.Duration
	ViewTTL           time.Duration
	BatchConcurrency  int

	// API server
	Server server.Config

	// Logging configuration. LogLevel comes from --log-level and
	// EnvLogLevel from LOG_LEVEL or the config file.
	LogLevel    string
	EnvLogLevel string
	LogFormat   string
	LogOutput   string
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (handled by cobra)
//  2. Environment variables (FLEETMAP_STORE_DRIVER, FLEETMAP_SERVER_PORT, ...)
//  3. .env files
//  4. Config file (~/.fleetmap.yaml, ./.fleetmap.yaml or $FLEETMAP_CONFIG)
//  5. Defaults
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile is LoadConfig with an explicit config file. An empty
// file searches the standard locations.
func LoadConfigFile(file string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix("fleetmap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if file == "" {
		file = v.GetString("config")
	}
	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".fleetmap")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "read "+v.ConfigFileUsed(), err)
		}
	}

	srv := server.DefaultConfig()
	srv.Host = v.GetString("server.host")
	srv.Port = v.GetInt("server.port")
	srv.PathPrefix = v.GetString("server.prefix")
	srv.APIKey = v.GetString("server.api_key")
	srv.AuthEnabled = v.GetBool("server.auth") || srv.APIKey != ""
	srv.CORSEnabled = v.GetBool("server.cors")
	srv.CORSOrigins = v.GetStringSlice("server.cors_origins")
	srv.MetricsEnabled = v.GetBool("server.metrics")
	srv.RateLimit = v.GetInt("server.rate_limit")

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		StoreDriver: strings.ToLower(v.GetString("store.driver")),
		StoreDSN:    v.GetString("store.dsn"),
		StorePath:   v.GetString("store.path"),

		ConflictThreshold: v.GetFloat64("conflict_threshold"),
		ReviewThreshold:   v.GetFloat64("review_threshold"),
		CacheTTL:          v.GetDuration("cache_ttl"),
		ViewTTL:           v.GetDuration("view_ttl"),
		BatchConcurrency:  v.GetInt("batch_concurrency"),

		Server: srv,

		// LOG_* are read unprefixed, as pkg/logging does.
		EnvLogLevel: getEnvOrDefault("LOG_LEVEL", v.GetString("log.level")),
		LogFormat:   getEnvOrDefault("LOG_FORMAT", v.GetString("log.format")),
		LogOutput:   getEnvOrDefault("LOG_OUTPUT", v.GetString("log.output")),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := server.DefaultConfig()
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.path", "fleet.yaml")
	v.SetDefault("conflict_threshold", reconciler.DefaultConflictThreshold)
	v.SetDefault("review_threshold", reconciler.DefaultReviewThreshold)
	v.SetDefault("cache_ttl", dashboard.DefaultTTL)
	v.SetDefault("view_ttl", fleetview.DefaultTTL)
	v.SetDefault("batch_concurrency", fleetview.DefaultConcurrency)
	v.SetDefault("server.host", defaults.Host)
	v.SetDefault("server.port", defaults.Port)
	v.SetDefault("server.prefix", defaults.PathPrefix)
	v.SetDefault("server.metrics", defaults.MetricsEnabled)
	v.SetDefault("server.rate_limit", defaults.RateLimit)
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
}

// Validate checks the settings that cannot be repaired by defaults.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory, StoreFiles, StorePostgres, StoreSQLite, StoreRedis:
	default:
		return errors.NewValidationError("store.driver", c.StoreDriver, "must be one of: memory, files, postgres, sqlite, redis")
	}
	if c.StoreDriver == StoreFiles && c.StorePath == "" {
		return errors.NewValidationError("store.path", c.StorePath, "required for the files store")
	}
	if (c.StoreDriver == StorePostgres || c.StoreDriver == StoreSQLite || c.StoreDriver == StoreRedis) && c.StoreDSN == "" {
		return errors.NewValidationError("store.dsn", c.StoreDSN, "required for the "+c.StoreDriver+" store")
	}
	for field, t := range map[string]float64{"conflict_threshold": c.ConflictThreshold, "review_threshold": c.ReviewThreshold} {
		if t < 0 || t > 1 {
			return errors.NewValidationError(field, t, "must be within [0,1]")
		}
	}
	if c.BatchConcurrency < 1 {
		return errors.NewValidationError("batch_concurrency", c.BatchConcurrency, "must be at least 1")
	}
	return nil
}

// UpdateFromFlags updates config values from parsed command flags so flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files. Variables
// already set in the environment win.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
