package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/reconciler"
)

// TestLoadConfig verifies basic config loading.
func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.StoreDriver != StoreMemory {
		t.Errorf("StoreDriver = %s, want %s", config.StoreDriver, StoreMemory)
	}
	if config.ConflictThreshold != reconciler.DefaultConflictThreshold {
		t.Errorf("ConflictThreshold = %v, want %v", config.ConflictThreshold, reconciler.DefaultConflictThreshold)
	}
	if config.BatchConcurrency < 1 {
		t.Errorf("BatchConcurrency = %d, want >= 1", config.BatchConcurrency)
	}
	if config.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", config.Server.Port)
	}
	// LogLevel stays empty so the precedence logic in logger.go applies
	if config.LogLevel != "" {
		t.Errorf("LogLevel = %q, want empty", config.LogLevel)
	}
	if config.LogFormat == "" {
		t.Error("LogFormat not set to default")
	}
}

// TestConfig_EnvironmentVariables verifies environment variable loading.
func TestConfig_EnvironmentVariables(t *testing.T) {
	t.Setenv("FLEETMAP_STORE_DRIVER", "files")
	t.Setenv("FLEETMAP_STORE_PATH", filepath.Join(t.TempDir(), "fleet.yaml"))
	t.Setenv("FLEETMAP_SERVER_PORT", "9090")
	t.Setenv("FLEETMAP_SERVER_API_KEY", "s3cret")
	t.Setenv("FLEETMAP_CACHE_TTL", "2m")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if config.StoreDriver != StoreFiles {
		t.Errorf("StoreDriver = %s, want files", config.StoreDriver)
	}
	if config.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", config.Server.Port)
	}
	if !config.Server.AuthEnabled || config.Server.APIKey != "s3cret" {
		t.Error("an API key should enable authentication")
	}
	if config.CacheTTL != 2*time.Minute {
		t.Errorf("CacheTTL = %v, want 2m", config.CacheTTL)
	}
	if config.EnvLogLevel != "debug" {
		t.Errorf("EnvLogLevel = %s, want debug", config.EnvLogLevel)
	}
}

// TestLoadConfigFile verifies values from an explicit config file.
func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleetmap.yaml")
	content := `store:
  driver: sqlite
  dsn: file::memory:
conflict_threshold: 0.7
server:
  rate_limit: 90
  cors_origins:
    - https://fleet.example.com
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() failed: %v", err)
	}
	if config.ConfigFile != path {
		t.Errorf("ConfigFile = %s, want %s", config.ConfigFile, path)
	}
	if config.StoreDriver != StoreSQLite || config.StoreDSN != "file::memory:" {
		t.Errorf("store = %s %s, want sqlite file::memory:", config.StoreDriver, config.StoreDSN)
	}
	if config.ConflictThreshold != 0.7 {
		t.Errorf("ConflictThreshold = %v, want 0.7", config.ConflictThreshold)
	}
	if len(config.Server.CORSOrigins) != 1 {
		t.Errorf("CORSOrigins = %v, want one origin", config.Server.CORSOrigins)
	}
	if config.Server.RateLimit != 90 {
		t.Errorf("RateLimit = %d, want 90", config.Server.RateLimit)
	}
}

// TestLoadConfigFile_Invalid verifies a malformed file is reported.
func TestLoadConfigFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("store: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfigFile(path); err == nil {
		t.Error("expected error for malformed config file")
	}
}

// TestConfig_Validate verifies settings that defaults cannot repair.
func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:       StoreMemory,
			ConflictThreshold: 0.6,
			ReviewThreshold:   0.5,
			BatchConcurrency:  4,
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mongo" }, "store.driver"},
		{"files without path", func(c *Config) { c.StoreDriver = StoreFiles }, "store.path"},
		{"postgres without dsn", func(c *Config) { c.StoreDriver = StorePostgres }, "store.dsn"},
		{"redis without dsn", func(c *Config) { c.StoreDriver = StoreRedis }, "store.dsn"},
		{"threshold above one", func(c *Config) { c.ConflictThreshold = 1.5 }, "conflict_threshold"},
		{"negative threshold", func(c *Config) { c.ReviewThreshold = -0.1 }, "review_threshold"},
		{"zero concurrency", func(c *Config) { c.BatchConcurrency = 0 }, "batch_concurrency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			var verr *errors.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() = %v, want ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %s, want %s", verr.Field, tt.field)
			}
		})
	}
}

// TestConfig_UpdateFromFlags verifies flag values override loaded values.
func TestConfig_UpdateFromFlags(t *testing.T) {
	c := &Config{Format: "yaml", EnvLogLevel: "error"}

	c.UpdateFromFlags(true, false, true, "", "")
	if !c.Verbose || !c.NoColor {
		t.Error("boolean flags not applied")
	}
	if c.Format != "yaml" {
		t.Errorf("empty --format replaced Format with %q", c.Format)
	}

	c.UpdateFromFlags(false, true, false, "json", "trace")
	if c.Format != "json" || c.LogLevel != "trace" {
		t.Errorf("Format = %s LogLevel = %s, want json trace", c.Format, c.LogLevel)
	}
	if c.EnvLogLevel != "error" {
		t.Error("flags must not touch the environment log level")
	}
}
