// Package loader handles configuration file loading and validation.
//
// Configuration is read from YAML with environment variables expanded, so a
// .env file loaded beforehand can supply values such as ${SENSORSTATS_DB}.
package loader

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/export"
	"github.com/xtxerr/sensorstats/internal/logging"
)

// =============================================================================
// Load
// =============================================================================

// LoadEnv loads variables from the given .env files into the process
// environment. Variables that are already set are not overridden. Missing
// files are ignored.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from a YAML file on top of DefaultConfig.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration on top of DefaultConfig.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// Validate
// =============================================================================

// Validate validates the configuration.
func Validate(cfg *Config) error {
	errs := errors.NewValidationErrors()

	// Server validation
	if cfg.Server.Listen == "" {
		errs.AddField("server.listen", "cannot be empty")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		errs.AddField("server.max_body_bytes", "must be positive")
	}
	if cfg.Server.DrainTimeout < 0 {
		errs.AddField("server.drain_timeout", "cannot be negative")
	}

	// Store validation
	switch cfg.Store.Driver {
	case "duckdb", "sqlite":
	default:
		errs.AddField("store.driver", fmt.Sprintf("unknown driver %q (want duckdb or sqlite)", cfg.Store.Driver))
	}
	if cfg.Testing && cfg.Store.TestPath == "" {
		errs.AddField("store.test_path", "cannot be empty when testing is set")
	}
	if !cfg.Testing && cfg.Store.Path == "" {
		errs.AddField("store.path", "cannot be empty")
	}
	if cfg.Store.MaxOpenConns < 0 || cfg.Store.MaxIdleConns < 0 {
		errs.AddField("store.max_open_conns", "connection limits cannot be negative")
	}

	// Query validation
	if cfg.Query.Timeout < 0 {
		errs.AddField("query.timeout", "cannot be negative")
	}
	if cfg.Query.SketchAccuracy <= 0 || cfg.Query.SketchAccuracy >= 1 {
		errs.AddField("query.sketch_accuracy", "must be between 0 and 1 (exclusive)")
	}

	// Export validation
	if _, err := export.ParseCompression(cfg.Export.Compression); err != nil {
		errs.Add(err)
	}

	// Log validation
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		errs.AddField("log.level", err.Error())
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs.AddField("log.format", fmt.Sprintf("unknown format %q (want text or json)", cfg.Log.Format))
	}

	return errs.Err()
}
