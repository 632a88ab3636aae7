// Package config provides configuration defaults and utilities
// for the sensorstats application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or environment variables.
package config

import "time"

// =============================================================================
// Network Defaults
// =============================================================================

const (
	// DefaultListenAddress is the default HTTP listen address.
	// Override via config: server.listen
	DefaultListenAddress = "0.0.0.0:8080"

	// DefaultMaxBodyBytes limits the size of a POSTed reading body.
	// A reading is a handful of fields; 64 KiB is far above any valid body.
	// Override via config: server.max_body_bytes
	DefaultMaxBodyBytes = 64 * 1024

	// DefaultReadHeaderTimeout bounds how long a client may take to send headers.
	// Override via config: server.read_header_timeout
	DefaultReadHeaderTimeout = 10 * time.Second
)

// =============================================================================
// Shutdown Defaults
// =============================================================================

const (
	// DefaultDrainTimeout is how long to wait for in-flight requests during shutdown.
	// This follows the Kubernetes convention (terminationGracePeriodSeconds = 30s).
	// Override via config: server.drain_timeout
	DefaultDrainTimeout = 30 * time.Second
)

// =============================================================================
// Store Defaults
// =============================================================================

const (
	// DefaultDriver is the storage engine used when none is configured.
	// Supported: "duckdb", "sqlite".
	// Override via config: store.driver
	DefaultDriver = "duckdb"

	// DefaultDatabasePath is the readings database used in normal mode.
	// Override via config: store.path
	DefaultDatabasePath = "database.db"

	// DefaultTestDatabasePath is the readings database used when testing is set.
	// Override via config: store.test_path
	DefaultTestDatabasePath = "test_database.db"

	// DefaultMaxOpenConns is the maximum number of open database connections.
	// Override via config: store.max_open_conns
	DefaultMaxOpenConns = 25

	// DefaultMaxIdleConns is the maximum number of idle database connections.
	// Override via config: store.max_idle_conns
	DefaultMaxIdleConns = 5

	// DefaultConnMaxLifetime is the maximum lifetime of a database connection.
	// Override via config: store.conn_max_lifetime
	DefaultConnMaxLifetime = 5 * time.Minute

	// DefaultPingTimeout bounds the connectivity check when opening a store.
	DefaultPingTimeout = 5 * time.Second
)

// =============================================================================
// Query Defaults
// =============================================================================

const (
	// DefaultQueryTimeout bounds a single statistical query.
	// Zero disables the timeout.
	// Override via config: query.timeout
	DefaultQueryTimeout = 0 * time.Second

	// DefaultSketchAccuracy is the relative accuracy of DDSketch percentiles.
	// 0.01 means estimates are within 1% of the true value.
	// Override via config: query.sketch_accuracy
	DefaultSketchAccuracy = 0.01
)

// =============================================================================
// Export Defaults
// =============================================================================

const (
	// DefaultExportCompression is the Parquet codec used by the export endpoint.
	// Supported: none, snappy, zstd, lz4, gzip.
	// Override via config: export.compression
	DefaultExportCompression = "zstd"
)

// =============================================================================
// Logging Defaults
// =============================================================================

const (
	// DefaultLogLevel is the minimum level written to the log.
	// Override via config: log.level
	DefaultLogLevel = "info"

	// DefaultLogFormat selects the slog handler ("text" or "json").
	// Override via config: log.format
	DefaultLogFormat = "text"
)
