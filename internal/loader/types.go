// Package loader - Configuration Types
//
// Defines the YAML configuration structure for sensord.
//
//	testing:   selects store.test_path instead of store.path
//	server:    listen address, body limit, shutdown behavior
//	store:     engine (duckdb | sqlite), database paths, connection pool
//	query:     statistical query timeout, percentile sketch accuracy
//	export:    Parquet compression
//	log:       level and handler format
//	cors:      allowed browser origins
package loader

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/sensorstats/config"
)

// =============================================================================
// Root Configuration
// =============================================================================

// Config is the root configuration structure for sensord.
type Config struct {
	// Testing switches the store to store.test_path.
	Testing bool `yaml:"testing"`

	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Query  QueryConfig  `yaml:"query"`
	Export ExportConfig `yaml:"export"`
	Log    LogConfig    `yaml:"log"`
	CORS   CORSConfig   `yaml:"cors"`
}

// =============================================================================
// Server Configuration
// =============================================================================

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Listen is the HTTP listen address.
	// Default: 0.0.0.0:8080
	Listen string `yaml:"listen"`

	// MaxBodyBytes limits POST bodies. Accepts "64KB" style sizes.
	// Default: 64KB
	MaxBodyBytes ByteSize `yaml:"max_body_bytes"`

	// ReadHeaderTimeout bounds how long a client may take to send headers.
	// Default: 10s
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`

	// DrainTimeout is how long shutdown waits for in-flight requests.
	// Default: 30s
	DrainTimeout Duration `yaml:"drain_timeout"`
}

// =============================================================================
// Store Configuration
// =============================================================================

// StoreConfig configures the reading store.
type StoreConfig struct {
	// Driver selects the engine: "duckdb" or "sqlite".
	// Default: duckdb
	Driver string `yaml:"driver"`

	// Path is the database file used in normal mode.
	// Default: database.db
	Path string `yaml:"path"`

	// TestPath is the database file used when testing is set.
	// Default: test_database.db
	TestPath string `yaml:"test_path"`

	// MaxOpenConns is the max open database connections (duckdb only).
	// Default: 25
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the max idle connections in the pool (duckdb only).
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// ConnMaxLifetime is the max lifetime of a connection (duckdb only).
	// Default: 5m
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
}

// =============================================================================
// Query / Export / Log / CORS
// =============================================================================

// QueryConfig configures the query composer.
type QueryConfig struct {
	// Timeout bounds a single store read. 0 disables the bound.
	// Default: 0
	Timeout Duration `yaml:"timeout"`

	// SketchAccuracy is the relative accuracy of percentile estimates.
	// Default: 0.01
	SketchAccuracy float64 `yaml:"sketch_accuracy"`
}

// ExportConfig configures the Parquet export endpoint.
type ExportConfig struct {
	// Compression is one of none, snappy, zstd, lz4, gzip.
	// Default: zstd
	Compression string `yaml:"compression"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format"`
}

// CORSConfig configures cross-origin access for browser dashboards.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API.
	// Empty disables CORS headers.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// =============================================================================
// Defaults
// =============================================================================

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:            config.DefaultListenAddress,
			MaxBodyBytes:      ByteSize(config.DefaultMaxBodyBytes),
			ReadHeaderTimeout: Duration(config.DefaultReadHeaderTimeout),
			DrainTimeout:      Duration(config.DefaultDrainTimeout),
		},
		Store: StoreConfig{
			Driver:          config.DefaultDriver,
			Path:            config.DefaultDatabasePath,
			TestPath:        config.DefaultTestDatabasePath,
			MaxOpenConns:    config.DefaultMaxOpenConns,
			MaxIdleConns:    config.DefaultMaxIdleConns,
			ConnMaxLifetime: Duration(config.DefaultConnMaxLifetime),
		},
		Query: QueryConfig{
			Timeout:        Duration(config.DefaultQueryTimeout),
			SketchAccuracy: config.DefaultSketchAccuracy,
		},
		Export: ExportConfig{
			Compression: config.DefaultExportCompression,
		},
		Log: LogConfig{
			Level:  config.DefaultLogLevel,
			Format: config.DefaultLogFormat,
		},
	}
}

// StorePath returns the database file selected by the testing flag.
func (c *Config) StorePath() string {
	if c.Testing {
		return c.Store.TestPath
	}
	return c.Store.Path
}

// =============================================================================
// Custom Types
// =============================================================================

// Duration is a time.Duration that can be unmarshaled from YAML.
// Accepts Go duration strings ("30s", "5m") or plain integers as seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		// Try as int (seconds)
		var i int
		if err := unmarshal(&i); err != nil {
			return err
		}
		*d = Duration(time.Duration(i) * time.Second)
		return nil
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ByteSize is a size in bytes that can be unmarshaled from YAML.
// Supports: "64KB", "1MB", or plain bytes.
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var i int64
		if err := unmarshal(&i); err != nil {
			return err
		}
		*b = ByteSize(i)
		return nil
	}
	size, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(size)
	return nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

// byteUnits is ordered longest suffix first so "MB" is not read as "B".
var byteUnits = []struct {
	suffix     string
	multiplier int64
}{
	{"GB", 1024 * 1024 * 1024},
	{"MB", 1024 * 1024},
	{"KB", 1024},
	{"B", 1},
}

// parseByteSize parses a size string like "64KB" or "1MB".
func parseByteSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, u.suffix))
			n, err := strconv.ParseInt(numStr, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parse byte size %q: %w", s, err)
			}
			return n * u.multiplier, nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse byte size %q: %w", s, err)
	}
	return n, nil
}
