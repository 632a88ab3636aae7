package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xtxerr/sensorstats/config"
	"github.com/xtxerr/sensorstats/internal/errors"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.StorePath() != config.DefaultDatabasePath {
		t.Errorf("expected %s, got %s", config.DefaultDatabasePath, cfg.StorePath())
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
testing: true
server:
  listen: 127.0.0.1:9000
  max_body_bytes: 1MB
  drain_timeout: 5s
store:
  driver: sqlite
  test_path: /tmp/readings-test.db
query:
  timeout: 2
  sketch_accuracy: 0.02
export:
  compression: snappy
log:
  level: debug
  format: json
cors:
  allowed_origins: ["https://dash.example"]
`)

	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Server.Listen != "127.0.0.1:9000" {
		t.Errorf("expected listen=127.0.0.1:9000, got %s", cfg.Server.Listen)
	}
	if cfg.Server.MaxBodyBytes.Bytes() != 1024*1024 {
		t.Errorf("expected 1MB body limit, got %d", cfg.Server.MaxBodyBytes.Bytes())
	}
	if cfg.Server.DrainTimeout.Duration() != 5*time.Second {
		t.Errorf("expected drain_timeout=5s, got %v", cfg.Server.DrainTimeout.Duration())
	}
	if cfg.Query.Timeout.Duration() != 2*time.Second {
		t.Errorf("expected timeout=2s from bare integer, got %v", cfg.Query.Timeout.Duration())
	}
	if cfg.StorePath() != "/tmp/readings-test.db" {
		t.Errorf("testing should select test_path, got %s", cfg.StorePath())
	}
	if cfg.Store.Path != config.DefaultDatabasePath {
		t.Errorf("unset fields should keep defaults, got path=%s", cfg.Store.Path)
	}
	if cfg.Store.MaxOpenConns != config.DefaultMaxOpenConns {
		t.Errorf("expected default max_open_conns, got %d", cfg.Store.MaxOpenConns)
	}
	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Errorf("expected 1 allowed origin, got %v", cfg.CORS.AllowedOrigins)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SENSORSTATS_TEST_DB", "from-env.db")

	cfg, err := Parse([]byte("store:\n  path: ${SENSORSTATS_TEST_DB}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Store.Path != "from-env.db" {
		t.Errorf("expected from-env.db, got %s", cfg.Store.Path)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("server: [unclosed")); err == nil {
		t.Error("expected parse error")
	}
	if _, err := Parse([]byte("server:\n  drain_timeout: soon\n")); err == nil {
		t.Error("expected error for bad duration")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("expected level=warn, got %s", cfg.Log.Level)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoad_Example(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("example config should be valid: %v", err)
	}

	want := DefaultConfig()
	if cfg.Server != want.Server {
		t.Errorf("expected server %+v, got %+v", want.Server, cfg.Server)
	}
	if cfg.Store != want.Store {
		t.Errorf("expected store %+v, got %+v", want.Store, cfg.Store)
	}
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("SENSORSTATS_ENV_CHECK=loaded\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("SENSORSTATS_ENV_CHECK") })

	if err := LoadEnv(filepath.Join(dir, "absent.env"), path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("SENSORSTATS_ENV_CHECK"); got != "loaded" {
		t.Errorf("expected loaded, got %q", got)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty listen", func(c *Config) { c.Server.Listen = "" }, "server.listen"},
		{"zero body", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
		{"empty path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"empty test path", func(c *Config) { c.Testing = true; c.Store.TestPath = "" }, "store.test_path"},
		{"accuracy", func(c *Config) { c.Query.SketchAccuracy = 1.5 }, "query.sketch_accuracy"},
		{"compression", func(c *Config) { c.Export.Compression = "brotli" }, "export.compression"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, errors.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error should mention %s: %v", tt.field, err)
			}
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Listen = ""
	cfg.Log.Format = "xml"

	err := Validate(cfg)
	var verrs *errors.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected *ValidationErrors, got %T", err)
	}
	if len(verrs.Errors) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(verrs.Errors), verrs)
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"", 0},
		{"512", 512},
		{"100B", 100},
		{"64KB", 64 * 1024},
		{"1mb", 1024 * 1024},
		{"2GB", 2 * 1024 * 1024 * 1024},
	}

	for _, tt := range tests {
		got, err := parseByteSize(tt.input)
		if err != nil {
			t.Errorf("parseByteSize(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}

	if _, err := parseByteSize("lots"); err == nil {
		t.Error("expected error for non-numeric size")
	}
}
