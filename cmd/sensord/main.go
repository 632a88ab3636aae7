// sensord is the sensor readings statistics server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/loader"
	"github.com/xtxerr/sensorstats/internal/logging"
	"github.com/xtxerr/sensorstats/internal/server"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sensord: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	envFile := flag.String("env", ".env", "dotenv file loaded before the config")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dbPath := flag.String("db", "", "database path (overrides config)")
	driver := flag.String("driver", "", "storage engine: duckdb or sqlite (overrides config)")
	testing := flag.Bool("testing", false, "use the test database")
	flag.Parse()

	if err := loader.LoadEnv(*envFile); err != nil {
		return err
	}

	// Load config
	cfg, err := loader.Load(*cfgPath)
	usingDefaults := false
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		cfg = loader.DefaultConfig()
		usingDefaults = true
	}

	// CLI overrides
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	if *driver != "" {
		cfg.Store.Driver = *driver
	}
	if *testing {
		cfg.Testing = true
	}
	if *dbPath != "" {
		if cfg.Testing {
			cfg.Store.TestPath = *dbPath
		} else {
			cfg.Store.Path = *dbPath
		}
	}

	if err := loader.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.Init(level, cfg.Log.Format == "json")

	log := logging.Component("main")
	log.Info("sensord starting", "version", Version)
	if usingDefaults {
		log.Info("no config file found, using defaults", "path", *cfgPath)
	}

	backend, err := server.OpenBackend(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, backend)
	if err != nil {
		backend.Close()
		return err
	}

	return srv.Run(ctx)
}
