// Package server runs the sensorstats HTTP service.
//
// The server opens the configured reading store, migrates it, wires the
// query service and HTTP router, and drains in-flight requests on shutdown
// before releasing the store.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/xtxerr/sensorstats/internal/api"
	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/export"
	"github.com/xtxerr/sensorstats/internal/loader"
	"github.com/xtxerr/sensorstats/internal/logging"
	"github.com/xtxerr/sensorstats/internal/metrics"
	"github.com/xtxerr/sensorstats/internal/query"
	"github.com/xtxerr/sensorstats/internal/store"
	"github.com/xtxerr/sensorstats/internal/store/sqlite"
)

var log = logging.Component("server")

// =============================================================================
// Backend selection
// =============================================================================

// OpenBackend opens the store engine named by cfg.Store.Driver at the path
// selected by the testing flag.
func OpenBackend(cfg *loader.Config) (store.Backend, error) {
	path := cfg.StorePath()

	switch cfg.Store.Driver {
	case "duckdb":
		return store.New(store.Config{
			DSN:             path,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime.Duration(),
		})
	case "sqlite":
		return sqlite.Open(path)
	default:
		return nil, fmt.Errorf("%q: %w", cfg.Store.Driver, errors.ErrUnknownDriver)
	}
}

// =============================================================================
// Server
// =============================================================================

// Server is the sensorstats HTTP server.
type Server struct {
	cfg      *loader.Config
	backend  store.Backend
	query    *query.Service
	metrics  *metrics.Metrics
	http     *http.Server
	listener net.Listener

	closeOnce sync.Once
	closeErr  error
}

// New migrates backend and builds the HTTP stack from cfg.
// The server takes ownership of backend and closes it on Shutdown.
func New(ctx context.Context, cfg *loader.Config, backend store.Backend) (*Server, error) {
	compression, err := export.ParseCompression(cfg.Export.Compression)
	if err != nil {
		return nil, err
	}

	log.Info("migrating store", "driver", cfg.Store.Driver, "path", cfg.StorePath())
	if err := backend.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	m := metrics.New()
	svc := query.New(backend, query.Options{
		Timeout:        cfg.Query.Timeout.Duration(),
		SketchAccuracy: cfg.Query.SketchAccuracy,
		Metrics:        m,
	})

	router := api.NewRouter(api.NewHandler(api.Config{
		Query:          svc,
		Health:         backend.Health,
		Metrics:        m,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes.Bytes(),
		Compression:    compression,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}))

	return &Server{
		cfg:     cfg,
		backend: backend,
		query:   svc,
		metrics: m,
		http: &http.Server{
			Addr:              cfg.Server.Listen,
			Handler:           router,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout.Duration(),
		},
	}, nil
}

// Query returns the query service.
func (s *Server) Query() *query.Service {
	return s.query
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.listener = ln
	log.Info("listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve handles requests until ctx is cancelled, then shuts down.
// Listen must have been called.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("server: Serve called before Listen")
	}

	errc := make(chan error, 1)
	go func() {
		errc <- s.http.Serve(s.listener)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return s.closeBackend()
		}
		s.closeBackend()
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Run binds the listener and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		s.closeBackend()
		return err
	}
	return s.Serve(ctx)
}

// Shutdown stops accepting requests, waits up to the drain timeout for
// in-flight requests, and closes the store.
func (s *Server) Shutdown() error {
	log.Info("shutting down")

	drain := s.cfg.Server.DrainTimeout.Duration()
	ctx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()

	start := time.Now()
	httpErr := s.http.Shutdown(ctx)
	if httpErr != nil {
		log.Warn("drain incomplete", "timeout", drain, "error", httpErr)
		s.http.Close()
	}
	// Not tracked by http.Server when Serve never ran.
	if s.listener != nil {
		s.listener.Close()
	}

	if err := s.closeBackend(); err != nil {
		return err
	}

	st := s.query.Stats()
	log.Info("shutdown complete",
		"drain", time.Since(start),
		"queries", st.QueriesExecuted,
		"shared_snapshots", st.SharedSnapshots,
		"errors", st.Errors,
	)
	return nil
}

func (s *Server) closeBackend() error {
	s.closeOnce.Do(func() {
		if err := s.backend.Close(); err != nil {
			s.closeErr = fmt.Errorf("close store: %w", err)
		}
	})
	return s.closeErr
}
