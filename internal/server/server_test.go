package server

import (
	"context"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xtxerr/sensorstats/internal/errors"
	"github.com/xtxerr/sensorstats/internal/loader"
	testhelp "github.com/xtxerr/sensorstats/internal/testing"
)

func testConfig(t *testing.T, driver string) *loader.Config {
	t.Helper()
	cfg := loader.DefaultConfig()
	cfg.Server.Listen = "127.0.0.1:0"
	cfg.Server.DrainTimeout = loader.Duration(2 * time.Second)
	cfg.Store.Driver = driver
	cfg.Store.Path = filepath.Join(t.TempDir(), "readings.db")
	cfg.Store.TestPath = filepath.Join(t.TempDir(), "test_readings.db")
	return cfg
}

func TestOpenBackend(t *testing.T) {
	for _, driver := range []string{"duckdb", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)
			b, err := OpenBackend(cfg)
			require.NoError(t, err)
			defer b.Close()

			require.NoError(t, b.Migrate(context.Background()))
			require.NoError(t, b.Health(context.Background()))
			require.FileExists(t, cfg.Store.Path)
		})
	}
}

func TestOpenBackend_TestingUsesTestPath(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	cfg.Testing = true

	b, err := OpenBackend(cfg)
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Migrate(context.Background()))

	require.FileExists(t, cfg.Store.TestPath)
	require.NoFileExists(t, cfg.Store.Path)
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	cfg := testConfig(t, "postgres")
	_, err := OpenBackend(cfg)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrUnknownDriver))
}

func TestNew_InvalidCompression(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	cfg.Export.Compression = "brotli"

	b, err := OpenBackend(cfg)
	require.NoError(t, err)
	defer b.Close()

	_, err = New(context.Background(), cfg, b)
	require.Error(t, err)
}

func TestServer_RunAndShutdown(t *testing.T) {
	for _, driver := range []string{"duckdb", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)
			b, err := OpenBackend(cfg)
			require.NoError(t, err)

			srv, err := New(context.Background(), cfg, b)
			require.NoError(t, err)
			require.NoError(t, srv.Listen())

			ctx, cancel := context.WithCancel(context.Background())
			gt := testhelp.NewGoroutineTestWithTimeout(t, 10*time.Second)
			gt.Go(func() error {
				return srv.Serve(ctx)
			})

			base := "http://" + srv.Addr().String()
			for _, v := range []string{"22", "50", "100"} {
				resp, err := http.Post(base+"/devices/test_device/readings/", "application/json",
					strings.NewReader(`{"type":"temperature","value":`+v+`}`))
				require.NoError(t, err)
				resp.Body.Close()
				require.Equal(t, http.StatusCreated, resp.StatusCode)
			}

			resp, err := http.Get(base + "/devices/test_device/readings/median")
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			require.NoError(t, err)
			require.JSONEq(t, `[{"value":50}]`, string(body))

			cancel()
			gt.Wait()

			require.Equal(t, int64(1), srv.Query().Stats().QueriesExecuted)
			require.True(t, errors.Is(b.Health(context.Background()), errors.ErrStoreClosed))
		})
	}
}

func TestServer_ListenConflict(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	b, err := OpenBackend(cfg)
	require.NoError(t, err)
	first, err := New(context.Background(), cfg, b)
	require.NoError(t, err)
	require.NoError(t, first.Listen())
	defer first.Shutdown()

	cfg2 := testConfig(t, "sqlite")
	cfg2.Server.Listen = first.Addr().String()
	b2, err := OpenBackend(cfg2)
	require.NoError(t, err)
	second, err := New(context.Background(), cfg2, b2)
	require.NoError(t, err)

	err = second.Run(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(b2.Health(context.Background()), errors.ErrStoreClosed))
}

func TestServe_BeforeListen(t *testing.T) {
	cfg := testConfig(t, "sqlite")
	b, err := OpenBackend(cfg)
	require.NoError(t, err)
	defer b.Close()

	srv, err := New(context.Background(), cfg, b)
	require.NoError(t, err)
	require.Error(t, srv.Serve(context.Background()))
}
