package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/authority/internal/clock"
	"github.com/dropDatabas3/authority/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.JWT.KeyFile = filepath.Join(t.TempDir(), "signing.jwk")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuild_MemoryStore(t *testing.T) {
	rt, err := Build(context.Background(), testConfig(t), Options{
		Version:  "test",
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rt.Close()) })

	require.Equal(t, "memory", rt.Store.Name())
	require.Equal(t, 30*time.Second, rt.Server.WriteTimeout)

	srv := httptest.NewServer(rt.App.Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, rt.Signer.KeyID(), resp.Header.Get("X-JWKS-KID"))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "authority_http_request_duration_seconds")
}

func TestBuild_UnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "mongo"
	_, err := Build(context.Background(), cfg, Options{Registry: prometheus.NewRegistry()})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not registered")
}

func TestLoadSigner_PersistsKey(t *testing.T) {
	cfg := testConfig(t)
	clk := clock.NewFixed(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	first, err := LoadSigner(cfg.JWT, clk)
	require.NoError(t, err)
	second, err := LoadSigner(cfg.JWT, clk)
	require.NoError(t, err)
	require.Equal(t, first.KeyID(), second.KeyID())

	cfg.JWT.KeyFile = ""
	ephemeral, err := LoadSigner(cfg.JWT, clk)
	require.NoError(t, err)
	require.NotEqual(t, first.KeyID(), ephemeral.KeyID())
}

func TestServe_StopsOnCancel(t *testing.T) {
	rt, err := Build(context.Background(), testConfig(t), Options{Registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
