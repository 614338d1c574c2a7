package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/testutil"
)

func newTestServer(t *testing.T, cfg config.RegistryConfig) *Server {
	t.Helper()

	service, err := NewService(testutil.NewMemoryStore(), cfg, nil, nil)
	require.NoError(t, err)

	server, err := NewServer(cfg, service, nil)
	require.NoError(t, err)
	require.NoError(t, server.Setup())

	return server
}

func TestNewServerRequiresService(t *testing.T) {
	_, err := NewServer(testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestServerStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.BindAddress = "127.0.0.1:0"
	server := newTestServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx, ready)
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("server did not become ready")
	}
	assert.True(t, server.IsRunning())

	require.NoError(t, server.Stop(5*time.Second))
	assert.False(t, server.IsRunning())

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestServerStopWithoutStart(t *testing.T) {
	server := newTestServer(t, testConfig())
	assert.NoError(t, server.Stop(time.Second))
}

func TestCORSMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.EnableCORS = true
	cfg.CORSOrigins = []string{"http://allowed.example"}
	server := newTestServer(t, cfg)

	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := server.corsMiddleware(inner)

	t.Run("allowed origin gets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/names", nil)
		req.Header.Set("Origin", "http://allowed.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "http://allowed.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin gets no CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/names", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/names", nil)
		req.Header.Set("Origin", "http://allowed.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("wildcard origin", func(t *testing.T) {
		wildcardCfg := testConfig()
		wildcardCfg.EnableCORS = true
		wildcardCfg.CORSOrigins = []string{"*"}
		wildcardServer := newTestServer(t, wildcardCfg)

		req := httptest.NewRequest(http.MethodGet, "/api/names", nil)
		req.Header.Set("Origin", "http://anywhere.example")
		rec := httptest.NewRecorder()
		wildcardServer.corsMiddleware(inner).ServeHTTP(rec, req)

		assert.Equal(t, "http://anywhere.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
