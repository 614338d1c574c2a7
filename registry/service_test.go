package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/testutil"
)

func testConfig() config.RegistryConfig {
	return config.RegistryConfig{
		BindAddress:    ":0",
		MaxRequestSize: 1024,
	}
}

func newTestService(t *testing.T) (*Service, *testutil.MemoryStore) {
	t.Helper()

	memStore := testutil.NewMemoryStore()
	service, err := NewService(memStore, testConfig(), nil, nil)
	require.NoError(t, err)

	return service, memStore
}

func serve(service *Service, method, path, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	service.RegisterHTTPHandlers(mux)

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(nil, testConfig(), nil, nil)
	assert.Error(t, err)
}

func TestLivenessEndpoints(t *testing.T) {
	service, _ := newTestService(t)

	for _, path := range []string{"/", "/healthz"} {
		rec := serve(service, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
		assert.JSONEq(t, `{"status":"live"}`, rec.Body.String())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestUnknownPathReturns404(t *testing.T) {
	service, _ := newTestService(t)

	rec := serve(service, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "error")
}

func TestSubmitName(t *testing.T) {
	service, memStore := newTestService(t)

	rec := serve(service, http.MethodPost, "/api/names", `{"name":"Ada"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"name added","name":"Ada"}`, rec.Body.String())
	assert.Equal(t, 1, memStore.Count())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestSubmitNameTrimsWhitespace(t *testing.T) {
	service, _ := newTestService(t)

	rec := serve(service, http.MethodPost, "/api/names", `{"name":"  Grace  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"name added","name":"Grace"}`, rec.Body.String())
}

func TestSubmitRejectsInvalidNames(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing field", `{}`},
		{"empty name", `{"name":""}`},
		{"whitespace only", `{"name":"   "}`},
		{"malformed json", `{not json`},
		{"wrong type", `{"name":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, memStore := newTestService(t)

			rec := serve(service, http.MethodPost, "/api/names", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, 0, memStore.Count())

			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp, "error")
		})
	}
}

func TestSubmitRejectsOversizedBody(t *testing.T) {
	service, memStore := newTestService(t)

	huge := `{"name":"` + strings.Repeat("x", 2048) + `"}`
	rec := serve(service, http.MethodPost, "/api/names", huge)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, 0, memStore.Count())
}

func TestSubmitStoreUnavailable(t *testing.T) {
	service, memStore := newTestService(t)
	memStore.SetUnavailable(true)

	rec := serve(service, http.MethodPost, "/api/names", `{"name":"Ada"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "unavailable")
}

func TestListEmptyReturnsEmptyArray(t *testing.T) {
	service, _ := newTestService(t)

	rec := serve(service, http.MethodGet, "/api/names", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// Must be [] and never null
	assert.JSONEq(t, `{"names":[]}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "null")
}

func TestListReturnsInsertionOrder(t *testing.T) {
	service, _ := newTestService(t)

	for _, name := range []string{"Ada", "Grace", "Edsger"} {
		rec := serve(service, http.MethodPost, "/api/names", `{"name":"`+name+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(service, http.MethodGet, "/api/names", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"names":["Ada","Grace","Edsger"]}`, rec.Body.String())
}

func TestListStoreUnavailable(t *testing.T) {
	service, memStore := newTestService(t)
	memStore.SetUnavailable(true)

	rec := serve(service, http.MethodGet, "/api/names", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	service, _ := newTestService(t)

	rec := serve(service, http.MethodDelete, "/api/names", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRequestIDPassedThrough(t *testing.T) {
	service, _ := newTestService(t)

	mux := http.NewServeMux()
	service.RegisterHTTPHandlers(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/names", nil)
	req.Header.Set("X-Request-ID", "trace-123")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", rec.Header().Get("X-Request-ID"))
}
