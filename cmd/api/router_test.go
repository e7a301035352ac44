package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	importhandler "github.com/FACorreiaa/monexa/internal/domain/import/handler"
	"github.com/FACorreiaa/monexa/pkg/config"
	"github.com/FACorreiaa/monexa/pkg/metrics"
)

func testDependencies(withMetrics bool) *Dependencies {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := &Dependencies{
		Config: &config.Config{
			Server: config.ServerConfig{AllowedOrigins: []string{"*"}},
		},
		Logger: logger,
	}
	if withMetrics {
		d.Metrics = metrics.New()
	}
	d.ImportHandler = importhandler.NewImportHandler(nil, 1<<20, logger)
	return d
}

func TestRouter_Health(t *testing.T) {
	srv := httptest.NewServer(testDependencies(false).Router())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"message"`)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	srv := httptest.NewServer(testDependencies(true).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sources")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "http_request_duration_seconds"))
}

func TestRouter_MetricsDisabled(t *testing.T) {
	srv := httptest.NewServer(testDependencies(false).Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
