package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwellscope/dwellscope/internal/observability"
)

func TestPrometheusHandler_ServesMetrics(t *testing.T) {
	t.Parallel()

	handler, _, err := observability.PrometheusHandler()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	// Prometheus exposition format uses text/plain with version parameter.
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestPrometheusHandler_ContainsTargetInfo(t *testing.T) {
	t.Parallel()

	handler, _, err := observability.PrometheusHandler()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	// The OTel Prometheus exporter includes target_info with SDK metadata.
	body := rec.Body.String()
	assert.Contains(t, body, "target_info")
}

func TestPrometheusHandler_ExposesProviderInstruments(t *testing.T) {
	t.Parallel()

	handler, provider, err := observability.PrometheusHandler()
	require.NoError(t, err)

	counter, err := provider.Meter("dwellscope").Int64Counter("dwellscope.scrape.smoke")
	require.NoError(t, err)
	counter.Add(context.Background(), 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Contains(t, rec.Body.String(), "dwellscope_scrape_smoke")
}
