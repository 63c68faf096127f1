package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/statreg/pkg/logging"
)

func TestHealthController(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		router := NewRouter(NewHealthController(map[string]Check{
			"db": func(ctx context.Context) error { return nil },
		}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "ok", body.Status)
		require.Equal(t, "ok", body.Checks["db"])
	})

	t.Run("failing check degrades", func(t *testing.T) {
		router := NewRouter(NewHealthController(map[string]Check{
			"db":           func(ctx context.Context) error { return nil },
			"search_index": func(ctx context.Context) error { return errors.New("connection refused") },
		}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Equal(t, "degraded", body.Status)
		require.Equal(t, "connection refused", body.Checks["search_index"])
	})
}

func TestMetricsController_ServesDefaultGatherer(t *testing.T) {
	c := NewMetricsController("", nil, logging.Nop())
	require.Equal(t, "/debug/prometheus", c.Key())

	rec := httptest.NewRecorder()
	NewRouter(c).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/prometheus", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestMetricsController_ServesGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statreg_import_records_total",
		Help: "Records processed by status.",
	}, []string{"status"})
	reg.MustRegister(records)
	records.WithLabelValues("Warning").Add(3)

	rec := httptest.NewRecorder()
	NewRouter(NewMetricsController("/metrics", reg, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `statreg_import_records_total{status="Warning"} 3`)
	require.NotContains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	NewRouter(NewMetricsController("/metrics", reg, nil)).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
