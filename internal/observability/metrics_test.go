package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/test")
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `odyssey_http_requests_total{code="418",route="/test"} 1`)
	require.Contains(t, body, `odyssey_http_request_duration_seconds_bucket{route="/test"`)
}

func TestCostingCounters(t *testing.T) {
	metrics := NewMetrics()
	costing := metrics.Costing()

	costing.MovePosted("SALE", false)
	costing.MovePosted("SALE", false)
	costing.MovePosted("PURCHASE", true)
	costing.InsufficientStock("SALE")
	costing.ShortfallAccepted(2.5)
	costing.LayersConsumed(3)
	costing.LayersConsumed(0)

	require.Equal(t, 2.0, testutil.ToFloat64(costing.moves.WithLabelValues("SALE", "out")))
	require.Equal(t, 1.0, testutil.ToFloat64(costing.moves.WithLabelValues("PURCHASE", "in")))
	require.Equal(t, 1.0, testutil.ToFloat64(costing.insufficient.WithLabelValues("SALE")))
	require.Equal(t, 1.0, testutil.ToFloat64(costing.shortfalls))
	require.Equal(t, 2.5, testutil.ToFloat64(costing.shortfallQty))
	require.Equal(t, 3.0, testutil.ToFloat64(costing.layers))

	body := scrape(t, metrics)
	require.True(t, strings.Contains(body, "odyssey_costing_negative_shortfall_total 1"), body)
}

func TestNilCostingIsNoop(t *testing.T) {
	var costing *Costing
	require.NotPanics(t, func() {
		costing.MovePosted("SALE", false)
		costing.InsufficientStock("SALE")
		costing.ShortfallAccepted(1)
		costing.LayersConsumed(1)
	})

	var metrics *Metrics
	require.Nil(t, metrics.Costing())
	require.Equal(t, prometheus.DefaultRegisterer, metrics.Registerer())
}
