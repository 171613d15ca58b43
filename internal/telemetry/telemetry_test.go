package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMiddlewareRecordsStatusAndRoute(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/employees", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Delete("/api/employees", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200"))
	notFoundBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodDelete, "404"))

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, "/api/employees", nil))
	}

	require.InDelta(t, okBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "200")), 0)
	require.InDelta(t, notFoundBefore+1,
		testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodDelete, "404")), 0)
}

func TestMiddlewareWithoutRouteContext(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "418"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/raw", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.InDelta(t, before+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "418")), 0)
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(employeeOperationsTotal.WithLabelValues("add", "conflict"))
	ObserveOperation("add", "conflict", 3*time.Millisecond)
	require.InDelta(t, before+1, testutil.ToFloat64(employeeOperationsTotal.WithLabelValues("add", "conflict")), 0)
}

func TestObserveAdjustedRowsIgnoresEmptyRuns(t *testing.T) {
	before := testutil.ToFloat64(employeeAdjustedRowsTotal)
	ObserveAdjustedRows(0)
	ObserveAdjustedRows(3)
	require.InDelta(t, before+3, testutil.ToFloat64(employeeAdjustedRowsTotal), 0)
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracingStdoutExporter(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "employee-store-test",
		Version:     "test",
	}, nil)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestHandlerServesMetrics(t *testing.T) {
	ObserveOperation("list", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "employee_operations_total")
}
