// Package telemetry holds the Prometheus collectors and HTTP metrics
// middleware for the employee service.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	employeeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "employee_operations_total",
			Help: "Total number of employee store operations, labeled by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	employeeOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "employee_operation_duration_seconds",
			Help:    "Histogram of employee store operation latencies, labeled by operation.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	employeeAdjustedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "employee_increment_rule_rows_total",
			Help: "Total number of rows changed by the increment rule.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveOperation records one employee store call.
func ObserveOperation(operation, outcome string, duration time.Duration) {
	employeeOperationsTotal.WithLabelValues(operation, outcome).Inc()
	employeeOperationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveAdjustedRows adds the row count of a committed increment rule.
func ObserveAdjustedRows(rows int64) {
	if rows > 0 {
		employeeAdjustedRowsTotal.Add(float64(rows))
	}
}
