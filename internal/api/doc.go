// Package api hosts the HTTP server, middleware, and REST handlers for the
// employee service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - /api/employees/... (also served as /api/Employees/...) for record
//     maintenance, the increment rule and the ABC sums report.
package api
