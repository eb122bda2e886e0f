// Package api hosts the HTTP server, middleware, and REST handlers of the
// scraper. Notable routes:
//   - GET /healthz and /readyz for liveness and readiness.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/runs to run categories and store their records.
//   - POST /v1/jobs/search, GET /v1/financial/markets, GET /v1/odds/sports
//     and POST /v1/website for single-category runs.
//   - GET /v1/stats, /v1/history, /v1/dashboard and /v1/dashboard/samples for
//     the dashboard views.
//   - GET /v1/events for the live run event stream (websocket).
//
// Every JSON response carries "status": "success" or "error".
package api
