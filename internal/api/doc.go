// Package api hosts the status HTTP server of a running harvest. Routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/state for the in-memory cursor.
//   - GET /v1/records?failed=&limit=&offset= for stored field records.
package api
