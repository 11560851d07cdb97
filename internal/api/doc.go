// Package api implements the HTTP REST API for GeoControl Core.
//
// This package provides:
//   - CRUD endpoints for networks, gateways and sensors
//   - Measurement ingestion plus per-sensor and per-network statistics and
//     outlier queries
//   - JWT authentication and role-based permission checks
//   - Middleware stack (request ID, logging, recovery, CORS, body limit,
//     Prometheus instrumentation)
//
// # Errors
//
// Domain errors are mapped to HTTP status codes in one place (writeDomainError):
// NotFound becomes 404, Conflict 409, validation failures 400. Anything else
// is logged and returned as 500 without detail.
//
// # Time parameters
//
// startDate and endDate accept any ISO-8601 timestamp and are normalised to
// UTC before they reach the statistics engine.
package api
