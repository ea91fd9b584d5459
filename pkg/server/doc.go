// Package server exposes the HTTP API under /api: app and policy CRUD with
// lifecycle transitions, rule module management and validation, telemetry
// ingest and summaries, simulation, live decision evaluation, and the
// audit log. Prometheus metrics are served on /metrics when enabled.
//
// List responses always carry arrays, never null, plus a count field.
// Errors use the shape {"error": string, "details": string}.
package server
