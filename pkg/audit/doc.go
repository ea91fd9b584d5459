// Package audit maintains the append-only trail of live decisions.
//
// Appends flow through a buffered queue drained by a single writer
// goroutine, which makes the append point the one serialization point for
// ordering. Storage failures are retried with exponential backoff; an
// entry is never silently dropped while the store is open. Simulation runs
// never append here.
//
// Retention is enforced by the Pruner, optionally on a cron schedule.
package audit
