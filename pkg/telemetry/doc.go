// Package telemetry defines the captured behavioral events emitted by the
// sandbox runtime (syscalls, network operations, file operations) and the
// aggregator that computes ranked summaries over them.
//
// Summaries are views: they are recomputed from the raw event set on every
// call and are never persisted as authoritative state. Summarize is a pure
// function, so it is safe under concurrent use and repeatable for audits.
//
// The logging and metrics sub-packages carry the process-level observability
// concerns (structured logging, Prometheus collectors); they are unrelated
// to the captured-event domain types in this package.
package telemetry
