// Package store holds the logical data model: registered apps, structured
// policies, rule modules, captured telemetry events, and the append-only
// audit log.
//
// Two backends implement the Store interface:
//
//   - MemoryStore: maps behind a single RWMutex; used by tests and
//     ephemeral runs.
//   - SQLiteStore: durable single-file storage with WAL mode.
//
// The store contains no evaluation logic. Referential integrity is the one
// rule it owns: deleting a policy clears the policy reference of any app
// that held it, so an app is never left pointing at a deleted policy.
package store
