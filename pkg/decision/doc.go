// Package decision evaluates captured telemetry events against an app's
// effective policy and produces allow/deny decisions.
//
// The evaluation order is fixed: blocked domains, the network access flag,
// the file-write flag, the spend cap, the domain allow-list, then the
// active rule modules in insertion order, then the default. Deny overrides
// allow, and structured policy fields are checked before rule modules so
// every decision is attributable to one named rule.
//
// Spend accounting goes through the Ledger, whose increment-and-check is
// atomic per app. Engines built for simulation take their own ledger so
// replays never charge live totals.
package decision
