// Package rules compiles and evaluates Rego rule modules.
//
// The Registry keeps the loaded modules in insertion order and maintains a
// single compiler built over all of them. Every mutation (Load, Add,
// Remove) compiles into fresh structures and publishes them atomically, so
// a failed compile never disturbs the active set and an evaluation in
// flight never observes a half-applied change.
//
// Two evaluation paths exist: Evaluate runs an ad-hoc query (for example
// "data.sandbox.allow") against the whole set, while EvaluateEach produces
// one Verdict per module in insertion order for the decision engine.
package rules
