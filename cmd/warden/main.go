// Warden is a policy decision and telemetry aggregation engine for
// sandboxed third-party applications.
//
// It registers apps, attaches access-control policies, ingests behavioral
// telemetry (syscalls, network calls, file operations), evaluates events
// against structured policies and Rego rule modules, and records every
// live decision in an append-only audit trail. Candidate rule modules can
// be validated and simulated against recorded event batches before
// activation.
//
// Usage:
//
//	# Start the API server with default configuration
//	warden serve
//
//	# Start with a custom configuration file
//	warden serve --config /etc/warden/config.yaml
//
//	# Validate a Rego rule module file
//	warden validate --file rules/noexec.rego
//
//	# Show version information
//	warden version
package main

func main() {
	Execute()
}
