package store

import (
	"time"

	"outpost-hq/warden/pkg/telemetry"
)

// Store is the logical data model behind the decision engine: apps,
// policies, rule modules, captured telemetry events, and the audit log.
//
// All mutations are synchronous and atomic with respect to readers: no
// reader observes a partially updated record. Lookups that find nothing
// return (nil, nil) for single records; list operations return empty
// slices, never nil.
//
// Referential integrity: DeletePolicy clears the PolicyID of any app
// referencing the deleted policy rather than failing or leaving a dangling
// reference.
type Store interface {
	// Apps.
	SaveApp(app App) error
	GetApp(id string) (*App, error)
	ListApps() ([]App, error)
	DeleteApp(id string) error

	// Policies.
	SavePolicy(policy Policy) error
	GetPolicy(id string) (*Policy, error)
	ListPolicies() ([]Policy, error)
	DeletePolicy(id string) error

	// Rule modules.
	SaveRuleModule(module RuleModule) error
	GetRuleModule(id string) (*RuleModule, error)
	ListRuleModules() ([]RuleModule, error)
	DeleteRuleModule(id string) error

	// Telemetry events. Events are immutable once saved; list operations
	// return the most recent events first, truncated to limit (<=0 means
	// a default cap of 100), optionally filtered by app.
	SaveSyscallEvents(events []telemetry.SyscallEvent) error
	SaveNetworkEvents(events []telemetry.NetworkEvent) error
	SaveFileEvents(events []telemetry.FileEvent) error
	ListSyscallEvents(appID string, limit int) ([]telemetry.SyscallEvent, error)
	ListNetworkEvents(appID string, limit int) ([]telemetry.NetworkEvent, error)
	ListFileEvents(appID string, limit int) ([]telemetry.FileEvent, error)

	// Audit log. AppendAudit assigns the entry's Seq; entries are immutable
	// once written. ListAudit orders by (timestamp, seq).
	AppendAudit(entry AuditEntry) (AuditEntry, error)
	ListAudit(appID string, limit int, order Order) ([]AuditEntry, error)

	// PruneAudit removes audit entries older than cutoff and, if maxRecords
	// is positive, trims the log to the newest maxRecords entries. A zero
	// cutoff skips the age criterion. Returns the number of removed entries.
	PruneAudit(cutoff time.Time, maxRecords int) (int, error)

	Close() error
}

// DefaultEventLimit caps event list results when the caller does not give a
// limit.
const DefaultEventLimit = 100

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultEventLimit
	}
	return limit
}
