package store

// AppStatus is the lifecycle status of a registered app.
type AppStatus string

const (
	// StatusRegistered means the app is known but has never been launched.
	StatusRegistered AppStatus = "registered"

	// StatusRunning means the sandbox runtime has been asked to run the app.
	StatusRunning AppStatus = "running"

	// StatusStopped means the app has been stopped.
	StatusStopped AppStatus = "stopped"
)

// App is a registered sandboxed application. An app references at most one
// policy at a time; an empty PolicyID is valid and means unassigned
// (evaluation falls back to default-deny for network and file-write events).
type App struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Language       string            `json:"language"`
	EntryPoint     string            `json:"entry_point"`
	Status         AppStatus         `json:"status"`
	PolicyID       string            `json:"policy_id,omitempty"`
	RegisteredAt   string            `json:"registered_at"`
	LastLaunchedAt string            `json:"last_launched_at,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Policy is a structured access-control policy. Blocked domains always take
// precedence over allowed domains; MaxSpend is a monotonically consumed
// ceiling (zero means no cap).
type Policy struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	AllowedDomains []string `json:"allowed_domains"`
	BlockedDomains []string `json:"blocked_domains"`
	MaxSpend       float64  `json:"max_spend"`
	AllowFileWrite bool     `json:"allow_file_write"`
	AllowNetAccess bool     `json:"allow_net_access"`
	CreatedAt      string   `json:"created_at"`
}

// RuleModule is a declarative Rego rule module supplementing structured
// policy fields. The source is authoritative; the compiled predicate is
// derived by the rules registry on load and never persisted.
type RuleModule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Module      string `json:"module"`
	Rego        string `json:"rego"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

// AuditEntry is one immutable record of a live decision or lifecycle event.
// Seq is a store-assigned monotonic sequence number that breaks timestamp
// ties, guaranteeing a total order.
type AuditEntry struct {
	ID        string `json:"id"`
	Seq       int64  `json:"seq"`
	AppID     string `json:"app_id"`
	AppName   string `json:"app_name"`
	EventType string `json:"event_type"`
	Direction string `json:"direction,omitempty"`
	Target    string `json:"target"`
	Details   string `json:"details"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// Order selects audit query ordering.
type Order string

const (
	// OrderAsc returns entries in chronological order.
	OrderAsc Order = "asc"

	// OrderDesc returns entries in reverse-chronological order.
	OrderDesc Order = "desc"
)
