package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"outpost-hq/warden/pkg/rules"
	"outpost-hq/warden/pkg/store"
	"outpost-hq/warden/pkg/telemetry"
	"outpost-hq/warden/pkg/telemetry/metrics"
)

// writeSyscalls classifies syscalls with filesystem side effects. Syscalls
// outside this set carry no side-effect classification and default to
// allow even without a policy.
var writeSyscalls = map[string]bool{
	"write":     true,
	"writev":    true,
	"pwrite64":  true,
	"unlink":    true,
	"unlinkat":  true,
	"rename":    true,
	"renameat":  true,
	"truncate":  true,
	"ftruncate": true,
	"chmod":     true,
	"fchmod":    true,
	"chown":     true,
	"fchown":    true,
	"mkdir":     true,
	"mkdirat":   true,
	"rmdir":     true,
	"symlink":   true,
	"symlinkat": true,
}

// Engine evaluates captured events against an app's effective policy: the
// structured policy fields first, then the active rule modules. The
// evaluation order is fixed; reordering it would change which rule a
// decision is attributed to.
type Engine struct {
	registry *rules.Registry
	ledger   *Ledger
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewEngine creates a decision engine. The metrics collector may be nil.
func NewEngine(registry *rules.Registry, ledger *Ledger, m *metrics.Metrics) *Engine {
	return &Engine{
		registry: registry,
		ledger:   ledger,
		metrics:  m,
		logger:   slog.Default().With("component", "decision.engine"),
	}
}

// Ledger returns the engine's spend ledger.
func (e *Engine) Ledger() *Ledger {
	return e.ledger
}

// Decide evaluates one event against the app's policy and the active rule
// modules. A nil policy means the app has none assigned: network and
// file-write events then default to deny.
//
// The order is: blocked domains, network flag, file-write flag, spend cap,
// allowed domains, rule modules in insertion order (first explicit deny
// wins, else first explicit allow), then the default.
func (e *Engine) Decide(ctx context.Context, event telemetry.Event, app *store.App, policy *store.Policy) Decision {
	start := time.Now()
	d := e.decide(ctx, event, app, policy)

	if e.metrics != nil {
		e.metrics.RecordDecision(string(d.Action), d.Rule, time.Since(start).Seconds())
	}
	e.logger.Debug("decision",
		"app_id", event.Owner(),
		"kind", string(event.Kind()),
		"action", string(d.Action),
		"rule", d.Rule,
		"reason", d.Reason)
	return d
}

func (e *Engine) decide(ctx context.Context, event telemetry.Event, app *store.App, policy *store.Policy) Decision {
	destination := eventDestination(event)

	if policy != nil {
		if destination != "" && matchesAny(policy.BlockedDomains, destination) {
			return deny("blocked_domains", "blocked domain")
		}

		if event.Kind() == telemetry.KindNetwork && !policy.AllowNetAccess {
			return deny("allow_net_access", "network access disabled")
		}

		if isFileWrite(event) && !policy.AllowFileWrite {
			return deny("allow_file_write", "file write disabled")
		}

		if cost := event.Cost(); cost > 0 {
			if !e.ledger.CheckAndAdd(event.Owner(), cost, policy.MaxSpend) {
				return deny("max_spend", "spend cap exceeded")
			}
		}

		if destination != "" && len(policy.AllowedDomains) > 0 && !matchesAny(policy.AllowedDomains, destination) {
			return deny("allowed_domains", "domain not in allow-list")
		}
	}

	if d, decided := e.decideByModules(ctx, event, app, policy); decided {
		return d
	}

	if policy == nil {
		if event.Kind() == telemetry.KindNetwork || isFileWrite(event) {
			return deny("default", "no policy assigned")
		}
	}
	return allow("default", "default allow")
}

// decideByModules evaluates the active rule modules in insertion order.
// The first explicit deny wins; otherwise the first explicit allow. An
// evaluation fault counts as an implicit deny for this event, with the
// fault recorded in the reason.
func (e *Engine) decideByModules(ctx context.Context, event telemetry.Event, app *store.App, policy *store.Policy) (Decision, bool) {
	if e.registry == nil || e.registry.Count() == 0 {
		return Decision{}, false
	}

	input := ruleInput(event, app, policy)

	var allowed *rules.Verdict
	for _, verdict := range e.registry.EvaluateEach(ctx, input) {
		if verdict.Err != nil {
			return deny(verdict.ID, fmt.Sprintf("rule evaluation fault: %v", verdict.Err)), true
		}
		switch verdict.Outcome {
		case rules.OutcomeDeny:
			return deny(verdict.ID, fmt.Sprintf("denied by rule module %s", verdict.Name)), true
		case rules.OutcomeAllow:
			if allowed == nil {
				v := verdict
				allowed = &v
			}
		}
	}
	if allowed != nil {
		return allow(allowed.ID, fmt.Sprintf("allowed by rule module %s", allowed.Name)), true
	}
	return Decision{}, false
}

// ruleInput builds the document a rule module evaluates: the event fields
// plus app and policy context.
func ruleInput(event telemetry.Event, app *store.App, policy *store.Policy) map[string]any {
	input := event.Document()
	if app != nil {
		input["app"] = map[string]any{
			"id":     app.ID,
			"name":   app.Name,
			"status": string(app.Status),
		}
	}
	if policy != nil {
		input["policy"] = map[string]any{
			"id":               policy.ID,
			"name":             policy.Name,
			"allow_net_access": policy.AllowNetAccess,
			"allow_file_write": policy.AllowFileWrite,
			"max_spend":        policy.MaxSpend,
		}
	}
	return input
}

// eventDestination returns the destination domain of a network event, or
// empty for other kinds.
func eventDestination(event telemetry.Event) string {
	if ne, ok := event.(telemetry.NetworkEvent); ok {
		return ne.Destination()
	}
	return ""
}

// isFileWrite reports whether the event mutates the filesystem: a file
// event with a write operation, or a syscall classified as a write.
func isFileWrite(event telemetry.Event) bool {
	switch ev := event.(type) {
	case telemetry.FileEvent:
		return ev.IsWrite()
	case telemetry.SyscallEvent:
		return writeSyscalls[ev.SyscallName]
	default:
		return false
	}
}

// matchesAny reports whether the domain matches any pattern in the set.
func matchesAny(patterns []string, domain string) bool {
	for _, pattern := range patterns {
		if matchDomain(pattern, domain) {
			return true
		}
	}
	return false
}

// matchDomain matches a domain against a pattern: exact string match, or a
// single-level wildcard prefix. "*.example.com" matches "api.example.com"
// but not "example.com" or "a.b.example.com".
func matchDomain(pattern, domain string) bool {
	if pattern == domain {
		return true
	}
	if !strings.HasPrefix(pattern, "*.") {
		return false
	}
	suffix := pattern[1:] // ".example.com"
	if !strings.HasSuffix(domain, suffix) {
		return false
	}
	label := strings.TrimSuffix(domain, suffix)
	return label != "" && !strings.Contains(label, ".")
}
