package decision

import (
	"context"
	"testing"

	"outpost-hq/warden/pkg/rules"
	"outpost-hq/warden/pkg/store"
	"outpost-hq/warden/pkg/telemetry"
)

func newTestEngine(t *testing.T, modules ...store.RuleModule) *Engine {
	t.Helper()
	registry := rules.NewRegistry()
	if len(modules) > 0 {
		if err := registry.Load(modules); err != nil {
			t.Fatalf("Failed to load rule modules: %v", err)
		}
	}
	return NewEngine(registry, NewLedger(), nil)
}

func netEvent(dest string) telemetry.NetworkEvent {
	return telemetry.NetworkEvent{
		ID: "n1", AppID: "app-1", Timestamp: "2026-08-01T10:00:00Z",
		Direction: "outbound", Protocol: "tcp", DNSQuery: dest, DstPort: 443,
	}
}

func TestDecide_BlockedDomainOverridesAllow(t *testing.T) {
	e := newTestEngine(t)
	app := &store.App{ID: "app-1", Name: "crawler"}
	policy := &store.Policy{
		ID:             "pol-1",
		AllowNetAccess: true,
		AllowedDomains: []string{"evil.com"},
		BlockedDomains: []string{"evil.com"},
	}

	d := e.Decide(context.Background(), netEvent("evil.com"), app, policy)
	if d.Action != ActionDeny || d.Reason != "blocked domain" || d.Rule != "blocked_domains" {
		t.Errorf("Expected blocked-domain deny, got %+v", d)
	}
}

func TestDecide_BlockedDomainWildcard(t *testing.T) {
	e := newTestEngine(t)
	policy := &store.Policy{ID: "pol-1", AllowNetAccess: true, BlockedDomains: []string{"*.tracker.io"}}

	d := e.Decide(context.Background(), netEvent("ads.tracker.io"), nil, policy)
	if d.Action != ActionDeny || d.Reason != "blocked domain" {
		t.Errorf("Expected wildcard block, got %+v", d)
	}

	// The bare apex does not match a wildcard pattern.
	d = e.Decide(context.Background(), netEvent("tracker.io"), nil, policy)
	if d.Action != ActionAllow {
		t.Errorf("Apex domain should not match wildcard, got %+v", d)
	}
}

func TestDecide_NetworkAccessDisabled(t *testing.T) {
	e := newTestEngine(t)
	policy := &store.Policy{ID: "pol-1", AllowNetAccess: false}

	d := e.Decide(context.Background(), netEvent("api.example.com"), nil, policy)
	if d.Action != ActionDeny || d.Reason != "network access disabled" || d.Rule != "allow_net_access" {
		t.Errorf("Expected network-disabled deny, got %+v", d)
	}
}

func TestDecide_FileWriteDisabled(t *testing.T) {
	e := newTestEngine(t)
	policy := &store.Policy{ID: "pol-1", AllowFileWrite: false}

	write := telemetry.FileEvent{ID: "f1", AppID: "app-1", Path: "/tmp/out", Operation: "write"}
	d := e.Decide(context.Background(), write, nil, policy)
	if d.Action != ActionDeny || d.Reason != "file write disabled" {
		t.Errorf("Expected file-write deny, got %+v", d)
	}

	read := telemetry.FileEvent{ID: "f2", AppID: "app-1", Path: "/etc/hosts", Operation: "read"}
	d = e.Decide(context.Background(), read, nil, policy)
	if d.Action != ActionAllow {
		t.Errorf("Read should pass the file-write check, got %+v", d)
	}
}

func TestDecide_WriteSyscallClassification(t *testing.T) {
	e := newTestEngine(t)
	policy := &store.Policy{ID: "pol-1", AllowFileWrite: false}

	unlink := telemetry.SyscallEvent{ID: "s1", AppID: "app-1", SyscallName: "unlink"}
	d := e.Decide(context.Background(), unlink, nil, policy)
	if d.Action != ActionDeny || d.Reason != "file write disabled" {
		t.Errorf("Expected deny for write-classified syscall, got %+v", d)
	}

	gettime := telemetry.SyscallEvent{ID: "s2", AppID: "app-1", SyscallName: "clock_gettime"}
	d = e.Decide(context.Background(), gettime, nil, policy)
	if d.Action != ActionAllow {
		t.Errorf("Unclassified syscall should be allowed, got %+v", d)
	}
}

func TestDecide_SpendCap(t *testing.T) {
	e := newTestEngine(t)
	policy := &store.Policy{ID: "pol-1", AllowNetAccess: true, MaxSpend: 5.00}

	first := netEvent("api.example.com")
	first.CostUSD = 3.00
	d := e.Decide(context.Background(), first, nil, policy)
	if d.Action != ActionAllow {
		t.Fatalf("First costed event should be allowed, got %+v", d)
	}
	if got := e.Ledger().Total("app-1"); got != 3.00 {
		t.Errorf("Expected running total 3.00, got %v", got)
	}

	second := netEvent("api.example.com")
	second.CostUSD = 3.00
	d = e.Decide(context.Background(), second, nil, policy)
	if d.Action != ActionDeny || d.Reason != "spend cap exceeded" || d.Rule != "max_spend" {
		t.Errorf("Second costed event should exceed cap, got %+v", d)
	}
	if got := e.Ledger().Total("app-1"); got != 3.00 {
		t.Errorf("Denied charge must not change the total, got %v", got)
	}
}

func TestDecide_SpendCapZeroMeansNoLimit(t *testing.T) {
	e := newTestEngine(t)
	policy := &store.Policy{ID: "pol-1", AllowNetAccess: true, MaxSpend: 0}

	ev := netEvent("api.example.com")
	ev.CostUSD = 100.00
	if d := e.Decide(context.Background(), ev, nil, policy); d.Action != ActionAllow {
		t.Errorf("Zero cap should mean no limit, got %+v", d)
	}
}

func TestDecide_AllowList(t *testing.T) {
	e := newTestEngine(t)
	policy := &store.Policy{
		ID:             "pol-1",
		AllowNetAccess: true,
		AllowedDomains: []string{"*.example.com"},
	}

	d := e.Decide(context.Background(), netEvent("api.example.com"), nil, policy)
	if d.Action != ActionAllow {
		t.Errorf("Expected allow for api.example.com, got %+v", d)
	}

	d = e.Decide(context.Background(), netEvent("api.other.com"), nil, policy)
	if d.Action != ActionDeny || d.Reason != "domain not in allow-list" || d.Rule != "allowed_domains" {
		t.Errorf("Expected allow-list deny for api.other.com, got %+v", d)
	}
}

func TestDecide_RuleModuleDeny(t *testing.T) {
	e := newTestEngine(t, store.RuleModule{
		ID: "mod-noexec", Name: "noexec", Module: "policy.noexec",
		Rego: "package policy.noexec\n\ndeny if input.syscall_name == \"execve\"\n",
	})
	app := &store.App{ID: "app-1", Name: "crawler"}
	policy := &store.Policy{ID: "pol-1", AllowNetAccess: true, AllowFileWrite: true}

	ev := telemetry.SyscallEvent{ID: "s1", AppID: "app-1", SyscallName: "execve"}
	d := e.Decide(context.Background(), ev, app, policy)
	if d.Action != ActionDeny || d.Rule != "mod-noexec" {
		t.Errorf("Expected module deny attributed to mod-noexec, got %+v", d)
	}
}

func TestDecide_RuleModuleDenyWinsOverAllow(t *testing.T) {
	e := newTestEngine(t,
		store.RuleModule{
			ID: "mod-permit", Name: "permit", Module: "policy.permit",
			Rego: "package policy.permit\n\nallow if input.kind == \"syscall\"\n",
		},
		store.RuleModule{
			ID: "mod-noexec", Name: "noexec", Module: "policy.noexec",
			Rego: "package policy.noexec\n\ndeny if input.syscall_name == \"execve\"\n",
		},
	)
	policy := &store.Policy{ID: "pol-1", AllowNetAccess: true, AllowFileWrite: true}

	ev := telemetry.SyscallEvent{ID: "s1", AppID: "app-1", SyscallName: "execve"}
	d := e.Decide(context.Background(), ev, nil, policy)
	if d.Action != ActionDeny || d.Rule != "mod-noexec" {
		t.Errorf("Explicit deny must win over an earlier allow, got %+v", d)
	}
}

func TestDecide_RuleModuleFirstAllow(t *testing.T) {
	e := newTestEngine(t,
		store.RuleModule{
			ID: "mod-a", Name: "a", Module: "policy.a",
			Rego: "package policy.a\n\nallow if input.syscall_name == \"read\"\n",
		},
		store.RuleModule{
			ID: "mod-b", Name: "b", Module: "policy.b",
			Rego: "package policy.b\n\nallow if input.kind == \"syscall\"\n",
		},
	)
	policy := &store.Policy{ID: "pol-1"}

	ev := telemetry.SyscallEvent{ID: "s1", AppID: "app-1", SyscallName: "read"}
	d := e.Decide(context.Background(), ev, nil, policy)
	if d.Action != ActionAllow || d.Rule != "mod-a" {
		t.Errorf("First explicit allow should win, got %+v", d)
	}
}

func TestDecide_NoPolicyDefaults(t *testing.T) {
	e := newTestEngine(t)

	d := e.Decide(context.Background(), netEvent("api.example.com"), nil, nil)
	if d.Action != ActionDeny || d.Reason != "no policy assigned" {
		t.Errorf("Network without policy must deny, got %+v", d)
	}

	write := telemetry.FileEvent{ID: "f1", AppID: "app-1", Path: "/tmp/x", Operation: "write"}
	d = e.Decide(context.Background(), write, nil, nil)
	if d.Action != ActionDeny {
		t.Errorf("File write without policy must deny, got %+v", d)
	}

	read := telemetry.SyscallEvent{ID: "s1", AppID: "app-1", SyscallName: "read"}
	d = e.Decide(context.Background(), read, nil, nil)
	if d.Action != ActionAllow {
		t.Errorf("Unclassified syscall without policy should allow, got %+v", d)
	}
}

func TestDecide_DefaultAllowWithPolicy(t *testing.T) {
	e := newTestEngine(t)
	policy := &store.Policy{ID: "pol-1", AllowNetAccess: true, AllowFileWrite: true}

	d := e.Decide(context.Background(), netEvent("api.example.com"), nil, policy)
	if d.Action != ActionAllow || d.Rule != "default" {
		t.Errorf("Expected default allow, got %+v", d)
	}
}

func TestMatchDomain(t *testing.T) {
	tests := []struct {
		pattern string
		domain  string
		want    bool
	}{
		{"example.com", "example.com", true},
		{"example.com", "api.example.com", false},
		{"*.example.com", "api.example.com", true},
		{"*.example.com", "example.com", false},
		{"*.example.com", "a.b.example.com", false},
		{"*.example.com", "api.other.com", false},
		{"*.example.com", ".example.com", false},
	}
	for _, tt := range tests {
		if got := matchDomain(tt.pattern, tt.domain); got != tt.want {
			t.Errorf("matchDomain(%q, %q) = %v, want %v", tt.pattern, tt.domain, got, tt.want)
		}
	}
}
