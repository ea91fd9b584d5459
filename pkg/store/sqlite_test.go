package store

import (
	"path/filepath"
	"testing"
	"time"

	"outpost-hq/warden/pkg/telemetry"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "warden_test.db")
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("Failed to create sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_AppRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	app := App{
		ID:           "app-1",
		Name:         "crawler",
		Description:  "test app",
		Language:     "python",
		EntryPoint:   "main.py",
		Status:       StatusRegistered,
		RegisteredAt: "2026-08-01T10:00:00Z",
		Metadata:     map[string]string{"team": "infra"},
	}
	if err := s.SaveApp(app); err != nil {
		t.Fatalf("SaveApp failed: %v", err)
	}

	got, err := s.GetApp("app-1")
	if err != nil {
		t.Fatalf("GetApp failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetApp returned nil")
	}
	if got.Name != app.Name || got.Status != app.Status || got.Metadata["team"] != "infra" {
		t.Errorf("Round trip mismatch: %+v", got)
	}

	// Update through upsert.
	app.Status = StatusRunning
	if err := s.SaveApp(app); err != nil {
		t.Fatalf("SaveApp update failed: %v", err)
	}
	got, _ = s.GetApp("app-1")
	if got.Status != StatusRunning {
		t.Errorf("Expected updated status, got %s", got.Status)
	}
}

func TestSQLiteStore_DeletePolicyClearsAppReference(t *testing.T) {
	s := newTestSQLiteStore(t)

	if err := s.SavePolicy(Policy{
		ID: "pol-1", Name: "default",
		AllowedDomains: []string{"*.example.com"},
		BlockedDomains: []string{},
		CreatedAt:      "2026-08-01T10:00:00Z",
	}); err != nil {
		t.Fatalf("SavePolicy failed: %v", err)
	}
	if err := s.SaveApp(App{ID: "app-1", Name: "crawler", PolicyID: "pol-1", Status: StatusRegistered}); err != nil {
		t.Fatalf("SaveApp failed: %v", err)
	}

	if err := s.DeletePolicy("pol-1"); err != nil {
		t.Fatalf("DeletePolicy failed: %v", err)
	}

	app, err := s.GetApp("app-1")
	if err != nil {
		t.Fatalf("GetApp failed: %v", err)
	}
	if app.PolicyID != "" {
		t.Errorf("Expected cleared policy reference, got %q", app.PolicyID)
	}
}

func TestSQLiteStore_PolicyDomainsRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	policy := Policy{
		ID:             "pol-1",
		Name:           "restricted",
		AllowedDomains: []string{"*.example.com", "api.internal"},
		BlockedDomains: []string{"evil.com"},
		MaxSpend:       5.0,
		AllowNetAccess: true,
		CreatedAt:      "2026-08-01T10:00:00Z",
	}
	if err := s.SavePolicy(policy); err != nil {
		t.Fatalf("SavePolicy failed: %v", err)
	}

	got, err := s.GetPolicy("pol-1")
	if err != nil || got == nil {
		t.Fatalf("GetPolicy failed: got=%v err=%v", got, err)
	}
	if len(got.AllowedDomains) != 2 || got.AllowedDomains[0] != "*.example.com" {
		t.Errorf("Allowed domains mismatch: %v", got.AllowedDomains)
	}
	if len(got.BlockedDomains) != 1 || got.BlockedDomains[0] != "evil.com" {
		t.Errorf("Blocked domains mismatch: %v", got.BlockedDomains)
	}
	if got.MaxSpend != 5.0 || !got.AllowNetAccess || got.AllowFileWrite {
		t.Errorf("Flags mismatch: %+v", got)
	}
}

func TestSQLiteStore_RuleModuleOrder(t *testing.T) {
	s := newTestSQLiteStore(t)

	for _, id := range []string{"m-1", "m-2", "m-3"} {
		if err := s.SaveRuleModule(RuleModule{
			ID: id, Name: id, Module: "policy." + id,
			Rego: "package policy." + id, CreatedAt: "2026-08-01T10:00:00Z",
		}); err != nil {
			t.Fatalf("SaveRuleModule failed: %v", err)
		}
	}

	// Update must keep position.
	if err := s.SaveRuleModule(RuleModule{
		ID: "m-1", Name: "m-1", Module: "policy.m-1",
		Rego: "package policy.m1v2", CreatedAt: "2026-08-01T10:00:00Z",
		UpdatedAt: "2026-08-02T10:00:00Z",
	}); err != nil {
		t.Fatalf("SaveRuleModule update failed: %v", err)
	}

	modules, err := s.ListRuleModules()
	if err != nil {
		t.Fatalf("ListRuleModules failed: %v", err)
	}
	if len(modules) != 3 {
		t.Fatalf("Expected 3 modules, got %d", len(modules))
	}
	if modules[0].ID != "m-1" || modules[1].ID != "m-2" || modules[2].ID != "m-3" {
		t.Errorf("Unexpected order: %s, %s, %s", modules[0].ID, modules[1].ID, modules[2].ID)
	}
	if modules[0].Rego != "package policy.m1v2" {
		t.Errorf("Update not applied: %q", modules[0].Rego)
	}
}

func TestSQLiteStore_EventsAndAudit(t *testing.T) {
	s := newTestSQLiteStore(t)

	err := s.SaveSyscallEvents([]telemetry.SyscallEvent{
		{ID: "s1", AppID: "app-1", Timestamp: "2026-08-01T10:00:00Z", SyscallName: "read"},
		{ID: "s2", AppID: "app-1", Timestamp: "2026-08-01T10:00:01Z", SyscallName: "execve"},
	})
	if err != nil {
		t.Fatalf("SaveSyscallEvents failed: %v", err)
	}

	events, err := s.ListSyscallEvents("app-1", 10)
	if err != nil {
		t.Fatalf("ListSyscallEvents failed: %v", err)
	}
	if len(events) != 2 || events[0].ID != "s2" {
		t.Errorf("Expected newest-first syscall events, got %+v", events)
	}

	ts := "2026-08-01T10:00:00Z"
	first, err := s.AppendAudit(AuditEntry{ID: "e1", AppID: "app-1", Timestamp: ts})
	if err != nil {
		t.Fatalf("AppendAudit failed: %v", err)
	}
	second, _ := s.AppendAudit(AuditEntry{ID: "e2", AppID: "app-1", Timestamp: ts})
	if second.Seq <= first.Seq {
		t.Errorf("Sequence numbers not increasing: %d then %d", first.Seq, second.Seq)
	}

	entries, err := s.ListAudit("app-1", 10, OrderAsc)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "e1" || entries[1].ID != "e2" {
		t.Errorf("Unexpected audit order: %+v", entries)
	}
}

func TestSQLiteStore_PruneAudit(t *testing.T) {
	s := newTestSQLiteStore(t)

	old := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	s.AppendAudit(AuditEntry{ID: "old", Timestamp: old.Format(time.RFC3339)})
	s.AppendAudit(AuditEntry{ID: "new", Timestamp: recent.Format(time.RFC3339)})

	removed, err := s.PruneAudit(time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), 0)
	if err != nil {
		t.Fatalf("PruneAudit failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed entry, got %d", removed)
	}
}

func TestSQLiteStore_PruneAuditBoundarySecond(t *testing.T) {
	s := newTestSQLiteStore(t)

	cutoff := time.Date(2026, 8, 1, 10, 0, 5, 0, time.UTC)
	before := cutoff.Add(-500 * time.Millisecond)
	after := cutoff.Add(123 * time.Millisecond)
	s.AppendAudit(AuditEntry{ID: "before", Timestamp: before.Format(time.RFC3339Nano)})
	s.AppendAudit(AuditEntry{ID: "after", Timestamp: after.Format(time.RFC3339Nano)})

	removed, err := s.PruneAudit(cutoff, 0)
	if err != nil {
		t.Fatalf("PruneAudit failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 removed entry, got %d", removed)
	}

	entries, _ := s.ListAudit("", 10, OrderAsc)
	if len(entries) != 1 || entries[0].ID != "after" {
		t.Errorf("Entry within the cutoff second was pruned: %+v", entries)
	}
}
