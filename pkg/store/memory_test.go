package store

import (
	"errors"
	"testing"
	"time"

	"outpost-hq/warden/pkg/telemetry"
)

func TestMemoryStore_AppCRUD(t *testing.T) {
	s := NewMemoryStore()

	app := App{ID: "app-1", Name: "crawler", Status: StatusRegistered, RegisteredAt: "2026-08-01T10:00:00Z"}
	if err := s.SaveApp(app); err != nil {
		t.Fatalf("SaveApp failed: %v", err)
	}

	got, err := s.GetApp("app-1")
	if err != nil {
		t.Fatalf("GetApp failed: %v", err)
	}
	if got == nil || got.Name != "crawler" {
		t.Fatalf("GetApp returned %+v", got)
	}

	missing, err := s.GetApp("nope")
	if err != nil || missing != nil {
		t.Errorf("Expected (nil, nil) for missing app, got (%v, %v)", missing, err)
	}

	apps, err := s.ListApps()
	if err != nil || len(apps) != 1 {
		t.Fatalf("ListApps returned %d apps, err=%v", len(apps), err)
	}

	if err := s.DeleteApp("app-1"); err != nil {
		t.Fatalf("DeleteApp failed: %v", err)
	}
	if err := s.DeleteApp("app-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore_DeletePolicyClearsAppReference(t *testing.T) {
	s := NewMemoryStore()

	if err := s.SavePolicy(Policy{ID: "pol-1", Name: "default"}); err != nil {
		t.Fatalf("SavePolicy failed: %v", err)
	}
	if err := s.SaveApp(App{ID: "app-1", Name: "crawler", PolicyID: "pol-1"}); err != nil {
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

func TestMemoryStore_RuleModuleOrder(t *testing.T) {
	s := NewMemoryStore()

	for _, id := range []string{"m-1", "m-2", "m-3"} {
		if err := s.SaveRuleModule(RuleModule{ID: id, Module: "policy." + id}); err != nil {
			t.Fatalf("SaveRuleModule failed: %v", err)
		}
	}

	// Updating an existing module must not change its position.
	if err := s.SaveRuleModule(RuleModule{ID: "m-1", Module: "policy.m-1", Description: "updated"}); err != nil {
		t.Fatalf("SaveRuleModule update failed: %v", err)
	}

	modules, err := s.ListRuleModules()
	if err != nil {
		t.Fatalf("ListRuleModules failed: %v", err)
	}
	want := []string{"m-1", "m-2", "m-3"}
	for i, id := range want {
		if modules[i].ID != id {
			t.Errorf("Position %d: expected %s, got %s", i, id, modules[i].ID)
		}
	}

	if err := s.DeleteRuleModule("m-2"); err != nil {
		t.Fatalf("DeleteRuleModule failed: %v", err)
	}
	modules, _ = s.ListRuleModules()
	if len(modules) != 2 || modules[0].ID != "m-1" || modules[1].ID != "m-3" {
		t.Errorf("Unexpected order after delete: %+v", modules)
	}
}

func TestMemoryStore_EventListing(t *testing.T) {
	s := NewMemoryStore()

	err := s.SaveNetworkEvents([]telemetry.NetworkEvent{
		{ID: "n1", AppID: "app-1", Timestamp: "2026-08-01T10:00:00Z"},
		{ID: "n2", AppID: "app-2", Timestamp: "2026-08-01T10:00:01Z"},
		{ID: "n3", AppID: "app-1", Timestamp: "2026-08-01T10:00:02Z"},
	})
	if err != nil {
		t.Fatalf("SaveNetworkEvents failed: %v", err)
	}

	events, err := s.ListNetworkEvents("app-1", 0)
	if err != nil {
		t.Fatalf("ListNetworkEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events for app-1, got %d", len(events))
	}
	// Most recent first.
	if events[0].ID != "n3" || events[1].ID != "n1" {
		t.Errorf("Unexpected event order: %s, %s", events[0].ID, events[1].ID)
	}

	limited, _ := s.ListNetworkEvents("", 2)
	if len(limited) != 2 {
		t.Errorf("Expected limit of 2, got %d", len(limited))
	}
}

func TestMemoryStore_AuditSequenceTieBreak(t *testing.T) {
	s := NewMemoryStore()

	// Same timestamp for all three entries; seq must give a total order.
	ts := "2026-08-01T10:00:00Z"
	for _, id := range []string{"e1", "e2", "e3"} {
		if _, err := s.AppendAudit(AuditEntry{ID: id, AppID: "app-1", Timestamp: ts}); err != nil {
			t.Fatalf("AppendAudit failed: %v", err)
		}
	}

	entries, err := s.ListAudit("", 10, OrderAsc)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq <= entries[i-1].Seq {
			t.Errorf("Sequence numbers not strictly increasing: %d then %d",
				entries[i-1].Seq, entries[i].Seq)
		}
	}

	desc, _ := s.ListAudit("", 10, OrderDesc)
	if desc[0].ID != "e3" {
		t.Errorf("Expected newest entry first in desc order, got %s", desc[0].ID)
	}
}

func TestMemoryStore_AuditLimitKeepsNewest(t *testing.T) {
	s := NewMemoryStore()

	for i := 0; i < 5; i++ {
		ts := time.Date(2026, 8, 1, 10, 0, i, 0, time.UTC).Format(time.RFC3339)
		s.AppendAudit(AuditEntry{ID: string(rune('a' + i)), Timestamp: ts})
	}

	asc, _ := s.ListAudit("", 2, OrderAsc)
	if len(asc) != 2 || asc[0].ID != "d" || asc[1].ID != "e" {
		t.Errorf("Ascending limited query should keep newest entries, got %+v", asc)
	}
}

func TestMemoryStore_PruneAudit(t *testing.T) {
	s := NewMemoryStore()

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

	entries, _ := s.ListAudit("", 10, OrderAsc)
	if len(entries) != 1 || entries[0].ID != "new" {
		t.Errorf("Unexpected surviving entries: %+v", entries)
	}
}

func TestMemoryStore_PruneAuditMaxRecords(t *testing.T) {
	s := NewMemoryStore()

	for i := 0; i < 5; i++ {
		ts := time.Date(2026, 8, 1, 10, 0, i, 0, time.UTC).Format(time.RFC3339)
		s.AppendAudit(AuditEntry{ID: string(rune('a' + i)), Timestamp: ts})
	}

	removed, err := s.PruneAudit(time.Time{}, 2)
	if err != nil {
		t.Fatalf("PruneAudit failed: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 removed entries, got %d", removed)
	}

	entries, _ := s.ListAudit("", 10, OrderAsc)
	if len(entries) != 2 || entries[0].ID != "d" || entries[1].ID != "e" {
		t.Errorf("Expected newest 2 entries to survive, got %+v", entries)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	s := NewMemoryStore()
	s.Close()

	if err := s.SaveApp(App{ID: "x"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if _, err := s.ListApps(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
