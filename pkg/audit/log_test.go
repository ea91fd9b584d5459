package audit

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"outpost-hq/warden/pkg/config"
	"outpost-hq/warden/pkg/decision"
	"outpost-hq/warden/pkg/store"
	"outpost-hq/warden/pkg/telemetry"
)

func testAuditConfig() config.AuditConfig {
	return config.AuditConfig{
		QueueSize:        16,
		RetryInterval:    5 * time.Millisecond,
		MaxRetryInterval: 20 * time.Millisecond,
	}
}

func TestLog_AppendAndQuery(t *testing.T) {
	s := store.NewMemoryStore()
	l := NewLog(s, testAuditConfig(), nil)

	for i := 0; i < 3; i++ {
		err := l.Append(store.AuditEntry{
			ID: string(rune('a' + i)), AppID: "app-1",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	l.Close()

	entries, err := l.Query("app-1", 10, store.OrderAsc)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Seq <= entries[i-1].Seq {
			t.Errorf("Sequence not strictly increasing: %d then %d",
				entries[i-1].Seq, entries[i].Seq)
		}
	}
}

func TestLog_AppendAfterClose(t *testing.T) {
	s := store.NewMemoryStore()
	l := NewLog(s, testAuditConfig(), nil)
	l.Close()

	if err := l.Append(store.AuditEntry{ID: "x"}); err == nil {
		t.Fatal("Expected error appending to closed log")
	}
}

// flakyStore fails the first AppendAudit calls to exercise the retry path.
type flakyStore struct {
	*store.MemoryStore
	mu       sync.Mutex
	failures int
}

func (f *flakyStore) AppendAudit(entry store.AuditEntry) (store.AuditEntry, error) {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return store.AuditEntry{}, &store.StorageError{Backend: "flaky", Op: "append audit", Cause: errTemporary}
	}
	f.mu.Unlock()
	return f.MemoryStore.AppendAudit(entry)
}

var errTemporary = errors.New("disk unavailable")

func TestLog_RetriesUntilWritten(t *testing.T) {
	f := &flakyStore{MemoryStore: store.NewMemoryStore(), failures: 3}
	l := NewLog(f, testAuditConfig(), nil)

	if err := l.Append(store.AuditEntry{ID: "e1", AppID: "app-1",
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	l.Close()

	entries, err := f.ListAudit("", 10, store.OrderAsc)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "e1" {
		t.Errorf("Entry lost despite retries: %+v", entries)
	}
}

// stalledStore blocks every AppendAudit until released, backing the queue
// up behind a slow writer.
type stalledStore struct {
	*store.MemoryStore
	release chan struct{}
}

func (s *stalledStore) AppendAudit(entry store.AuditEntry) (store.AuditEntry, error) {
	<-s.release
	return s.MemoryStore.AppendAudit(entry)
}

func TestLog_CloseWithBlockedAppend(t *testing.T) {
	s := &stalledStore{MemoryStore: store.NewMemoryStore(), release: make(chan struct{})}
	cfg := testAuditConfig()
	cfg.QueueSize = 1
	l := NewLog(s, cfg, nil)

	ts := time.Now().UTC().Format(time.RFC3339Nano)

	// First entry is picked up by the writer and stalls in the store; the
	// second fills the queue buffer.
	if err := l.Append(store.AuditEntry{ID: "e1", AppID: "app-1", Timestamp: ts}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := l.Append(store.AuditEntry{ID: "e2", AppID: "app-1", Timestamp: ts}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Third append blocks on the full queue.
	appendDone := make(chan error, 1)
	go func() {
		appendDone <- l.Append(store.AuditEntry{ID: "e3", AppID: "app-1", Timestamp: ts})
	}()

	// Let the producer reach the blocking send before shutdown begins.
	time.Sleep(20 * time.Millisecond)

	// Close while a producer is still blocked in Append must not panic and
	// must not lose the entry.
	closeDone := make(chan struct{})
	go func() {
		l.Close()
		close(closeDone)
	}()

	time.Sleep(20 * time.Millisecond)
	close(s.release)

	select {
	case err := <-appendDone:
		if err != nil {
			t.Fatalf("Blocked Append failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Blocked Append never returned")
	}
	select {
	case <-closeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Close never returned")
	}

	entries, err := s.ListAudit("app-1", 10, store.OrderAsc)
	if err != nil {
		t.Fatalf("ListAudit failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Expected all 3 entries written through shutdown, got %d", len(entries))
	}
}

func TestNewEntry(t *testing.T) {
	app := &store.App{ID: "app-1", Name: "crawler"}
	d := decision.Decision{Action: decision.ActionDeny, Rule: "blocked_domains", Reason: "blocked domain"}
	ev := telemetry.NetworkEvent{
		ID: "n1", AppID: "app-1", Direction: "outbound", DNSQuery: "evil.com",
	}

	entry := NewEntry(d, ev, app)
	if entry.AppID != "app-1" || entry.AppName != "crawler" {
		t.Errorf("App fields not denormalized: %+v", entry)
	}
	if entry.EventType != "network" || entry.Target != "evil.com" || entry.Direction != "outbound" {
		t.Errorf("Event fields wrong: %+v", entry)
	}
	if entry.Action != "deny" || !strings.Contains(entry.Details, "blocked domain") {
		t.Errorf("Decision fields wrong: %+v", entry)
	}
	if entry.ID == "" || entry.Timestamp == "" {
		t.Errorf("Missing id or timestamp: %+v", entry)
	}
}

func TestEventTarget(t *testing.T) {
	file := telemetry.FileEvent{Path: "/etc/passwd", Operation: "read"}
	if got := eventTarget(file); got != "/etc/passwd" {
		t.Errorf("Expected file path target, got %q", got)
	}
	sys := telemetry.SyscallEvent{SyscallName: "execve"}
	if got := eventTarget(sys); got != "execve" {
		t.Errorf("Expected syscall name target, got %q", got)
	}
}
