package telemetry

import (
	"reflect"
	"testing"
)

func sampleEvents() []Event {
	return []Event{
		SyscallEvent{ID: "s1", AppID: "app-1", Timestamp: "2026-08-01T10:00:00Z", SyscallName: "read"},
		SyscallEvent{ID: "s2", AppID: "app-1", Timestamp: "2026-08-01T10:00:01Z", SyscallName: "read"},
		SyscallEvent{ID: "s3", AppID: "app-1", Timestamp: "2026-08-01T10:00:02Z", SyscallName: "write"},
		SyscallEvent{ID: "s4", AppID: "app-2", Timestamp: "2026-08-01T10:00:03Z", SyscallName: "execve"},
		NetworkEvent{ID: "n1", AppID: "app-1", Timestamp: "2026-08-01T10:01:00Z", Direction: "outbound", Protocol: "tcp", DNSQuery: "api.example.com"},
		NetworkEvent{ID: "n2", AppID: "app-1", Timestamp: "2026-08-01T10:01:05Z", Direction: "outbound", Protocol: "tcp", DNSQuery: "api.example.com"},
		NetworkEvent{ID: "n3", AppID: "app-1", Timestamp: "2026-08-01T10:01:10Z", Direction: "inbound", Protocol: "udp", DstIP: "10.0.0.9"},
		FileEvent{ID: "f1", AppID: "app-1", Timestamp: "2026-08-01T10:02:00Z", Path: "/tmp/out.log", Operation: "write"},
		FileEvent{ID: "f2", AppID: "app-2", Timestamp: "2026-08-01T10:02:30Z", Path: "/etc/passwd", Operation: "read"},
	}
}

func TestSummarize_Totals(t *testing.T) {
	summary := Summarize(sampleEvents(), SummaryOptions{})

	if summary.TotalSyscalls != 4 {
		t.Errorf("Expected 4 syscalls, got %d", summary.TotalSyscalls)
	}
	if summary.TotalNetworkEvents != 3 {
		t.Errorf("Expected 3 network events, got %d", summary.TotalNetworkEvents)
	}
	if summary.TotalFileEvents != 2 {
		t.Errorf("Expected 2 file events, got %d", summary.TotalFileEvents)
	}
	if summary.TimeRange == nil {
		t.Fatal("Expected a time range")
	}
	if summary.TimeRange.Start != "2026-08-01T10:00:00Z" || summary.TimeRange.End != "2026-08-01T10:02:30Z" {
		t.Errorf("Unexpected time range: %+v", summary.TimeRange)
	}
}

func TestSummarize_AppFilter(t *testing.T) {
	summary := Summarize(sampleEvents(), SummaryOptions{AppID: "app-2"})

	if summary.TotalSyscalls != 1 {
		t.Errorf("Expected 1 syscall for app-2, got %d", summary.TotalSyscalls)
	}
	if summary.TotalNetworkEvents != 0 {
		t.Errorf("Expected 0 network events for app-2, got %d", summary.TotalNetworkEvents)
	}
	if summary.TotalFileEvents != 1 {
		t.Errorf("Expected 1 file event for app-2, got %d", summary.TotalFileEvents)
	}
}

func TestSummarize_RankingAndTieBreak(t *testing.T) {
	summary := Summarize(sampleEvents(), SummaryOptions{})

	wantSyscalls := []NameCount{
		{Name: "read", Count: 2},
		// execve and write both have count 1; lexicographic tie-break
		{Name: "execve", Count: 1},
		{Name: "write", Count: 1},
	}
	if !reflect.DeepEqual(summary.TopSyscalls, wantSyscalls) {
		t.Errorf("TopSyscalls = %+v, want %+v", summary.TopSyscalls, wantSyscalls)
	}

	wantDestinations := []NameCount{
		{Name: "api.example.com", Count: 2},
		{Name: "10.0.0.9", Count: 1},
	}
	if !reflect.DeepEqual(summary.TopDestinations, wantDestinations) {
		t.Errorf("TopDestinations = %+v, want %+v", summary.TopDestinations, wantDestinations)
	}
}

func TestSummarize_TopNLimit(t *testing.T) {
	summary := Summarize(sampleEvents(), SummaryOptions{TopN: 1})

	if len(summary.TopSyscalls) != 1 {
		t.Fatalf("Expected 1 top syscall, got %d", len(summary.TopSyscalls))
	}
	if summary.TopSyscalls[0].Name != "read" {
		t.Errorf("Expected read as top syscall, got %q", summary.TopSyscalls[0].Name)
	}
}

func TestSummarize_OrderIndependent(t *testing.T) {
	events := sampleEvents()
	forward := Summarize(events, SummaryOptions{})

	reversed := make([]Event, len(events))
	for i, e := range events {
		reversed[len(events)-1-i] = e
	}
	backward := Summarize(reversed, SummaryOptions{})

	if !reflect.DeepEqual(forward, backward) {
		t.Error("Summaries differ for reordered input")
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	events := sampleEvents()
	first := Summarize(events, SummaryOptions{})
	second := Summarize(events, SummaryOptions{})

	if !reflect.DeepEqual(first, second) {
		t.Error("Repeated Summarize calls produced different results")
	}
}

func TestSummarize_EmptyInput(t *testing.T) {
	summary := Summarize(nil, SummaryOptions{})

	if summary.TimeRange != nil {
		t.Error("Expected no time range for empty input")
	}
	// Ranked sections must be empty arrays, never nil, to keep JSON output
	// free of nulls.
	if summary.TopSyscalls == nil || summary.TopDestinations == nil || summary.TopFilePaths == nil {
		t.Error("Ranked sections must be non-nil for empty input")
	}
}

func TestNetworkEvent_Destination(t *testing.T) {
	withDNS := NetworkEvent{DNSQuery: "api.example.com", DstIP: "93.184.216.34"}
	if withDNS.Destination() != "api.example.com" {
		t.Errorf("Expected DNS query as destination, got %q", withDNS.Destination())
	}

	withoutDNS := NetworkEvent{DstIP: "93.184.216.34"}
	if withoutDNS.Destination() != "93.184.216.34" {
		t.Errorf("Expected destination IP, got %q", withoutDNS.Destination())
	}
}

func TestFileEvent_IsWrite(t *testing.T) {
	tests := []struct {
		operation string
		want      bool
	}{
		{"write", true},
		{"create", true},
		{"unlink", true},
		{"rename", true},
		{"read", false},
		{"open", false},
		{"stat", false},
	}

	for _, tt := range tests {
		ev := FileEvent{Operation: tt.operation}
		if got := ev.IsWrite(); got != tt.want {
			t.Errorf("IsWrite(%q) = %v, want %v", tt.operation, got, tt.want)
		}
	}
}

func TestEvent_Document(t *testing.T) {
	ev := NetworkEvent{ID: "n1", AppID: "app-1", Protocol: "tcp", DNSQuery: "api.example.com"}
	doc := ev.Document()

	if doc["kind"] != "network" {
		t.Errorf("Expected kind network, got %v", doc["kind"])
	}
	if doc["protocol"] != "tcp" {
		t.Errorf("Expected protocol tcp, got %v", doc["protocol"])
	}
	if doc["dns_query"] != "api.example.com" {
		t.Errorf("Expected dns_query, got %v", doc["dns_query"])
	}
}
