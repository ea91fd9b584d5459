package telemetry

import "encoding/json"

// Kind identifies the kind of a captured behavioral event.
type Kind string

const (
	// KindSyscall is a captured system call.
	KindSyscall Kind = "syscall"

	// KindNetwork is a captured network operation.
	KindNetwork Kind = "network"

	// KindFile is a captured file operation.
	KindFile Kind = "file"
)

// Event is the common view over the three captured event kinds. Events are
// immutable once recorded; implementations carry value semantics.
type Event interface {
	// Kind returns the event kind.
	Kind() Kind

	// Owner returns the id of the app that produced the event.
	Owner() string

	// Occurred returns the capture timestamp (RFC3339 UTC).
	Occurred() string

	// Cost returns the monetary cost carried by the event, or zero.
	Cost() float64

	// Document returns the event as a generic document for rule module
	// evaluation. The "kind" key is always present.
	Document() map[string]any
}

// SyscallEvent is a captured system call performed by a sandboxed app.
type SyscallEvent struct {
	ID          string  `json:"id"`
	AppID       string  `json:"app_id"`
	Timestamp   string  `json:"timestamp"`
	PID         int     `json:"pid"`
	TID         int     `json:"tid,omitempty"`
	SyscallNum  int     `json:"syscall_num"`
	SyscallName string  `json:"syscall_name"`
	Args        string  `json:"args,omitempty"`
	ReturnValue int     `json:"return_value"`
	Comm        string  `json:"comm,omitempty"`
	Success     bool    `json:"success"`
	CostUSD     float64 `json:"cost,omitempty"`
}

func (e SyscallEvent) Kind() Kind               { return KindSyscall }
func (e SyscallEvent) Owner() string            { return e.AppID }
func (e SyscallEvent) Occurred() string         { return e.Timestamp }
func (e SyscallEvent) Cost() float64            { return e.CostUSD }
func (e SyscallEvent) Document() map[string]any { return toDocument(e, KindSyscall) }

// NetworkEvent is a captured network operation performed by a sandboxed app.
type NetworkEvent struct {
	ID        string  `json:"id"`
	AppID     string  `json:"app_id"`
	Timestamp string  `json:"timestamp"`
	Direction string  `json:"direction"`
	Protocol  string  `json:"protocol"`
	SrcIP     string  `json:"src_ip"`
	SrcPort   int     `json:"src_port"`
	DstIP     string  `json:"dst_ip"`
	DstPort   int     `json:"dst_port"`
	DNSQuery  string  `json:"dns_query,omitempty"`
	BytesSent int64   `json:"bytes_sent"`
	BytesRecv int64   `json:"bytes_recv"`
	CostUSD   float64 `json:"cost,omitempty"`
}

func (e NetworkEvent) Kind() Kind               { return KindNetwork }
func (e NetworkEvent) Owner() string            { return e.AppID }
func (e NetworkEvent) Occurred() string         { return e.Timestamp }
func (e NetworkEvent) Cost() float64            { return e.CostUSD }
func (e NetworkEvent) Document() map[string]any { return toDocument(e, KindNetwork) }

// Destination returns the logical destination of the event: the DNS query
// name when one was captured, otherwise the destination IP.
func (e NetworkEvent) Destination() string {
	if e.DNSQuery != "" {
		return e.DNSQuery
	}
	return e.DstIP
}

// FileEvent is a captured file operation performed by a sandboxed app.
type FileEvent struct {
	ID        string `json:"id"`
	AppID     string `json:"app_id"`
	Timestamp string `json:"timestamp"`
	PID       int    `json:"pid"`
	Path      string `json:"path"`
	Operation string `json:"operation"`
	Flags     string `json:"flags,omitempty"`
	Success   bool   `json:"success"`
	Comm      string `json:"comm,omitempty"`
}

func (e FileEvent) Kind() Kind               { return KindFile }
func (e FileEvent) Owner() string            { return e.AppID }
func (e FileEvent) Occurred() string         { return e.Timestamp }
func (e FileEvent) Cost() float64            { return 0 }
func (e FileEvent) Document() map[string]any { return toDocument(e, KindFile) }

// writeOperations classifies file operations that mutate the filesystem.
var writeOperations = map[string]bool{
	"write":    true,
	"create":   true,
	"truncate": true,
	"append":   true,
	"delete":   true,
	"unlink":   true,
	"rename":   true,
	"chmod":    true,
	"chown":    true,
	"mkdir":    true,
	"rmdir":    true,
	"symlink":  true,
}

// IsWrite reports whether the event is a file-write operation.
func (e FileEvent) IsWrite() bool {
	return writeOperations[e.Operation]
}

// Batch is a telemetry batch as emitted by the sandbox runtime. Events may
// omit their app_id, in which case the batch-level AppID applies.
type Batch struct {
	AppID         string         `json:"app_id"`
	Source        string         `json:"source"`
	BatchID       string         `json:"batch_id,omitempty"`
	SyscallEvents []SyscallEvent `json:"syscall_events,omitempty"`
	NetworkEvents []NetworkEvent `json:"network_events,omitempty"`
	FileEvents    []FileEvent    `json:"file_events,omitempty"`
}

// toDocument converts an event struct into a generic map through its JSON
// representation and tags it with the event kind.
func toDocument(v any, kind Kind) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{"kind": string(kind)}
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(data, &doc); err != nil {
		return map[string]any{"kind": string(kind)}
	}
	doc["kind"] = string(kind)
	return doc
}
