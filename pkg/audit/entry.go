package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"outpost-hq/warden/pkg/decision"
	"outpost-hq/warden/pkg/store"
	"outpost-hq/warden/pkg/telemetry"
)

// NewEntry builds an audit entry from a live decision. The app name is
// denormalized into the entry so the trail stays readable after the app is
// deleted. The app may be nil when a decision was made for an unknown app.
func NewEntry(d decision.Decision, event telemetry.Event, app *store.App) store.AuditEntry {
	entry := store.AuditEntry{
		ID:        uuid.New().String(),
		AppID:     event.Owner(),
		EventType: string(event.Kind()),
		Target:    eventTarget(event),
		Details:   fmt.Sprintf("%s (rule: %s)", d.Reason, d.Rule),
		Action:    string(d.Action),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if app != nil {
		entry.AppName = app.Name
	}
	if ne, ok := event.(telemetry.NetworkEvent); ok {
		entry.Direction = ne.Direction
	}
	return entry
}

// NewLifecycleEntry builds an audit entry for an app lifecycle or policy
// mutation (launch, stop, policy assignment) rather than a decision.
func NewLifecycleEntry(app *store.App, eventType, target, details string) store.AuditEntry {
	entry := store.AuditEntry{
		ID:        uuid.New().String(),
		EventType: eventType,
		Target:    target,
		Details:   details,
		Action:    string(decision.ActionAllow),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if app != nil {
		entry.AppID = app.ID
		entry.AppName = app.Name
	}
	return entry
}

// eventTarget picks the entry target: destination domain for network
// events, path for file events, syscall name for syscalls.
func eventTarget(event telemetry.Event) string {
	switch ev := event.(type) {
	case telemetry.NetworkEvent:
		return ev.Destination()
	case telemetry.FileEvent:
		return ev.Path
	case telemetry.SyscallEvent:
		return ev.SyscallName
	default:
		return ""
	}
}
