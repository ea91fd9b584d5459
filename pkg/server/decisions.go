package server

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"outpost-hq/warden/pkg/audit"
	"outpost-hq/warden/pkg/store"
	"outpost-hq/warden/pkg/telemetry"
)

// handleDecide is the live evaluation path: one captured event in, one
// decision out, with the decision recorded in the audit trail and the
// event stored alongside the rest of the telemetry.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err.Error())
		return
	}

	event, err := decodeEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event", err.Error())
		return
	}
	if event.Owner() == "" {
		writeError(w, http.StatusBadRequest, "Invalid event", "app_id is required")
		return
	}

	app, err := s.deps.Store.GetApp(event.Owner())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get app", err.Error())
		return
	}

	policy, err := s.effectivePolicy(app)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get policy", err.Error())
		return
	}

	if err := s.storeEvent(event); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store event", err.Error())
		return
	}

	d := s.deps.Engine.Decide(r.Context(), event, app, policy)

	if s.deps.AuditLog != nil {
		if err := s.deps.AuditLog.Append(audit.NewEntry(d, event, app)); err != nil {
			s.logger.Warn("failed to append decision audit entry", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, d)
}

// decodeEvent unmarshals a raw event document into its typed form using
// the "kind" discriminator. A missing id is assigned.
func decodeEvent(body []byte) (telemetry.Event, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)

	switch telemetry.Kind(head.Kind) {
	case telemetry.KindSyscall:
		var ev telemetry.SyscallEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, err
		}
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.Timestamp == "" {
			ev.Timestamp = now
		}
		return ev, nil
	case telemetry.KindNetwork:
		var ev telemetry.NetworkEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, err
		}
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.Timestamp == "" {
			ev.Timestamp = now
		}
		return ev, nil
	case telemetry.KindFile:
		var ev telemetry.FileEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, err
		}
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.Timestamp == "" {
			ev.Timestamp = now
		}
		return ev, nil
	default:
		return nil, &unknownKindError{kind: head.Kind}
	}
}

type unknownKindError struct {
	kind string
}

func (e *unknownKindError) Error() string {
	if e.kind == "" {
		return "missing event kind; expected one of syscall, network, file"
	}
	return "unknown event kind " + e.kind + "; expected one of syscall, network, file"
}

// effectivePolicy resolves the policy assigned to an app, if any.
func (s *Server) effectivePolicy(app *store.App) (*store.Policy, error) {
	if app == nil || app.PolicyID == "" {
		return nil, nil
	}
	return s.deps.Store.GetPolicy(app.PolicyID)
}

// storeEvent persists the event with the rest of the telemetry stream.
func (s *Server) storeEvent(event telemetry.Event) error {
	switch ev := event.(type) {
	case telemetry.SyscallEvent:
		return s.deps.Store.SaveSyscallEvents([]telemetry.SyscallEvent{ev})
	case telemetry.NetworkEvent:
		return s.deps.Store.SaveNetworkEvents([]telemetry.NetworkEvent{ev})
	case telemetry.FileEvent:
		return s.deps.Store.SaveFileEvents([]telemetry.FileEvent{ev})
	default:
		return nil
	}
}
