package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"outpost-hq/warden/pkg/store"
)

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("app_id")

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	order := store.OrderDesc
	if o := r.URL.Query().Get("order"); o == string(store.OrderAsc) {
		order = store.OrderAsc
	}

	entries, err := s.deps.AuditLog.Query(appID, limit, order)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// handleAuditIngest accepts audit entries from external collaborators (for
// example the sandbox launcher reporting lifecycle events it observed).
// The id, sequence number, and timestamp are assigned server-side.
func (s *Server) handleAuditIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AppID     string `json:"app_id"`
		AppName   string `json:"app_name"`
		EventType string `json:"event_type"`
		Direction string `json:"direction"`
		Target    string `json:"target"`
		Details   string `json:"details"`
		Action    string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.EventType == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields", "event_type and action are required")
		return
	}

	entry := store.AuditEntry{
		ID:        uuid.New().String(),
		AppID:     req.AppID,
		AppName:   req.AppName,
		EventType: req.EventType,
		Direction: req.Direction,
		Target:    req.Target,
		Details:   req.Details,
		Action:    req.Action,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := s.deps.AuditLog.Append(entry); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Audit log unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued", "id": entry.ID})
}
