package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"outpost-hq/warden/pkg/audit"
	"outpost-hq/warden/pkg/store"
)

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	apps, err := s.deps.Store.ListApps()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list apps", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"apps": apps, "count": len(apps)})
}

func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Language    string            `json:"language"`
		EntryPoint  string            `json:"entry_point"`
		Metadata    map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields", "name is required")
		return
	}

	app := store.App{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Description:  req.Description,
		Language:     req.Language,
		EntryPoint:   req.EntryPoint,
		Status:       store.StatusRegistered,
		RegisteredAt: time.Now().UTC().Format(time.RFC3339),
		Metadata:     req.Metadata,
	}
	if err := s.deps.Store.SaveApp(app); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save app", err.Error())
		return
	}

	s.appendLifecycle(&app, "app_registered", app.Name, "app registered")
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) handleGetApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	app, err := s.deps.Store.GetApp(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get app", err.Error())
		return
	}
	if app == nil {
		writeError(w, http.StatusNotFound, "App not found", fmt.Sprintf("No app with id: %s", id))
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleDeleteApp(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	app, err := s.deps.Store.GetApp(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get app", err.Error())
		return
	}
	if app == nil {
		writeError(w, http.StatusNotFound, "App not found", fmt.Sprintf("No app with id: %s", id))
		return
	}
	if app.Status == store.StatusRunning {
		writeError(w, http.StatusConflict, "App is running", "stop the app before deleting it")
		return
	}

	if err := s.deps.Store.DeleteApp(id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete app", err.Error())
		return
	}
	s.appendLifecycle(app, "app_deleted", app.Name, "app deleted")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLaunchApp(w http.ResponseWriter, r *http.Request) {
	s.transitionApp(w, r, store.StatusRunning)
}

func (s *Server) handleStopApp(w http.ResponseWriter, r *http.Request) {
	s.transitionApp(w, r, store.StatusStopped)
}

// transitionApp applies a lifecycle transition. Launching a running app or
// stopping one that is not running is a conflict.
func (s *Server) transitionApp(w http.ResponseWriter, r *http.Request, target store.AppStatus) {
	id := chi.URLParam(r, "id")
	app, err := s.deps.Store.GetApp(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get app", err.Error())
		return
	}
	if app == nil {
		writeError(w, http.StatusNotFound, "App not found", fmt.Sprintf("No app with id: %s", id))
		return
	}

	switch target {
	case store.StatusRunning:
		if app.Status == store.StatusRunning {
			writeError(w, http.StatusConflict, "App is already running", "")
			return
		}
		app.LastLaunchedAt = time.Now().UTC().Format(time.RFC3339)
		// A relaunch starts a fresh spend window.
		s.deps.Engine.Ledger().Reset(app.ID)
	case store.StatusStopped:
		if app.Status != store.StatusRunning {
			writeError(w, http.StatusConflict, "App is not running", "")
			return
		}
	}

	app.Status = target
	if err := s.deps.Store.SaveApp(*app); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update app", err.Error())
		return
	}

	if target == store.StatusRunning {
		s.appendLifecycle(app, "app_launched", app.Name, "app launched")
	} else {
		s.appendLifecycle(app, "app_stopped", app.Name, "app stopped")
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleAssignPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		PolicyID string `json:"policy_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	app, err := s.deps.Store.GetApp(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get app", err.Error())
		return
	}
	if app == nil {
		writeError(w, http.StatusNotFound, "App not found", fmt.Sprintf("No app with id: %s", id))
		return
	}

	if req.PolicyID != "" {
		policy, err := s.deps.Store.GetPolicy(req.PolicyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to get policy", err.Error())
			return
		}
		if policy == nil {
			writeError(w, http.StatusNotFound, "Policy not found", fmt.Sprintf("No policy with id: %s", req.PolicyID))
			return
		}
	}

	app.PolicyID = req.PolicyID
	if err := s.deps.Store.SaveApp(*app); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update app", err.Error())
		return
	}

	if req.PolicyID == "" {
		s.appendLifecycle(app, "policy_cleared", app.Name, "policy assignment cleared")
	} else {
		s.appendLifecycle(app, "policy_assigned", app.Name,
			fmt.Sprintf("policy %s assigned", req.PolicyID))
	}
	writeJSON(w, http.StatusOK, app)
}

// appendLifecycle records an app lifecycle mutation in the audit trail.
func (s *Server) appendLifecycle(app *store.App, eventType, target, details string) {
	if s.deps.AuditLog == nil {
		return
	}
	if err := s.deps.AuditLog.Append(audit.NewLifecycleEntry(app, eventType, target, details)); err != nil {
		s.logger.Warn("failed to append lifecycle audit entry",
			"event_type", eventType, "error", err)
	}
}
