package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"outpost-hq/warden/pkg/store"
)

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.deps.Store.ListPolicies()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": policies, "count": len(policies)})
}

func (s *Server) handleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string   `json:"name"`
		Description    string   `json:"description"`
		AllowedDomains []string `json:"allowed_domains"`
		BlockedDomains []string `json:"blocked_domains"`
		MaxSpend       float64  `json:"max_spend"`
		AllowFileWrite bool     `json:"allow_file_write"`
		AllowNetAccess bool     `json:"allow_net_access"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields", "name is required")
		return
	}
	if req.MaxSpend < 0 {
		writeError(w, http.StatusBadRequest, "Invalid policy", "max_spend must be non-negative")
		return
	}

	policy := store.Policy{
		ID:             uuid.New().String(),
		Name:           req.Name,
		Description:    req.Description,
		AllowedDomains: emptyIfNil(req.AllowedDomains),
		BlockedDomains: emptyIfNil(req.BlockedDomains),
		MaxSpend:       req.MaxSpend,
		AllowFileWrite: req.AllowFileWrite,
		AllowNetAccess: req.AllowNetAccess,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.deps.Store.SavePolicy(policy); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save policy", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, policy)
}

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	policy, err := s.deps.Store.GetPolicy(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get policy", err.Error())
		return
	}
	if policy == nil {
		writeError(w, http.StatusNotFound, "Policy not found", fmt.Sprintf("No policy with id: %s", id))
		return
	}
	writeJSON(w, http.StatusOK, policy)
}

func (s *Server) handleDeletePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	policy, err := s.deps.Store.GetPolicy(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get policy", err.Error())
		return
	}
	if policy == nil {
		writeError(w, http.StatusNotFound, "Policy not found", fmt.Sprintf("No policy with id: %s", id))
		return
	}

	// Deleting a referenced policy clears the reference on the app side;
	// the store owns that integrity rule.
	if err := s.deps.Store.DeletePolicy(id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete policy", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
