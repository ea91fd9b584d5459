package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"outpost-hq/warden/pkg/rules"
	"outpost-hq/warden/pkg/store"
)

func (s *Server) handleListRuleModules(w http.ResponseWriter, r *http.Request) {
	modules, err := s.deps.Store.ListRuleModules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rule modules", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": modules, "count": len(modules)})
}

func (s *Server) handleCreateRuleModule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Module      string `json:"module"`
		Rego        string `json:"rego"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Name == "" || req.Rego == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields", "name and rego are required")
		return
	}
	if req.Module == "" {
		req.Module = "policy." + req.Name
	}

	record := store.RuleModule{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Description: req.Description,
		Module:      req.Module,
		Rego:        req.Rego,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}

	// Compile into the active set first: a module that does not compile is
	// never persisted.
	if err := s.deps.Registry.Add(record); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule module", err.Error())
		return
	}
	if err := s.deps.Store.SaveRuleModule(record); err != nil {
		s.deps.Registry.Remove(record.Module)
		writeError(w, http.StatusInternalServerError, "Failed to save rule module", err.Error())
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.SetRuleModulesLoaded(s.deps.Registry.Count())
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleGetRuleModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	module, err := s.deps.Store.GetRuleModule(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rule module", err.Error())
		return
	}
	if module == nil {
		writeError(w, http.StatusNotFound, "Rule module not found", fmt.Sprintf("No rule module with id: %s", id))
		return
	}
	writeJSON(w, http.StatusOK, module)
}

func (s *Server) handleDeleteRuleModule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	module, err := s.deps.Store.GetRuleModule(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rule module", err.Error())
		return
	}
	if module == nil {
		writeError(w, http.StatusNotFound, "Rule module not found", fmt.Sprintf("No rule module with id: %s", id))
		return
	}

	if err := s.deps.Store.DeleteRuleModule(id); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete rule module", err.Error())
		return
	}
	// Removal takes effect immediately in the active evaluation set.
	s.deps.Registry.Remove(module.Module)

	if s.deps.Metrics != nil {
		s.deps.Metrics.SetRuleModulesLoaded(s.deps.Registry.Count())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidateRego(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Module string `json:"module"`
		Rego   string `json:"rego"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Module == "" {
		req.Module = "policy.validation_test"
	}

	if err := rules.Validate(req.Module, req.Rego); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"valid": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rego   string           `json:"rego"`
		Query  string           `json:"query"`
		Events []map[string]any `json:"events"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Rego == "" || len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "Missing required fields", "rego and events are required")
		return
	}

	result, err := s.deps.Runner.Run(r.Context(), req.Rego, req.Query, req.Events)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Simulation failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Input any    `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.Query == "" {
		req.Query = s.cfg.Rules.DefaultQuery
	}

	result, err := s.deps.Registry.Evaluate(r.Context(), req.Query, req.Input)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Policy evaluation failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
