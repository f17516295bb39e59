package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/relayhq/relay-core/internal/automation"
)

// defaultExecutionLimit is the execution-history page size when the
// client does not specify one.
const defaultExecutionLimit = 10

// handleListAutomations returns all automations, newest first.
func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	automations, err := s.repo.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list automations", "error", err)
		writeInternalError(w, "failed to list automations")
		return
	}
	if automations == nil {
		automations = []automation.Automation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"automations": automations,
		"count":       len(automations),
	})
}

// handleGetAutomation returns one automation by ID.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	auto, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, automation.ErrAutomationNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		s.logger.Error("failed to load automation", "id", id, "error", err)
		writeInternalError(w, "failed to load automation")
		return
	}
	writeJSON(w, http.StatusOK, auto)
}

// handleListExecutions returns an automation's recent execution history.
//
// Query parameters:
//   - limit: Maximum records to return (the ledger clamps the range)
func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// 404 for unknown automations rather than an empty history.
	if _, err := s.repo.GetByID(r.Context(), id); err != nil {
		if errors.Is(err, automation.ErrAutomationNotFound) {
			writeNotFound(w, "automation not found")
			return
		}
		s.logger.Error("failed to load automation", "id", id, "error", err)
		writeInternalError(w, "failed to load automation")
		return
	}

	limit := defaultExecutionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	executions, err := s.ledger.ListByAutomation(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("failed to list executions", "id", id, "error", err)
		writeInternalError(w, "failed to list executions")
		return
	}
	if executions == nil {
		executions = []automation.ExecutionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"executions": executions,
		"count":      len(executions),
	})
}
