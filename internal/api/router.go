package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component's health probe.
const healthCheckTimeout = 5 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/scan", s.handleRunScan)

		r.Route("/automations", func(r chi.Router) {
			r.Get("/", s.handleListAutomations)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetAutomation)
				r.Get("/executions", s.handleListExecutions)
			})
		})
	})

	return r
}

// handleHealth reports server health plus each registered component.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := make(map[string]string, len(s.health))
	healthy := true
	for name, checker := range s.health {
		if err := checker.HealthCheck(ctx); err != nil {
			components[name] = err.Error()
			healthy = false
		} else {
			components[name] = "ok"
		}
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}

// handleRunScan triggers one scan pass synchronously.
//
// Safe to call while the scheduler is also running passes; the ledger's
// dedup gate keeps concurrent passes from duplicating side effects.
func (s *Server) handleRunScan(w http.ResponseWriter, r *http.Request) {
	summary, err := s.engine.RunScan(r.Context())
	if err != nil {
		s.logger.Error("manual scan failed", "error", err)
		writeInternalError(w, "scan pass failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
