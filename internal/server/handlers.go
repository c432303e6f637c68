// Copyright (C) 2026 Vidya Labs
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vidya-ai/vidya/internal/capability"
	"github.com/vidya-ai/vidya/internal/workflow"
)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	service      *workflow.Service
	capabilities *capability.Registry
}

// NewHandlers creates the handler set.
func NewHandlers(service *workflow.Service, capabilities *capability.Registry) *Handlers {
	return &Handlers{service: service, capabilities: capabilities}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case workflow.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, workflow.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workflow not found"})
	case errors.Is(err, workflow.ErrNotReady):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "workflow results not ready"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error", "context": err.Error()})
	}
}

// --- workflow handlers ---

type createWorkflowRequest struct {
	Type    string         `json:"type"`
	Data    map[string]any `json:"data"`
	OwnerID string         `json:"owner_id,omitempty"`
}

// CreateWorkflow handles POST /api/v1/workflows
func (h *Handlers) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body", "context": err.Error()})
		return
	}
	if req.Type == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "workflow type is required"})
		return
	}

	id, err := h.service.CreateWorkflow(workflow.Request{
		Type:    req.Type,
		Data:    req.Data,
		OwnerID: req.OwnerID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"workflow_id": id, "status": workflow.StatusCreated.String()})
}

// ListWorkflows handles GET /api/v1/workflows
func (h *Handlers) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"workflows": h.service.List()})
}

// GetWorkflow handles GET /api/v1/workflows/{id}
func (h *Handlers) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.GetStatus(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GetWorkflowResults handles GET /api/v1/workflows/{id}/results
func (h *Handlers) GetWorkflowResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	results, err := h.service.GetResults(id)
	if err != nil {
		writeError(w, err)
		return
	}
	sum, err := h.service.GetStatus(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": id,
		"status":      sum.Status,
		"results":     results,
	})
}

// GetWorkflowEvents handles GET /api/v1/workflows/{id}/events?cursor=N
// without streaming: it returns the log slice and the next cursor.
func (h *Handlers) GetWorkflowEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cursor := parseCursor(r)

	events, next, err := h.service.EventsFrom(id, cursor)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []workflow.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"workflow_id": id,
		"events":      events,
		"cursor":      next,
	})
}

// CancelWorkflow handles POST /api/v1/workflows/{id}/cancel
func (h *Handlers) CancelWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Cancel(id); err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"workflow_id": id, "status": "cancelling"})
}

// CleanupWorkflow handles DELETE /api/v1/workflows/{id}
func (h *Handlers) CleanupWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Cleanup(id); err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"workflow_id": id, "status": "removed"})
}

// --- discovery handlers ---

// GetCapabilities handles GET /api/v1/capabilities
func (h *Handlers) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"capabilities":   h.capabilities.List(),
		"workflow_types": h.service.Types(),
	})
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseCursor(r *http.Request) int {
	c := r.URL.Query().Get("cursor")
	if c == "" {
		return 0
	}
	n, err := strconv.Atoi(c)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
