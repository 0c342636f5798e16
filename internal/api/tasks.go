package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/workspace"
)

// ReorderRequest lists task ids in their new order.
type ReorderRequest struct {
	IDs []string `json:"ids"`
}

// ListTasks handles GET /api/tasks.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	items, err := h.ws.ListTasks(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		writeError(w, "list tasks", err)
		return
	}
	if items == nil {
		items = []models.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": items})
}

// CreateTask handles POST /api/tasks.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var in workspace.TaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, "create task", err)
		return
	}
	t, err := h.ws.CreateTask(r.Context(), in)
	if err != nil {
		writeError(w, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTask handles PUT /api/tasks/{id}.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var in workspace.TaskInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, "update task", err)
		return
	}
	t, err := h.ws.UpdateTask(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, "update task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ToggleTask handles POST /api/tasks/{id}/toggle.
func (h *Handler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.ws.ToggleTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "toggle task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ReorderTasks handles POST /api/tasks/reorder.
func (h *Handler) ReorderTasks(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "reorder tasks", err)
		return
	}
	if err := h.ws.ReorderTasks(r.Context(), req.IDs); err != nil {
		writeError(w, "reorder tasks", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
