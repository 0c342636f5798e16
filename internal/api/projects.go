package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/workspace"
)

// ListProjects handles GET /api/projects.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	items, err := h.ws.ListProjects(r.Context())
	if err != nil {
		writeError(w, "list projects", err)
		return
	}
	if items == nil {
		items = []models.Project{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": items})
}

// CreateProject handles POST /api/projects.
//
//	@Summary		Create a project
//	@Tags			projects
//	@Accept			json
//	@Produce		json
//	@Param			body	body		workspace.ProjectInput	true	"Project"
//	@Success		201		{object}	models.Project
//	@Failure		400		{object}	errResponse
//	@Router			/projects [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in workspace.ProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, "create project", err)
		return
	}
	p, err := h.ws.CreateProject(r.Context(), in)
	if err != nil {
		writeError(w, "create project", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetProject handles GET /api/projects/{id}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.ws.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdateProject handles PUT /api/projects/{id}.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var in workspace.ProjectInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, "update project", err)
		return
	}
	p, err := h.ws.UpdateProject(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, "update project", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProject handles DELETE /api/projects/{id}. Tasks, notes and sources
// of the project are kept and detached.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteProject(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
