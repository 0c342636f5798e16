package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/store"
	"github.com/starford/atelier/internal/workspace"
)

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	items, err := h.ws.ListNotes(r.Context(), r.URL.Query().Get("projectId"))
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	if items == nil {
		items = []models.Note{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": items})
}

// CreateNote handles POST /api/notes. HTML content is sanitized before it
// is stored.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		workspace.NoteInput	true	"Note"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var in workspace.NoteInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, "create note", err)
		return
	}
	n, err := h.ws.CreateNote(r.Context(), in)
	if err != nil {
		writeError(w, "create note", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.ws.GetNote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// UpdateNote handles PUT /api/notes/{id}.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	var in workspace.NoteUpdate
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, "update note", err)
		return
	}
	n, err := h.ws.UpdateNote(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, "update note", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search?q=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	results, err := h.ws.SearchNotes(r.Context(), q.Get("q"), limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
