package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/store"
	"github.com/starford/atelier/internal/workspace"
)

// maxUploadBytes caps multipart uploads.
const maxUploadBytes = 20 << 20

// ListSources handles GET /api/sources.
//
//	@Summary		List sources newest first
//	@Tags			sources
//	@Produce		json
//	@Param			projectId	query		string	false	"Project filter"
//	@Param			q			query		string	false	"Name filter"
//	@Param			limit		query		int		false	"Page size"
//	@Success		200			{object}	map[string][]models.Source
//	@Router			/sources [get]
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	items, err := h.ws.ListSources(r.Context(), store.SourceFilter{
		ProjectID: q.Get("projectId"),
		Query:     q.Get("q"),
		Limit:     limit,
	})
	if err != nil {
		writeError(w, "list sources", err)
		return
	}
	if items == nil {
		items = []models.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": items})
}

// UploadSource handles POST /api/sources (multipart field "file").
func (h *Handler) UploadSource(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, "upload source", fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "upload source", fmt.Errorf("%w: missing 'file' field", apperr.ErrInvalidRequest))
		return
	}
	defer file.Close()

	src, err := h.ws.Upload(r.Context(), workspace.UploadInput{
		Name:      header.Filename,
		MimeType:  header.Header.Get("Content-Type"),
		ProjectID: r.FormValue("projectId"),
		Body:      file,
	})
	if err != nil {
		writeError(w, "upload source", err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

// LinkDriveFile handles POST /api/sources/drive.
func (h *Handler) LinkDriveFile(w http.ResponseWriter, r *http.Request) {
	var in workspace.DriveFileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, "link drive file", err)
		return
	}
	src, err := h.ws.LinkDriveFile(r.Context(), in)
	if err != nil {
		writeError(w, "link drive file", err)
		return
	}
	writeJSON(w, http.StatusCreated, src)
}

// GetSource handles GET /api/sources/{id}.
func (h *Handler) GetSource(w http.ResponseWriter, r *http.Request) {
	src, err := h.ws.GetSource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get source", err)
		return
	}
	writeJSON(w, http.StatusOK, src)
}

// SourceContent handles GET /api/sources/{id}/content and streams the
// stored bytes of an uploaded source.
func (h *Handler) SourceContent(w http.ResponseWriter, r *http.Request) {
	src, rc, err := h.ws.OpenSource(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "source content", err)
		return
	}
	defer rc.Close()

	if src.MimeType != "" {
		w.Header().Set("Content-Type", src.MimeType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", src.Name))
	if _, err := io.Copy(w, rc); err != nil {
		slog.Warn("api: stream source content", slog.String("id", src.ID), slog.String("error", err.Error()))
	}
}

// DeleteSource handles DELETE /api/sources/{id}.
func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.DeleteSource(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete source", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
