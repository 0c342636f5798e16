package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/atelier/internal/apperr"
	"github.com/starford/atelier/internal/assistant"
	"github.com/starford/atelier/internal/models"
)

// ChatRequest is the request body for a chat turn.
type ChatRequest struct {
	Messages  []models.Message `json:"messages"`
	ProjectID string           `json:"projectId"`
	SourceIDs []string         `json:"sourceIds"`
	Intent    string           `json:"intent"`
}

// SummarizeRequest names the source to summarize.
type SummarizeRequest struct {
	Source struct {
		ID string `json:"id"`
	} `json:"source"`
}

// Chat handles POST /api/chat.
//
//	@Summary		Answer the last user message from workspace context
//	@Tags			assistant
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ChatRequest	true	"Conversation"
//	@Success		200		{object}	assistant.ChatResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse	"Drive reconnect required"
//	@Failure		502		{object}	errResponse
//	@Router			/chat [post]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "chat", err)
		return
	}
	intent, err := assistant.ParseIntent(req.Intent)
	if err != nil {
		writeError(w, "chat", err)
		return
	}
	ids := compactIDs(req.SourceIDs)

	resp, err := h.ai.Converse(r.Context(), assistant.ChatRequest{
		OwnerID:   ownerFrom(r.Context()),
		Messages:  req.Messages,
		ProjectID: req.ProjectID,
		SourceIDs: ids,
		Intent:    assistant.DeriveIntent(intent, ids),
	})
	if err != nil {
		writeError(w, "chat", err)
		return
	}
	if resp.Sources == nil {
		resp.Sources = []models.Citation{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Summarize handles POST /api/summarize.
//
//	@Summary		Summarize one source
//	@Tags			assistant
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SummarizeRequest	true	"Source to summarize"
//	@Success		200		{object}	map[string]string
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse	"Drive reconnect required"
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Router			/summarize [post]
func (h *Handler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, "summarize", err)
		return
	}
	id := strings.TrimSpace(req.Source.ID)
	if id == "" {
		writeError(w, "summarize", fmt.Errorf("%w: source id is required", apperr.ErrInvalidRequest))
		return
	}
	src, err := h.ws.GetSource(r.Context(), id)
	if err != nil {
		writeError(w, "summarize", err)
		return
	}
	summary, err := h.ai.Summarize(r.Context(), ownerFrom(r.Context()), *src)
	if err != nil {
		writeError(w, "summarize", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
