package api

import (
	"context"

	"github.com/starford/atelier/internal/assistant"
	"github.com/starford/atelier/internal/drive"
	"github.com/starford/atelier/internal/models"
	"github.com/starford/atelier/internal/workspace"
)

// Assistant answers chat turns and summarizes sources.
type Assistant interface {
	Converse(ctx context.Context, req assistant.ChatRequest) (assistant.ChatResponse, error)
	Summarize(ctx context.Context, ownerID string, src models.Source) (string, error)
}

// Drive is the per-owner Google Drive connection.
type Drive interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, ownerID, code string) error
	Connected(ctx context.Context, ownerID string) (bool, error)
	Disconnect(ctx context.Context, ownerID string) error
	ListFiles(ctx context.Context, ownerID string) ([]drive.File, error)
}

// Handler holds API route handlers.
type Handler struct {
	ws    *workspace.Service
	ai    Assistant
	drive Drive
}

// NewHandler creates a new Handler. drv may be nil when Drive is not
// configured; the Drive routes then answer 503.
func NewHandler(ws *workspace.Service, ai Assistant, drv Drive) *Handler {
	return &Handler{ws: ws, ai: ai, drive: drv}
}
