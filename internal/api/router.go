package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// events, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, events http.Handler) chi.Router {
	r := chi.NewRouter()

	// The OAuth redirect comes from the browser without our headers.
	r.Get("/drive/callback", h.DriveCallback)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))
		r.Use(OwnerMiddleware)

		r.Post("/chat", h.Chat)
		r.Post("/summarize", h.Summarize)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)
			r.Get("/{id}", h.GetProject)
			r.Put("/{id}", h.UpdateProject)
			r.Delete("/{id}", h.DeleteProject)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Get("/", h.ListSources)
			r.Post("/", h.UploadSource)
			r.Post("/drive", h.LinkDriveFile)
			r.Get("/{id}", h.GetSource)
			r.Get("/{id}/content", h.SourceContent)
			r.Delete("/{id}", h.DeleteSource)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Post("/reorder", h.ReorderTasks)
			r.Put("/{id}", h.UpdateTask)
			r.Post("/{id}/toggle", h.ToggleTask)
			r.Delete("/{id}", h.DeleteTask)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.ListNotes)
			r.Post("/", h.CreateNote)
			r.Get("/{id}", h.GetNote)
			r.Put("/{id}", h.UpdateNote)
			r.Delete("/{id}", h.DeleteNote)
		})
		r.Get("/search", h.Search)

		r.Post("/drive/auth", h.DriveAuth)
		r.Get("/drive/status", h.DriveStatus)
		r.Get("/drive/files", h.DriveFiles)
		r.Delete("/drive/connection", h.DriveDisconnect)

		if events != nil {
			r.Get("/events", events.ServeHTTP)
		}
	})

	return r
}
