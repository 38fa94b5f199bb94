package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fme/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Operations.
	r.Get("/operations", h.ListOperations)
	r.Post("/preview", h.Preview)
	r.Post("/apply", h.Apply)

	// Notes (read only).
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/*", h.GetFrontmatter)

	// Journal.
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}", h.GetRun)
	r.Post("/runs/{id}/undo", h.UndoRun)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
