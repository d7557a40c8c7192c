package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Entries CRUD.
	r.Get("/entries", h.ListEntries)
	r.Post("/entries", h.CreateEntry)
	r.Get("/entries/count", h.CountEntries)
	r.Get("/entries/range", h.EntriesInRange)
	r.Get("/entries/date/{date}", h.GetEntryByDate)
	r.Get("/entries/{id}", h.GetEntry)
	r.Patch("/entries/{id}", h.UpdateEntry)
	r.Delete("/entries/{id}", h.DeleteEntry)

	// Settings.
	r.Get("/settings", h.GetSettings)
	r.Patch("/settings", h.UpdateSettings)
	r.Post("/settings/reset", h.ResetSettings)

	// Photos.
	r.Post("/photos", h.UploadPhoto)
	r.Delete("/photos", h.DeletePhoto)
	r.Get("/photos/metadata", h.PhotoMetadata)
	r.Get("/photos/stats", h.PhotoStats)
	r.Post("/photos/cleanup", h.CleanupPhotos)

	// System.
	r.Get("/system/status", h.Status)
	r.Get("/system/health", h.Health)
	r.Post("/system/recover", h.Recover)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
