package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/keyline/internal/docservice"
	"github.com/starford/keyline/internal/storage"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)
	fh := NewFileHandler(svc, nil)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents CRUD.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/*", h.GetDocument)
	r.Put("/documents/*", h.UpdateDocument)
	r.Delete("/documents/*", h.DeleteDocument)
	r.Post("/move", h.MoveDocument)
	r.Post("/import", fh.Import)

	// Search.
	r.Get("/search", h.Search)
	r.Get("/targets", h.Targets)

	// Editing sessions, addressed by ?path=.
	r.Route("/session", func(r chi.Router) {
		r.Use(requireDocument)
		r.Get("/", h.OpenSession)
		r.Delete("/", h.CloseSession)
		r.Put("/name", h.Rename)
		r.Patch("/timebar", h.UpdateTimebar)

		r.Post("/tracks", h.AddTrack)
		r.Patch("/tracks/{track}", h.UpdateTrack)
		r.Delete("/tracks/{track}", h.RemoveTrack)
		r.Post("/tracks/{track}/move", h.MoveTrack)
		r.Post("/tracks/{track}/select", h.SelectTrack)
		r.Post("/tracks/{track}/keys", h.AddKey)
		r.Patch("/tracks/{track}/keys/{param}/{key}", h.UpdateKey)
		r.Delete("/tracks/{track}/keys/{param}/{key}", h.RemoveKey)

		r.Put("/eases/{id}", h.SetEase)
		r.Delete("/eases/{id}", h.RemoveEase)
		r.Put("/triggers/{id}", h.SetTrigger)
		r.Delete("/triggers/{id}", h.RemoveTrigger)

		r.Post("/undo", h.Undo)
		r.Post("/redo", h.Redo)
		r.Get("/magnets", h.Magnets)

		r.Get("/compile", h.Compile)
		r.Post("/export", h.Export)

		r.Post("/play", h.Play)
		r.Post("/pause", h.Pause)
		r.Post("/seek", h.Seek)
		r.Get("/preview", h.Preview)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}

// NewExportRouter serves compiled modules at /*. It is mounted outside
// the auth group so pages can load their scripts.
func NewExportRouter(svc *docservice.Service, exports storage.Provider) chi.Router {
	fh := NewFileHandler(svc, exports)
	r := chi.NewRouter()
	r.Get("/*", fh.ServeExport)
	return r
}
