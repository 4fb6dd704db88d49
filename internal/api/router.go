package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sm/internal/pkgservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *pkgservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/resolve", h.Resolve)

	r.Get("/packages", h.ListPackages)
	r.Get("/packages/*", h.GetPackage)
	r.Get("/descriptor/*", h.GetDescriptor)
	r.Post("/sync", h.Sync)

	r.Get("/search", h.Search)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
