package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sm/internal/models"
	"github.com/starford/sm/internal/pkgservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *pkgservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *pkgservice.Service) *Handler {
	return &Handler{svc: svc}
}

// packagePath extracts the package path from the URL (everything after the
// route prefix). Encoded slashes (node_modules%2Forg.pinf.lib) are accepted.
func packagePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Resolve handles GET /api/resolve.
//
//	@Summary		Resolve a package identifier from a calling file
//	@Tags			resolve
//	@Produce		json
//	@Param			from	query		string	true	"Calling file, relative to the workspace root"
//	@Param			id		query		string	true	"Package identifier"
//	@Param			module	query		string	false	"Module inside the package"
//	@Success		200		{object}	ResolveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	NotFoundResponse
//	@Security		BearerAuth
//	@Router			/resolve [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, id := q.Get("from"), q.Get("id")
	if from == "" || id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameters 'from' and 'id' are required"))
		return
	}
	res, err := h.svc.Resolve(r.Context(), from, id, q.Get("module"))
	if err != nil {
		writeError(w, "resolve", err, slog.String("id", id), slog.String("from", from))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ListPackages handles GET /api/packages.
//
//	@Summary		List installed packages
//	@Tags			packages
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			area	query		string	false	"Install area"	Enums(flat, deps)
//	@Param			key		query		string	false	"Only installs of this canonical key"
//	@Success		200		{object}	PackageListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/packages [get]
func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if key := q.Get("key"); key != "" {
		items, err := h.svc.Installs(r.Context(), key)
		if err != nil {
			writeError(w, "list installs", err, slog.String("key", key))
			return
		}
		writeJSON(w, http.StatusOK, PackageListResponse{Packages: nonNil(items), Total: len(items)})
		return
	}

	area := models.Area(q.Get("area"))
	if area != "" && !area.Valid() {
		writeJSON(w, http.StatusBadRequest, errorBody("area must be 'flat' or 'deps'"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListPackages(r.Context(), limit, offset, area)
	if err != nil {
		writeError(w, "list packages", err)
		return
	}
	writeJSON(w, http.StatusOK, PackageListResponse{Packages: nonNil(items), Total: total})
}

// GetPackage handles GET /api/packages/*.
//
//	@Summary		Get one installed package by workspace path
//	@Tags			packages
//	@Produce		json
//	@Param			path	path		string	true	"Package path"
//	@Success		200		{object}	PackageDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/packages/{path} [get]
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	path := packagePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	pkg, err := h.svc.GetPackage(r.Context(), path)
	if err != nil {
		writeError(w, "get package", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

// GetDescriptor handles GET /api/descriptor/*.
//
//	@Summary		Read the descriptor of a package directory from disk
//	@Tags			packages
//	@Produce		json
//	@Param			path	path		string	true	"Package path"
//	@Success		200		{object}	Descriptor
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/descriptor/{path} [get]
func (h *Handler) GetDescriptor(w http.ResponseWriter, r *http.Request) {
	path := packagePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	d, err := h.svc.ReadDescriptor(r.Context(), path)
	if err != nil {
		writeError(w, "read descriptor", err, slog.String("path", path))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Search handles GET /api/search.
//
//	@Summary		Search the package inventory
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	out := make([]SearchResult, len(results))
	for i, res := range results {
		out[i] = SearchResult{
			Path:    res.Path,
			Key:     res.Key,
			Area:    string(res.Area),
			Name:    res.Name,
			Version: res.Version,
			Snippet: res.Snippet,
		}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}

// Sync handles POST /api/sync.
//
//	@Summary		Re-scan the workspace and update the inventory
//	@Tags			packages
//	@Success		204	"Inventory synced"
//	@Security		BearerAuth
//	@Router			/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Sync(r.Context()); err != nil {
		writeError(w, "sync", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
