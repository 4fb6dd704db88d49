package api

import (
	"github.com/starford/sm/internal/descriptor"
	"github.com/starford/sm/internal/pkgservice"
	"github.com/starford/sm/internal/resolve"
)

// ResolveResponse is the result of one resolution (aliased from the resolver).
type ResolveResponse = resolve.Result

// PackageDetail is the full package response type (aliased from the domain layer).
type PackageDetail = pkgservice.PackageDetail

// PackageListItem is a lightweight item in a list response (aliased from the domain layer).
type PackageListItem = pkgservice.PackageListItem

// Descriptor is the raw package descriptor response.
type Descriptor = descriptor.Descriptor

// PackageListResponse wraps paginated package listings.
type PackageListResponse struct {
	Packages []PackageListItem `json:"packages" validate:"required"`
	Total    int               `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"node_modules/org.pinf.lib" validate:"required"`
	Key     string `json:"key" example:"org.pinf.lib" validate:"required"`
	Area    string `json:"area" example:"flat" validate:"required"`
	Name    string `json:"name" example:"org.pinf.lib" validate:"required"`
	Version string `json:"version" example:"0.1.4"`
	Snippet string `json:"snippet" example:"...matched text..."`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// NotFoundResponse is returned when no install area holds the package.
type NotFoundResponse struct {
	Error  string   `json:"error" validate:"required"`
	Probed []string `json:"probed" validate:"required"`
}
