// Package pkgservice coordinates the resolver, the workspace view and the
// inventory index for the HTTP and MCP transports.
package pkgservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/sm/internal/apperr"
	"github.com/starford/sm/internal/descriptor"
	"github.com/starford/sm/internal/index"
	"github.com/starford/sm/internal/models"
	"github.com/starford/sm/internal/resolve"
	"github.com/starford/sm/internal/storage"
)

// PackageDetail is the full representation of an installed package.
type PackageDetail struct {
	Path        string      `json:"path"`
	Key         string      `json:"key"`
	Area        models.Area `json:"area"`
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Description string      `json:"description,omitempty"`
	Main        string      `json:"main,omitempty"`
	Keywords    []string    `json:"keywords"`
	Checksum    string      `json:"checksum"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// PackageListItem is a lightweight item in a list response.
type PackageListItem struct {
	Path      string      `json:"path"`
	Key       string      `json:"key"`
	Area      models.Area `json:"area"`
	Name      string      `json:"name"`
	Version   string      `json:"version"`
	Checksum  string      `json:"checksum"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Service coordinates storage, index and resolver operations.
type Service struct {
	store   storage.Provider
	db      *index.DB
	logger  *slog.Logger
	resolve []resolve.Option
}

// NewService creates a package service. opts are applied to every resolution.
func NewService(store storage.Provider, db *index.DB, logger *slog.Logger, opts ...resolve.Option) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:   store,
		db:      db,
		logger:  logger,
		resolve: append([]resolve.Option{resolve.WithLogger(logger)}, opts...),
	}
}

// Root returns the absolute workspace root.
func (s *Service) Root() string { return s.store.Root() }

// Resolve resolves id (and module) as seen from the file at from. A relative
// from is taken relative to the workspace root; locations outside the
// workspace are rejected.
func (s *Service) Resolve(ctx context.Context, from, id, module string) (*resolve.Result, error) {
	abs, err := s.callerPath(from)
	if err != nil {
		return nil, err
	}
	return resolve.Resolve(ctx, abs, id, module, s.resolve...)
}

func (s *Service) callerPath(from string) (string, error) {
	if strings.TrimSpace(from) == "" {
		return "", fmt.Errorf("caller location is required: %w", apperr.ErrOutsideWorkspace)
	}
	root := s.store.Root()
	p := filepath.FromSlash(from)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", from, apperr.ErrOutsideWorkspace)
	}
	return p, nil
}

// ListPackages returns paginated inventory entries, optionally limited to one area.
func (s *Service) ListPackages(_ context.Context, limit, offset int, area models.Area) ([]PackageListItem, int, error) {
	rows, total, err := s.db.ListPackages(limit, offset, area)
	if err != nil {
		return nil, 0, err
	}
	items := make([]PackageListItem, len(rows))
	for i, r := range rows {
		items[i] = listItem(r)
	}
	return items, total, nil
}

// GetPackage returns the inventory entry at path, enriched with the live descriptor.
func (s *Service) GetPackage(_ context.Context, path string) (*PackageDetail, error) {
	row, err := s.db.GetPackage(path)
	if err != nil {
		return nil, err
	}
	detail := &PackageDetail{
		Path:        row.Path,
		Key:         row.Key,
		Area:        row.Area,
		Name:        row.Name,
		Version:     row.Version,
		Description: row.Description,
		Keywords:    nonNilSlice(row.Keywords),
		Checksum:    row.Checksum,
		UpdatedAt:   row.UpdatedAt,
	}
	if d, err := s.store.Descriptor(path); err == nil {
		detail.Main = d.Main
	} else if !errors.Is(err, descriptor.ErrMissing) {
		s.logger.Warn("pkgservice: descriptor read failed", slog.String("path", path), slog.String("error", err.Error()))
	}
	return detail, nil
}

// ReadDescriptor loads the descriptor of the package directory at path
// straight from disk, whether or not it is indexed.
func (s *Service) ReadDescriptor(_ context.Context, path string) (*descriptor.Descriptor, error) {
	d, err := s.store.Descriptor(path)
	if err != nil {
		if errors.Is(err, descriptor.ErrMissing) || errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// Search delegates inventory search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Installs returns every indexed install of the package with canonical key
// key, in either area.
func (s *Service) Installs(_ context.Context, key string) ([]PackageListItem, error) {
	rows, err := s.db.FindInstalls(key)
	if err != nil {
		return nil, err
	}
	out := make([]PackageListItem, len(rows))
	for i, r := range rows {
		out[i] = listItem(r)
	}
	return out, nil
}

// Sync brings the index in line with the workspace.
func (s *Service) Sync(_ context.Context) error {
	return index.Sync(s.db, s.store, s.logger)
}

func listItem(r index.PackageRow) PackageListItem {
	return PackageListItem{
		Path:      r.Path,
		Key:       r.Key,
		Area:      r.Area,
		Name:      r.Name,
		Version:   r.Version,
		Checksum:  r.Checksum,
		UpdatedAt: r.UpdatedAt,
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
