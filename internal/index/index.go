package index

import "github.com/starford/sm/internal/models"

// PackageIndex defines the inventory operations used by the service layer.
// Consumers depend on this interface rather than on *DB.
type PackageIndex interface {
	UpsertPackage(p PackageRow) error
	DeletePackage(path string) error
	GetChecksum(path string) (string, error)
	GetPackage(path string) (*PackageRow, error)
	ListPackages(limit, offset int, area models.Area) ([]PackageRow, int, error)
	FindInstalls(key string) ([]PackageRow, error)
	Search(query string, limit int) ([]SearchResult, error)
	AllPaths() (map[string]struct{}, error)
	AllChecksums() (map[string]string, error)
	Close() error
}

var _ PackageIndex = (*DB)(nil)
