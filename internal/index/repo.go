package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/sm/internal/apperr"
	"github.com/starford/sm/internal/models"
)

// PackageRow represents a row in the packages table.
type PackageRow struct {
	Path        string
	Key         string
	Area        models.Area
	Name        string
	Version     string
	Description string
	Keywords    []string
	Checksum    string
	UpdatedAt   time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Key     string
	Area    models.Area
	Name    string
	Version string
	Snippet string
}

const packageColumns = `path, key, area, name, version, description, keywords, checksum, updated_at`

// UpsertPackage inserts or replaces a package and its FTS entry within a transaction.
func (db *DB) UpsertPackage(p PackageRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if p.Keywords == nil {
		p.Keywords = []string{}
	}
	kwJSON, _ := json.Marshal(p.Keywords)

	_, err = tx.Exec(`
		INSERT INTO packages (`+packageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			key         = excluded.key,
			area        = excluded.area,
			name        = excluded.name,
			version     = excluded.version,
			description = excluded.description,
			keywords    = excluded.keywords,
			checksum    = excluded.checksum,
			updated_at  = excluded.updated_at
	`, p.Path, p.Key, string(p.Area), p.Name, p.Version, p.Description, string(kwJSON), p.Checksum, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert package: %w", err)
	}

	// No-op when the FTS5 tag is absent.
	if err := ftsUpsert(tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// DeletePackage removes a package and its FTS entry.
func (db *DB) DeletePackage(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM packages WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete package: %w", err)
	}
	return tx.Commit()
}

// GetChecksum returns the stored checksum for a package, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM packages WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// GetPackage returns the row stored for path, or apperr.ErrNotFound.
func (db *DB) GetPackage(path string) (*PackageRow, error) {
	row := db.conn.QueryRow(`SELECT `+packageColumns+` FROM packages WHERE path = ?`, path)
	p, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get package: %w", err)
	}
	return p, nil
}

// ListPackages returns a page of packages ordered by path, and the total
// count for the filter. An empty area lists both areas.
func (db *DB) ListPackages(limit, offset int, area models.Area) ([]PackageRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	where, args := "", []any{}
	if area != "" {
		where = ` WHERE area = ?`
		args = append(args, string(area))
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM packages`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count packages: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+packageColumns+` FROM packages`+where+` ORDER BY path LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list packages: %w", err)
	}
	defer rows.Close()

	var out []PackageRow
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// FindInstalls returns every install of the package with canonical key key:
// the flat install named key and the deps installs under key~<major>.
func (db *DB) FindInstalls(key string) ([]PackageRow, error) {
	rows, err := db.conn.Query(`SELECT `+packageColumns+` FROM packages
		WHERE key = ? OR (area = ? AND key LIKE ? ESCAPE '\')
		ORDER BY path`, key, string(models.AreaDeps), likeEscaper.Replace(key)+"~%")
	if err != nil {
		return nil, fmt.Errorf("index: find installs: %w", err)
	}
	defer rows.Close()

	var out []PackageRow
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// AllPaths returns every indexed package path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM packages`)
	if err != nil {
		return nil, fmt.Errorf("index: all paths: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// AllChecksums returns path → descriptor checksum for every indexed package.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM packages`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPackage(s scanner) (*PackageRow, error) {
	var (
		p      PackageRow
		area   string
		kwJSON string
	)
	if err := s.Scan(&p.Path, &p.Key, &area, &p.Name, &p.Version, &p.Description, &kwJSON, &p.Checksum, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Area = models.Area(area)
	if err := json.Unmarshal([]byte(kwJSON), &p.Keywords); err != nil {
		p.Keywords = nil
	}
	return &p, nil
}
