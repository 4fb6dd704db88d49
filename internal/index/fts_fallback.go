//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/sm/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search falls back to LIKE on the packages table.
	return nil
}

func ftsUpsert(_ *sql.Tx, _ PackageRow) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT path, key, area, name, version, substr(description, 1, 200)
		FROM packages
		WHERE name LIKE ? OR key LIKE ? OR description LIKE ? OR keywords LIKE ?
		ORDER BY path
		LIMIT ?
	`, like, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var (
			r    SearchResult
			area string
		)
		if err := rows.Scan(&r.Path, &r.Key, &area, &r.Name, &r.Version, &r.Snippet); err != nil {
			return nil, err
		}
		r.Area = models.Area(area)
		out = append(out, r)
	}
	return out, rows.Err()
}
