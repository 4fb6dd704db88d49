//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/starford/sm/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS packages_fts USING fts5(
			path UNINDEXED,
			name,
			description,
			keywords,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, p PackageRow) error {
	if _, err := tx.Exec(`DELETE FROM packages_fts WHERE path = ?`, p.Path); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	_, err := tx.Exec(`INSERT INTO packages_fts (path, name, description, keywords) VALUES (?, ?, ?, ?)`,
		p.Path, p.Name, p.Description, strings.Join(p.Keywords, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) error {
	if _, err := tx.Exec(`DELETE FROM packages_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search over name, description and
// keywords and returns matching packages with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT p.path, p.key, p.area, p.name, p.version,
		       snippet(packages_fts, 2, '<b>', '</b>', '...', 32)
		FROM packages_fts
		JOIN packages p ON p.path = packages_fts.path
		WHERE packages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
