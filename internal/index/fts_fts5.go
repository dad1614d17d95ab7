//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Column order matters for bm25 weights and snippet().
const ftsSchemaSQL = `
CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
	path UNINDEXED,
	name,
	selectors,
	body,
	tokenize = 'unicode61 remove_diacritics 2'
);
`

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(ftsSchemaSQL)
	return err
}

func ftsUpsert(tx *sql.Tx, path, name string, selectors []string, body string) error {
	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	_, err := tx.Exec(`INSERT INTO documents_fts (path, name, selectors, body) VALUES (?, ?, ?, ?)`,
		path, name, strings.Join(selectors, " "), body)
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path)
}

// Search ranks documents with bm25, weighting name over selectors over
// body. Every query term is a prefix match and all terms must match.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       name,
		       snippet(documents_fts, 3, '<b>', '</b>', '...', 16)
		FROM documents_fts
		WHERE documents_fts MATCH ?
		ORDER BY bm25(documents_fts, 0.0, 8.0, 4.0, 1.0)
		LIMIT ?
	`, ftsQuery(terms), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
