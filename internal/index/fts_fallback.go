//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

// Without FTS5 the documents table and the targets table are searched
// with LIKE.
func initFTS(_ *sql.DB) error { return nil }

func ftsUpsert(_ *sql.Tx, _, _ string, _ []string, _ string) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// Search matches documents whose path, name, body or selectors contain
// every query term. Name hits sort first.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	terms := searchTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var (
		where []string
		args  []any
	)
	for _, t := range terms {
		like := "%" + escapeLike(t) + "%"
		where = append(where, `(d.name LIKE ? ESCAPE '\' OR d.body LIKE ? ESCAPE '\' OR d.path LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM targets t WHERE t.source = d.path AND t.selector LIKE ? ESCAPE '\'))`)
		args = append(args, like, like, like, like)
	}
	first := "%" + escapeLike(terms[0]) + "%"
	args = append(args, first, limit)

	rows, err := db.conn.Query(`
		SELECT d.path, d.name, d.body
		FROM documents d
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY (d.name LIKE ? ESCAPE '\') DESC, d.path
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	out, err := scanResults(rows)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Snippet = excerpt(out[i].Snippet, terms[0], excerptRunes)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
