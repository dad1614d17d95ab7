package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/keyline/internal/apperr"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path       string
	Name       string
	Checksum   string
	Length     float64
	TrackCount int
	Triggers   int
	Eases      []string
	UpdatedAt  time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string
	Name    string
	Snippet string
}

// UpsertDocument inserts or replaces a document, its FTS entry, and selector targets within a transaction.
func (db *DB) UpsertDocument(d DocumentRow, body string, selectors []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if d.Eases == nil {
		d.Eases = []string{}
	}
	easesJSON, _ := json.Marshal(d.Eases)
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, name, checksum, length, track_count, triggers, eases, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name        = excluded.name,
			checksum    = excluded.checksum,
			length      = excluded.length,
			track_count = excluded.track_count,
			triggers    = excluded.triggers,
			eases       = excluded.eases,
			body        = excluded.body,
			updated_at  = excluded.updated_at
	`, d.Path, d.Name, d.Checksum, d.Length, d.TrackCount, d.Triggers, string(easesJSON), body, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, d.Path, d.Name, selectors, body); err != nil {
		return err
	}

	_, _ = tx.Exec(`DELETE FROM targets WHERE source = ?`, d.Path)
	if len(selectors) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO targets (source, selector) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare target insert: %w", err)
		}
		defer stmt.Close()
		for _, sel := range selectors {
			if _, err := stmt.Exec(d.Path, sel); err != nil {
				return fmt.Errorf("index: insert target: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteDocument removes a document, its FTS entry, and its targets.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM targets WHERE source = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

const selectRow = `SELECT path, name, checksum, length, track_count, triggers, eases, updated_at FROM documents`

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (DocumentRow, error) {
	var (
		d     DocumentRow
		eases string
	)
	if err := s.Scan(&d.Path, &d.Name, &d.Checksum, &d.Length, &d.TrackCount, &d.Triggers, &eases, &d.UpdatedAt); err != nil {
		return d, err
	}
	_ = json.Unmarshal([]byte(eases), &d.Eases)
	return d, nil
}

// GetDocument returns the indexed row for path or apperr.ErrNotFound.
func (db *DB) GetDocument(path string) (*DocumentRow, error) {
	d, err := scanRow(db.conn.QueryRow(selectRow+` WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: %s: %w", path, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	return &d, nil
}

var orderBy = map[string]string{
	"":        "updated_at DESC, path",
	"updated": "updated_at DESC, path",
	"name":    "name COLLATE NOCASE, path",
	"path":    "path",
	"length":  "length DESC, path",
}

// ListDocuments returns a page of documents and the total count. Unknown sort keys fall back to recency.
func (db *DB) ListDocuments(limit, offset int, sort string) ([]DocumentRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order, ok := orderBy[sort]
	if !ok {
		order = orderBy[""]
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count documents: %w", err)
	}

	rows, err := db.conn.Query(selectRow+` ORDER BY `+order+` LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list documents: %w", err)
	}
	defer rows.Close()

	out := make([]DocumentRow, 0, limit)
	for rows.Next() {
		d, err := scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// Targeting returns every document path animating selector.
func (db *DB) Targeting(selector string) ([]string, error) {
	return db.queryStrings(`SELECT source FROM targets WHERE selector = ? ORDER BY source`, selector)
}

// Targets returns the selectors animated by the document at path.
func (db *DB) Targets(path string) ([]string, error) {
	return db.queryStrings(`SELECT selector FROM targets WHERE source = ? ORDER BY selector`, path)
}

func (db *DB) queryStrings(query string, arg string) ([]string, error) {
	rows, err := db.conn.Query(query, arg)
	if err != nil {
		return nil, fmt.Errorf("index: targets: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllPaths returns every indexed document path.
func (db *DB) AllPaths() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT path FROM documents`)
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

// AllChecksums returns path -> checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
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
